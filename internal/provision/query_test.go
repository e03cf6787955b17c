package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentName(t *testing.T) {
	assert.Equal(t, "VIP Users", SegmentName("VIP"))
	assert.Equal(t, "gold tier Users", SegmentName("gold tier"))
}

func TestBuildSegmentQuery(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		want    string
		wantErr bool
	}{
		{
			name: "Should render the predicate for a plain tag",
			tag:  "VIP",
			want: "customer_tags CONTAINS 'VIP'",
		},
		{
			name: "Should allow spaces and mixed case",
			tag:  "Gold Tier 2024",
			want: "customer_tags CONTAINS 'Gold Tier 2024'",
		},
		{
			name:    "Should reject an empty tag",
			tag:     "",
			wantErr: true,
		},
		{
			name:    "Should reject a tag containing a single quote",
			tag:     "it's complicated",
			wantErr: true,
		},
		{
			name:    "Should reject a tag containing a backslash",
			tag:     `back\slash`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSegmentQuery(tt.tag)

			if tt.wantErr {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Empty(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
