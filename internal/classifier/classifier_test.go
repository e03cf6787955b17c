package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfigueredo/viptier/internal/rulestore"
)

func TestClassify(t *testing.T) {
	rules := func(tags ...string) []rulestore.Rule {
		out := make([]rulestore.Rule, len(tags))
		for i, tag := range tags {
			out[i] = rulestore.Rule{Tag: tag, Percentage: 10}
		}
		return out
	}

	tests := []struct {
		name        string
		customer    []string
		rules       []rulestore.Rule
		wantVIP     bool
		wantMatched []string
	}{
		{
			name:        "Should not match when the rule set is empty",
			customer:    []string{"VIP", "gold"},
			rules:       nil,
			wantVIP:     false,
			wantMatched: nil,
		},
		{
			name:        "Should not match when the customer has no tags",
			customer:    nil,
			rules:       rules("VIP"),
			wantVIP:     false,
			wantMatched: nil,
		},
		{
			name:        "Should match on a single overlapping tag",
			customer:    []string{"newsletter", "VIP"},
			rules:       rules("VIP"),
			wantVIP:     true,
			wantMatched: []string{"VIP"},
		},
		{
			name:        "Should preserve customer-tag order in the intersection",
			customer:    []string{"silver", "gold"},
			rules:       rules("gold", "silver"),
			wantVIP:     true,
			wantMatched: []string{"silver", "gold"},
		},
		{
			name:        "Should be case-sensitive with no normalization",
			customer:    []string{"vip", " VIP"},
			rules:       rules("VIP"),
			wantVIP:     false,
			wantMatched: nil,
		},
		{
			name:        "Should deduplicate repeated customer tags",
			customer:    []string{"VIP", "VIP", "gold"},
			rules:       rules("VIP", "gold"),
			wantVIP:     true,
			wantMatched: []string{"VIP", "gold"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.customer, tt.rules)

			assert.Equal(t, tt.wantVIP, got.IsVIP)
			assert.Equal(t, tt.wantMatched, got.MatchedTags)
		})
	}
}

func TestClassify_RuleOrderIrrelevantForOutcome(t *testing.T) {
	customer := []string{"gold"}
	a := Classify(customer, []rulestore.Rule{{Tag: "gold"}, {Tag: "silver"}})
	b := Classify(customer, []rulestore.Rule{{Tag: "silver"}, {Tag: "gold"}})

	assert.Equal(t, a.IsVIP, b.IsVIP)
	assert.Equal(t, a.MatchedTags, b.MatchedTags)
}
