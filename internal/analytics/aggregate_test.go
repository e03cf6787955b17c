package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfigueredo/viptier/internal/accesslog"
)

func TestAggregate(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Entries arrive newest first, as served by the log store.
	entries := []accesslog.Entry{
		{CustomerKey: "c1", TagSnapshot: "VIP, gold", OrdersCount: 9, CreatedAt: now},
		{CustomerKey: "c2", TagSnapshot: "silver", OrdersCount: 1, CreatedAt: now.Add(-time.Hour)},
		{CustomerKey: "c1", TagSnapshot: "VIP", OrdersCount: 7, CreatedAt: now.Add(-2 * time.Hour)},
		{CustomerKey: "c1", TagSnapshot: "VIP", OrdersCount: 5, CreatedAt: now.Add(-3 * time.Hour)},
	}

	summaries := Aggregate(entries)

	require.Len(t, summaries, 2)

	c1 := summaries[0]
	assert.Equal(t, "c1", c1.Key)
	assert.Equal(t, 3, c1.LoginCount)
	assert.Equal(t, "VIP, gold", c1.TagSnapshot, "newest entry seeds the snapshot")
	assert.Equal(t, int64(9), c1.OrdersCount)
	assert.Equal(t, now, c1.LatestTimestamp)

	c2 := summaries[1]
	assert.Equal(t, "c2", c2.Key)
	assert.Equal(t, 1, c2.LoginCount)
	assert.Equal(t, "silver", c2.TagSnapshot)
}

func TestAggregate_Empty(t *testing.T) {
	summaries := Aggregate(nil)

	assert.NotNil(t, summaries, "reports render [] rather than null")
	assert.Empty(t, summaries)
}

func TestAggregate_StableOrder(t *testing.T) {
	entries := []accesslog.Entry{
		{CustomerKey: "b"},
		{CustomerKey: "a"},
		{CustomerKey: "b"},
		{CustomerKey: "c"},
		{CustomerKey: "a"},
	}

	summaries := Aggregate(entries)

	require.Len(t, summaries, 3)
	assert.Equal(t, "b", summaries[0].Key)
	assert.Equal(t, "a", summaries[1].Key)
	assert.Equal(t, "c", summaries[2].Key)
}
