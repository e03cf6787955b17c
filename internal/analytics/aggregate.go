// Package analytics derives per-customer login summaries from the persisted
// access log. Summaries are recomputed on every read; nothing here is
// persisted.
package analytics

import (
	"time"

	"github.com/mfigueredo/viptier/internal/accesslog"
)

// CustomerSummary is one reporting row: the newest snapshot for a customer
// key plus a running login count.
type CustomerSummary struct {
	// Key is the grouping key (the entry's CustomerKey).
	Key string `json:"key"`

	// DisplayLabel is the label shown in reports, seeded from the newest
	// entry.
	DisplayLabel string `json:"display_label"`

	// LatestTimestamp is the newest entry's write time.
	LatestTimestamp time.Time `json:"latest_timestamp"`

	// TagSnapshot is the newest entry's matched-tag snapshot.
	TagSnapshot string `json:"tag_snapshot"`

	// OrdersCount is the newest entry's order count snapshot.
	OrdersCount int64 `json:"orders_count"`

	// LoginCount is the number of log entries sharing the key.
	LoginCount int `json:"login_count"`
}

// Aggregate groups entries by customer key into one summary per key.
//
// Entries must be sorted newest first (the persisted store serves them in
// descending timestamp order). The first entry seen for a key seeds the
// summary's snapshot fields; every later entry for the same key only
// increments LoginCount. Output order is the order of first appearance of
// each key in the input.
func Aggregate(entries []accesslog.Entry) []CustomerSummary {
	summaries := make([]CustomerSummary, 0, len(entries))
	index := make(map[string]int, len(entries))

	for _, e := range entries {
		if i, ok := index[e.CustomerKey]; ok {
			summaries[i].LoginCount++
			continue
		}

		index[e.CustomerKey] = len(summaries)
		summaries = append(summaries, CustomerSummary{
			Key:             e.CustomerKey,
			DisplayLabel:    e.CustomerKey,
			LatestTimestamp: e.CreatedAt,
			TagSnapshot:     e.TagSnapshot,
			OrdersCount:     e.OrdersCount,
			LoginCount:      1,
		})
	}

	return summaries
}
