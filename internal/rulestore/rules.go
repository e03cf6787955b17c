// Package rulestore owns the canonical list of active VIP pricing rules.
// The rule set is persisted as a single JSON metafield blob on the shop
// entity; every mutation is a full read-decode-mutate-encode-write cycle
// against the platform client.
package rulestore

import (
	"encoding/json"
	"fmt"
)

// Rule pairs a customer tag with a discount percentage and the identifiers
// of the two remote resources that implement it. Identity is DiscountRef.
// Rules are never mutated in place: they are created by the provisioner
// after both remote resources exist and removed by its delete path.
type Rule struct {
	// Tag is the customer tag that grants the discount. Exact string,
	// case-sensitive.
	Tag string `json:"tag"`

	// Percentage is the discount size as provided (0-100); it is applied
	// remotely as Percentage/100.
	Percentage float64 `json:"percentage"`

	// DiscountRef is the automatic discount node id.
	DiscountRef string `json:"discountId"`

	// SegmentRef is the customer segment id.
	SegmentRef string `json:"segmentId"`

	// Title is the discount's display title.
	Title string `json:"title"`
}

// envelope is the stored blob format. Version is the monotonic stamp used to
// detect lost updates; a bare-array blob from older app revisions decodes as
// version 0.
type envelope struct {
	Version int64  `json:"version"`
	Rules   []Rule `json:"rules"`
}

// CorruptStateError reports a rule set blob that fails to decode. This is
// fatal for rule store operations on that owner until manually repaired.
type CorruptStateError struct {
	OwnerID string
	Err     error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("rule set blob for %s is corrupt: %v", e.OwnerID, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// decodeBlob parses a stored blob into its envelope form. Empty input
// decodes to an empty version-0 set.
func decodeBlob(ownerID, blob string) (envelope, error) {
	if blob == "" {
		return envelope{}, nil
	}

	// Current format: {"version": N, "rules": [...]}
	var env envelope
	if err := json.Unmarshal([]byte(blob), &env); err == nil {
		return env, nil
	}

	// Legacy format: a bare rule array, treated as version 0.
	var rules []Rule
	if err := json.Unmarshal([]byte(blob), &rules); err != nil {
		return envelope{}, &CorruptStateError{OwnerID: ownerID, Err: err}
	}
	return envelope{Version: 0, Rules: rules}, nil
}

// encodeBlob serializes the envelope for storage.
func encodeBlob(env envelope) (string, error) {
	if env.Rules == nil {
		// Keep the stored form stable: "[]", never "null".
		env.Rules = []Rule{}
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to encode rule set: %w", err)
	}
	return string(b), nil
}
