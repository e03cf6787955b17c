// Package classifier decides whether a storefront visitor is privileged by
// intersecting the customer's tags with the tags of the active rule set.
package classifier

import (
	"github.com/mfigueredo/viptier/internal/rulestore"
)

// Result is the outcome of classifying one customer against the active
// rules.
type Result struct {
	// IsVIP is true when at least one customer tag matches an active
	// rule's tag.
	IsVIP bool

	// MatchedTags holds the intersection, in customer-tag order, without
	// duplicates.
	MatchedTags []string
}

// Classify intersects customerTags with the tags of activeRules.
// Comparison is exact-string and case-sensitive, with no normalization;
// order of the inputs does not affect IsVIP.
func Classify(customerTags []string, activeRules []rulestore.Rule) Result {
	allowed := make(map[string]struct{}, len(activeRules))
	for _, r := range activeRules {
		allowed[r.Tag] = struct{}{}
	}

	var matched []string
	seen := make(map[string]struct{}, len(customerTags))
	for _, tag := range customerTags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		if _, ok := allowed[tag]; ok {
			matched = append(matched, tag)
		}
	}

	return Result{
		IsVIP:       len(matched) > 0,
		MatchedTags: matched,
	}
}
