package provision

import (
	"fmt"
	"strings"
)

// SegmentName derives the segment's display name from the targeted tag.
func SegmentName(tag string) string {
	return tag + " Users"
}

// BuildSegmentQuery renders the membership predicate selecting customers
// that carry the tag.
//
// The tag value is embedded inside the predicate's single-quoted literal, so
// a tag carrying the quoting delimiter (or an escape character) would change
// the meaning of the query. Such tags are rejected outright rather than
// escaped: the platform's segment query language has no documented escape
// sequence to rely on.
func BuildSegmentQuery(tag string) (string, error) {
	if tag == "" {
		return "", &ValidationError{Msg: "missing tag"}
	}
	if strings.ContainsAny(tag, `'\`) {
		return "", &ValidationError{Msg: fmt.Sprintf("tag %q contains unsupported characters (quote or backslash)", tag)}
	}

	return fmt.Sprintf("customer_tags CONTAINS '%s'", tag), nil
}
