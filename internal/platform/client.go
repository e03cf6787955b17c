// Package platform defines the consumed capability contract against the
// commerce platform's Admin API: customer segments, automatic discounts, the
// namespaced metafield blob on the shop entity, and customer lookups.
//
// The core treats this as an external collaborator: every operation returns
// either a success payload or the platform's field-level user errors as
// data. Transport-level failures (network, auth, malformed responses) are
// returned as ordinary errors.
package platform

import (
	"context"
	"time"
)

// FieldError is a field-level user error reported by the platform for an
// otherwise well-formed mutation (e.g. "Name already exists").
type FieldError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// FirstMessage returns the first error's message, or "" for an empty list.
// Orchestrations surface this verbatim to the caller.
func FirstMessage(errs []FieldError) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[0].Message
}

// Segment is a remote, named, query-defined grouping of customers.
type Segment struct {
	ID   string
	Name string
}

// Discount is a remote automatic percentage discount scoped to a segment.
type Discount struct {
	ID     string
	Title  string
	Status string
}

// Customer is the live view of a storefront customer used for
// classification. OrderCountDirect and OrderCountViaConnection carry the
// same quantity from two platform API generations; both must be tolerated.
type Customer struct {
	ID                      string
	DisplayName             string
	Email                   string
	Tags                    []string
	OrderCountDirect        int64
	OrderCountViaConnection int64
}

// AdminClient is the capability contract implemented by the GraphQL client.
// Mutations return (payload, fieldErrors, err): fieldErrors non-empty means
// the platform rejected the request with user-facing messages; err non-nil
// means the call itself failed.
type AdminClient interface {
	// CreateSegment creates a customer segment with the given membership query.
	CreateSegment(ctx context.Context, name, query string) (*Segment, []FieldError, error)

	// DeleteSegment deletes a segment by id.
	DeleteSegment(ctx context.Context, segmentID string) ([]FieldError, error)

	// CreateAutomaticPercentageDiscount creates a basic percentage-off
	// automatic discount scoped to the segment, applying to all items.
	// percentage is a fraction in [0,1] (the platform's representation).
	CreateAutomaticPercentageDiscount(ctx context.Context, title string, percentage float64, segmentID string, startsAt time.Time) (*Discount, []FieldError, error)

	// DeleteAutomaticDiscount deletes an automatic discount node by id.
	DeleteAutomaticDiscount(ctx context.Context, discountID string) ([]FieldError, error)

	// ShopID returns the owning shop entity's id (the metafield owner).
	ShopID(ctx context.Context) (string, error)

	// GetBlob reads the namespaced metafield blob from the shop entity.
	// ok is false when the metafield does not exist.
	GetBlob(ctx context.Context, namespace, key string) (value string, ok bool, err error)

	// SetBlob writes the full metafield blob on the owner entity.
	SetBlob(ctx context.Context, ownerID, namespace, key, jsonValue string) ([]FieldError, error)

	// GetCustomer looks up a customer by gid. Returns nil when not found.
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
}
