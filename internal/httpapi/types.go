package httpapi

import (
	"fmt"
	"strings"
)

// CreateRuleRequest defines the payload for creating a new pricing rule.
// Used for JSON decoding in the POST /api/v1/rules endpoint.
type CreateRuleRequest struct {
	// Tag is the customer tag gating the rule. Required.
	Tag string `json:"tag"`

	// Title is the discount title shown in the platform admin. Optional;
	// a default is derived from the tag and percentage when omitted.
	Title string `json:"title,omitempty"`

	// Percentage is the discount percentage, exclusive of zero, at most 100.
	Percentage float64 `json:"percentage"`
}

// Sanitize cleans up input data by trimming whitespace.
// This prevents "dirty" data from entering the provisioning logic.
func (r *CreateRuleRequest) Sanitize() {
	r.Tag = strings.TrimSpace(r.Tag)
	r.Title = strings.TrimSpace(r.Title)
}

// Validate checks if the request data adheres to business rules.
// It returns a structured *ErrorResponse if validation fails, or nil if valid.
func (r *CreateRuleRequest) Validate() *ErrorResponse {
	if r.Tag == "" {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Tag is required",
		}
	}
	if len(r.Tag) > 255 {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Tag must be less than 255 characters",
		}
	}
	if r.Percentage <= 0 || r.Percentage > 100 {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Percentage must be greater than 0 and at most 100",
		}
	}
	if len(r.Title) > 255 {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Title must be less than 255 characters",
		}
	}
	return nil
}

// EffectiveTitle returns the discount title, deriving the default when the
// caller supplied none.
func (r *CreateRuleRequest) EffectiveTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return fmt.Sprintf("%s Automatic %g%% Off", r.Tag, r.Percentage)
}

// DeleteRuleRequest defines the payload for removing a rule and its remote
// resources. SegmentID may be empty for rules persisted before segment ids
// were recorded; the segment delete step is then skipped.
type DeleteRuleRequest struct {
	DiscountID string `json:"discount_id"`
	SegmentID  string `json:"segment_id,omitempty"`
}

// Sanitize trims identifier whitespace.
func (r *DeleteRuleRequest) Sanitize() {
	r.DiscountID = strings.TrimSpace(r.DiscountID)
	r.SegmentID = strings.TrimSpace(r.SegmentID)
}

// Validate checks the delete payload.
func (r *DeleteRuleRequest) Validate() *ErrorResponse {
	if r.DiscountID == "" {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "discount_id is required",
		}
	}
	return nil
}

// CheckResponse is the storefront proxy response. Field names follow the
// storefront script's contract (camelCase), unlike the admin API.
type CheckResponse struct {
	IsVIP        bool     `json:"isVip"`
	Tags         []string `json:"tags"`
	CustomerName string   `json:"customerName,omitempty"`

	// OrdersCount is serialized as a string; the storefront script renders
	// it verbatim.
	OrdersCount string `json:"ordersCount"`

	// Message explains a non-error miss (e.g. no customer id supplied).
	Message string `json:"message,omitempty"`

	Debug *CheckDebug `json:"debug,omitempty"`
}

// CheckDebug carries diagnostic fields for the storefront script's console.
type CheckDebug struct {
	Shop      string `json:"shop"`
	LogStatus string `json:"logStatus"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`
}
