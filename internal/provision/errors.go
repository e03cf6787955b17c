// Package provision orchestrates the paired remote resources behind a VIP
// pricing rule: a customer segment and an automatic percentage discount.
// Creation is a two-step saga with a compensating delete; deletion is
// best-effort with per-step outcomes.
package provision

import "fmt"

// ValidationError reports caller-supplied input failing a precondition.
// It is surfaced before any remote call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// RemoteError carries the platform's first field-level user error verbatim.
// Step records which remote operation rejected the request.
type RemoteError struct {
	Step    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

// Steps reported in RemoteError.
const (
	StepSegmentCreate  = "segment create"
	StepDiscountCreate = "discount create"
)
