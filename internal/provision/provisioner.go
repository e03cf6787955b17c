package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueredo/viptier/internal/observability"
	"github.com/mfigueredo/viptier/internal/platform"
	"github.com/mfigueredo/viptier/internal/rulestore"
)

// RuleBook is the slice of the rule store the provisioner needs.
type RuleBook interface {
	AppendRule(ctx context.Context, ownerID string, rule rulestore.Rule) error
	RemoveRuleByDiscountRef(ctx context.Context, ownerID, discountRef string) error
}

// Provisioner creates and deletes the (segment, automatic discount) pair
// behind a rule and keeps the rule store's bookkeeping in step.
type Provisioner struct {
	client  platform.AdminClient
	rules   RuleBook
	intents IntentRepository
	shop    string
	logger  *slog.Logger
}

// New creates a Provisioner. shop is the shop domain recorded on intents.
func New(client platform.AdminClient, rules RuleBook, intents IntentRepository, shop string, logger *slog.Logger) *Provisioner {
	if client == nil {
		panic("provision: platform client cannot be nil")
	}
	if rules == nil {
		panic("provision: rule book cannot be nil")
	}
	if intents == nil {
		panic("provision: intent repository cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Provisioner{
		client:  client,
		rules:   rules,
		intents: intents,
		shop:    shop,
		logger:  logger,
	}
}

// CreateRule provisions a segment plus automatic discount for the tag and
// records the resulting rule.
//
// percentPercent is the human form (15 means 15% off); the platform receives
// percentPercent/100. Order of operations: intent row, segment, discount,
// rule store append. A discount failure triggers a compensating segment
// delete; if that also fails the intent is left for the sweeper.
func (p *Provisioner) CreateRule(ctx context.Context, ownerID, tag, title string, percentPercent float64) (*rulestore.Rule, error) {
	segmentQuery, err := BuildSegmentQuery(tag)
	if err != nil {
		observability.ProvisionTotal.WithLabelValues("create", "invalid").Inc()
		return nil, err
	}
	if percentPercent <= 0 || percentPercent > 100 {
		observability.ProvisionTotal.WithLabelValues("create", "invalid").Inc()
		return nil, &ValidationError{Msg: fmt.Sprintf("percentage must be in (0, 100], got %v", percentPercent)}
	}

	// Durable saga record before the first remote call. Losing it degrades
	// crash recovery, not the provisioning itself.
	intent := &Intent{
		ID:         uuid.NewString(),
		Shop:       p.shop,
		Tag:        tag,
		Title:      title,
		Percentage: percentPercent,
		State:      IntentPending,
	}
	if err := p.intents.CreateIntent(ctx, intent); err != nil {
		p.logger.Error("failed to record provision intent",
			slog.String("tag", tag),
			slog.String("error", err.Error()),
		)
	}

	// Step 1: segment. A user error here leaves no remote state behind.
	segment, fieldErrs, err := p.client.CreateSegment(ctx, SegmentName(tag), segmentQuery)
	if err != nil {
		p.finishIntent(ctx, intent.ID, IntentFailed, err.Error())
		observability.ProvisionTotal.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("segment create failed: %w", err)
	}
	if len(fieldErrs) > 0 {
		msg := platform.FirstMessage(fieldErrs)
		p.finishIntent(ctx, intent.ID, IntentFailed, msg)
		observability.ProvisionTotal.WithLabelValues("create", "rejected").Inc()
		return nil, &RemoteError{Step: StepSegmentCreate, Message: msg}
	}

	if err := p.intents.MarkSegmentCreated(ctx, intent.ID, segment.ID); err != nil {
		p.logger.Error("failed to record segment on intent",
			slog.String("intent_id", intent.ID),
			slog.String("error", err.Error()),
		)
	}

	// Step 2: discount, scoped to the new segment.
	discount, fieldErrs, err := p.client.CreateAutomaticPercentageDiscount(ctx, title, percentPercent/100, segment.ID, time.Now())
	if err != nil {
		p.compensateSegment(ctx, intent.ID, segment.ID, err.Error())
		observability.ProvisionTotal.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("discount create failed: %w", err)
	}
	if len(fieldErrs) > 0 {
		msg := platform.FirstMessage(fieldErrs)
		p.compensateSegment(ctx, intent.ID, segment.ID, msg)
		observability.ProvisionTotal.WithLabelValues("create", "rejected").Inc()
		return nil, &RemoteError{Step: StepDiscountCreate, Message: msg}
	}

	rule := rulestore.Rule{
		Tag:         tag,
		Percentage:  percentPercent,
		DiscountRef: discount.ID,
		SegmentRef:  segment.ID,
		Title:       title,
	}

	if err := p.rules.AppendRule(ctx, ownerID, rule); err != nil {
		// Both remote resources exist but the bookkeeping write failed;
		// the intent stays visible for operators.
		p.finishIntent(ctx, intent.ID, IntentCompensating, "rule store append failed: "+err.Error())
		observability.ProvisionTotal.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("failed to record rule: %w", err)
	}

	p.finishIntent(ctx, intent.ID, IntentSucceeded, "")
	observability.ProvisionTotal.WithLabelValues("create", "success").Inc()

	p.logger.Info("rule provisioned",
		slog.String("tag", tag),
		slog.Float64("percentage", percentPercent),
		slog.String("segment_id", segment.ID),
		slog.String("discount_id", discount.ID),
	)

	return &rule, nil
}

// compensateSegment best-effort deletes the segment created by a saga whose
// discount step failed. A failed compensation leaves the intent in
// compensating state for the sweeper.
func (p *Provisioner) compensateSegment(ctx context.Context, intentID, segmentID, cause string) {
	fieldErrs, err := p.client.DeleteSegment(ctx, segmentID)
	if err == nil && len(fieldErrs) == 0 {
		p.finishIntent(ctx, intentID, IntentCompensated, cause)
		return
	}

	detail := cause
	if err != nil {
		detail = fmt.Sprintf("%s; segment cleanup failed: %v", cause, err)
	} else {
		detail = fmt.Sprintf("%s; segment cleanup rejected: %s", cause, platform.FirstMessage(fieldErrs))
	}

	p.logger.Warn("compensating segment delete failed, leaving for sweeper",
		slog.String("intent_id", intentID),
		slog.String("segment_id", segmentID),
		slog.String("detail", detail),
	)
	p.finishIntent(ctx, intentID, IntentCompensating, detail)
}

// finishIntent updates the intent state, logging rather than propagating
// persistence failures.
func (p *Provisioner) finishIntent(ctx context.Context, id, state, detail string) {
	if err := p.intents.FinishIntent(ctx, id, state, detail); err != nil {
		p.logger.Error("failed to update provision intent",
			slog.String("intent_id", id),
			slog.String("state", state),
			slog.String("error", err.Error()),
		)
	}
}

// StepResult reports one remote deletion step of DeleteRule.
type StepResult struct {
	// Attempted is false when the reference was absent and the step was
	// skipped.
	Attempted bool `json:"attempted"`

	// OK is true when the platform accepted the deletion.
	OK bool `json:"ok"`

	// Message carries the platform's first user error or the transport
	// error when OK is false.
	Message string `json:"message,omitempty"`
}

// DeleteOutcome exposes every step of a rule deletion so operators can
// reconcile remote resources that survived a partial failure.
type DeleteOutcome struct {
	Discount    StepResult `json:"discount"`
	Segment     StepResult `json:"segment"`
	RuleRemoved bool       `json:"rule_removed"`
}

// DeleteRule tears down the remote pair and removes the rule from the
// bookkeeping.
//
// Remote deletions are best-effort: their failures are reported in the
// outcome but never block the local removal, so the rule set cannot get
// stuck referencing a rule the operator asked to delete. The returned error
// is non-nil only when the rule store removal itself failed.
func (p *Provisioner) DeleteRule(ctx context.Context, ownerID, discountRef, segmentRef string) (DeleteOutcome, error) {
	var out DeleteOutcome

	if discountRef != "" {
		out.Discount = p.deleteStep(ctx, "discount", discountRef, p.client.DeleteAutomaticDiscount)
	}
	if segmentRef != "" {
		out.Segment = p.deleteStep(ctx, "segment", segmentRef, p.client.DeleteSegment)
	}

	if err := p.rules.RemoveRuleByDiscountRef(ctx, ownerID, discountRef); err != nil {
		observability.ProvisionTotal.WithLabelValues("delete", "error").Inc()
		return out, fmt.Errorf("failed to remove rule from store: %w", err)
	}
	out.RuleRemoved = true

	observability.ProvisionTotal.WithLabelValues("delete", "success").Inc()
	return out, nil
}

// deleteStep runs one best-effort remote deletion.
func (p *Provisioner) deleteStep(ctx context.Context, kind, id string, del func(context.Context, string) ([]platform.FieldError, error)) StepResult {
	res := StepResult{Attempted: true}

	fieldErrs, err := del(ctx, id)
	switch {
	case err != nil:
		res.Message = err.Error()
	case len(fieldErrs) > 0:
		res.Message = platform.FirstMessage(fieldErrs)
	default:
		res.OK = true
		return res
	}

	p.logger.Warn("best-effort remote delete failed",
		slog.String("kind", kind),
		slog.String("id", id),
		slog.String("message", res.Message),
	)
	return res
}
