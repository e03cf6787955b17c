// Package sweeper implements the background worker that reconciles
// provisioning sagas left dangling by crashes or failed compensations: it
// finds stale intents and retries the compensating segment delete.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/mfigueredo/viptier/internal/platform"
	"github.com/mfigueredo/viptier/internal/provision"
)

// SegmentDeleter is the slice of the platform client the sweeper needs.
type SegmentDeleter interface {
	DeleteSegment(ctx context.Context, segmentID string) ([]platform.FieldError, error)
}

// Config holds the configuration for the Sweeper service.
type Config struct {
	// Interval is the duration between sweep cycles (polling).
	Interval time.Duration

	// MinAge is how stale an intent must be before the sweeper touches it,
	// so in-flight sagas are never reconciled out from under the server.
	MinAge time.Duration

	// BatchSize caps the intents processed per cycle.
	BatchSize int
}

// Service orchestrates the reconciliation process.
type Service struct {
	logger  *slog.Logger
	config  Config
	intents provision.IntentRepository
	client  SegmentDeleter
}

// New creates a new Sweeper service.
func New(logger *slog.Logger, cfg Config, intents provision.IntentRepository, client SegmentDeleter) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if intents == nil {
		panic("sweeper: intent repository cannot be nil")
	}
	if client == nil {
		panic("sweeper: segment deleter cannot be nil")
	}

	if cfg.Interval < time.Second {
		cfg.Interval = 5 * time.Minute // Safe default
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = 10 * time.Minute
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}

	return &Service{
		logger:  logger,
		config:  cfg,
		intents: intents,
		client:  client,
	}
}

// Run starts the sweeper loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting sweeper service",
		slog.String("interval", s.config.Interval.String()),
		slog.String("min_age", s.config.MinAge.String()),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run once immediately on startup
	if err := s.sweep(ctx); err != nil {
		s.logger.Error("initial sweep failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper service stopping...")
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				// Log the error but don't stop the worker. Retry on next tick.
				s.logger.Error("sweep cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// sweep performs a single reconciliation cycle.
func (s *Service) sweep(ctx context.Context) error {
	start := time.Now()
	cutoff := start.Add(-s.config.MinAge)

	intents, err := s.intents.ListDangling(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return err
	}

	cleaned := 0
	errorCount := 0

	for _, intent := range intents {
		if err := s.reconcile(ctx, intent); err != nil {
			s.logger.Warn("failed to reconcile intent",
				slog.String("intent_id", intent.ID),
				slog.String("state", intent.State),
				slog.String("error", err.Error()),
			)
			errorCount++
			continue // Try next intent, don't abort entire batch
		}
		cleaned++
	}

	if cleaned > 0 || errorCount > 0 {
		s.logger.Info("sweep cycle completed",
			slog.Int("reconciled", cleaned),
			slog.Int("errors", errorCount),
			slog.String("duration", time.Since(start).String()),
		)
	}
	return nil
}

// reconcile settles one dangling intent.
//
// Intents with a recorded segment get the compensating delete retried; a
// "does not exist" style rejection counts as already cleaned. Pending
// intents without a segment never created anything remote, so they are
// closed as failed.
func (s *Service) reconcile(ctx context.Context, intent *provision.Intent) error {
	if intent.SegmentID == "" {
		return s.intents.FinishIntent(ctx, intent.ID, provision.IntentFailed,
			"abandoned before segment creation")
	}

	fieldErrs, err := s.client.DeleteSegment(ctx, intent.SegmentID)
	if err != nil {
		return err
	}
	if len(fieldErrs) > 0 {
		// The platform rejected the delete; most often the segment is
		// already gone. Either way there is nothing more to retry.
		return s.intents.FinishIntent(ctx, intent.ID, provision.IntentCompensated,
			"sweeper: delete rejected: "+platform.FirstMessage(fieldErrs))
	}

	return s.intents.FinishIntent(ctx, intent.ID, provision.IntentCompensated,
		"sweeper: orphaned segment deleted")
}
