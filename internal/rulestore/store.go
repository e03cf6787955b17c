package rulestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mfigueredo/viptier/internal/platform"
)

// writeAttempts bounds the re-read-and-merge retry loop on version conflict.
const writeAttempts = 3

// Invalidator is notified after every committed rule set write so cache
// tiers can drop their copy. Invalidation is best-effort.
type Invalidator interface {
	Invalidate(ctx context.Context, ownerID string)
}

// Store provides get-all, append, and remove-by-discount-reference over the
// rule set blob.
//
// The remote blob contract has no conditional write, so the versioned-record
// scheme is approximated: writers serialize per owner in-process, every
// write bumps the envelope's version stamp, and a verify read after the
// write detects an out-of-process writer having raced; on conflict the
// mutation is re-applied to the fresh state and retried.
type Store struct {
	client     platform.AdminClient
	namespace  string
	key        string
	logger     *slog.Logger
	invalidate Invalidator

	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

// New creates a rule store over the given platform client. invalidate may be
// nil when no cache tier is wired.
func New(client platform.AdminClient, namespace, key string, logger *slog.Logger, invalidate Invalidator) *Store {
	if client == nil {
		panic("rulestore: platform client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		client:     client,
		namespace:  namespace,
		key:        key,
		logger:     logger,
		invalidate: invalidate,
		owners:     make(map[string]*sync.Mutex),
	}
}

// ListRules reads the current rule set. A missing or empty blob decodes to
// an empty set; a malformed blob fails with *CorruptStateError.
func (s *Store) ListRules(ctx context.Context, ownerID string) ([]Rule, error) {
	env, err := s.read(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if env.Rules == nil {
		return []Rule{}, nil
	}
	return env.Rules, nil
}

// AppendRule appends the rule to the owner's rule set. At most one rule per
// discount reference is kept: a stale entry with the same reference is
// replaced rather than duplicated.
func (s *Store) AppendRule(ctx context.Context, ownerID string, rule Rule) error {
	return s.mutate(ctx, ownerID, func(rules []Rule) []Rule {
		next := make([]Rule, 0, len(rules)+1)
		for _, r := range rules {
			if r.DiscountRef != rule.DiscountRef {
				next = append(next, r)
			}
		}
		return append(next, rule)
	})
}

// RemoveRuleByDiscountRef removes every rule whose discount reference equals
// the argument. Removing an absent reference is a no-op (idempotent).
func (s *Store) RemoveRuleByDiscountRef(ctx context.Context, ownerID, discountRef string) error {
	return s.mutate(ctx, ownerID, func(rules []Rule) []Rule {
		next := make([]Rule, 0, len(rules))
		for _, r := range rules {
			if r.DiscountRef != discountRef {
				next = append(next, r)
			}
		}
		return next
	})
}

// read fetches and decodes the blob.
func (s *Store) read(ctx context.Context, ownerID string) (envelope, error) {
	blob, ok, err := s.client.GetBlob(ctx, s.namespace, s.key)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to read rule set blob: %w", err)
	}
	if !ok {
		return envelope{}, nil
	}
	return decodeBlob(ownerID, blob)
}

// mutate runs one read-modify-write cycle under the owner's lock, retrying
// with a fresh read when the verify step observes a version conflict.
func (s *Store) mutate(ctx context.Context, ownerID string, fn func([]Rule) []Rule) error {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		env, err := s.read(ctx, ownerID)
		if err != nil {
			return err
		}

		next := envelope{
			Version: env.Version + 1,
			Rules:   fn(env.Rules),
		}

		blob, err := encodeBlob(next)
		if err != nil {
			return err
		}

		fieldErrs, err := s.client.SetBlob(ctx, ownerID, s.namespace, s.key, blob)
		if err != nil {
			return fmt.Errorf("failed to write rule set blob: %w", err)
		}
		if len(fieldErrs) > 0 {
			return fmt.Errorf("platform rejected rule set write: %s", platform.FirstMessage(fieldErrs))
		}

		// Verify: a concurrent out-of-process writer between our read and
		// write leaves a version other than the one we just stamped.
		verify, err := s.read(ctx, ownerID)
		if err != nil {
			return err
		}
		if verify.Version == next.Version {
			if s.invalidate != nil {
				s.invalidate.Invalidate(ctx, ownerID)
			}
			return nil
		}

		lastErr = fmt.Errorf("rule set version moved from %d to %d during write", env.Version, verify.Version)
		s.logger.Warn("rule set write conflict, retrying",
			slog.String("owner_id", ownerID),
			slog.Int("attempt", attempt),
			slog.Int64("expected_version", next.Version),
			slog.Int64("observed_version", verify.Version),
		)
	}

	return fmt.Errorf("rule set write conflict persisted after %d attempts: %w", writeAttempts, lastErr)
}

// ownerLock returns the mutex serializing writers for one owner.
func (s *Store) ownerLock(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.owners[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		s.owners[ownerID] = lock
	}
	return lock
}
