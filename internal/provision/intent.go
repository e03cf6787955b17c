package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfigueredo/viptier/internal/validation"
)

// Intent states. An intent is recorded before the first remote call so a
// crash mid-saga leaves a durable record the sweeper can reconcile.
const (
	// IntentPending: recorded, remote provisioning in flight.
	IntentPending = "pending"
	// IntentSucceeded: both resources exist and the rule is bookkept.
	IntentSucceeded = "succeeded"
	// IntentFailed: provisioning failed before any resource was created.
	IntentFailed = "failed"
	// IntentCompensating: the segment exists but the discount failed and
	// the compensating segment delete did not go through; the sweeper
	// retries it.
	IntentCompensating = "compensating"
	// IntentCompensated: the orphaned segment was cleaned up.
	IntentCompensated = "compensated"
)

// Intent mirrors one row of the 'provision_intents' table.
type Intent struct {
	ID         string    `db:"id"`
	Shop       string    `db:"shop"`
	Tag        string    `db:"tag"`
	Title      string    `db:"title"`
	Percentage float64   `db:"percentage"`
	State      string    `db:"state"`
	SegmentID  string    `db:"segment_id"`
	DiscountID string    `db:"discount_id"`
	Detail     string    `db:"detail"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// IntentRepository defines the persistence operations for provision intents.
// Using an interface allows for dependency injection and easier mocking in
// tests.
type IntentRepository interface {
	// CreateIntent inserts a pending intent and populates timestamps.
	CreateIntent(ctx context.Context, i *Intent) error

	// MarkSegmentCreated records the segment id on the intent.
	MarkSegmentCreated(ctx context.Context, id, segmentID string) error

	// FinishIntent moves the intent to a terminal (or sweeper-owned)
	// state with a human-readable detail.
	FinishIntent(ctx context.Context, id, state, detail string) error

	// ListDangling returns intents stuck in pending or compensating state
	// whose last update is older than the cutoff, oldest first.
	ListDangling(ctx context.Context, updatedBefore time.Time, limit int) ([]*Intent, error)
}

// Compile-time check to verify that PostgresIntentStore implements
// IntentRepository.
var _ IntentRepository = (*PostgresIntentStore)(nil)

// PostgresIntentStore is the IntentRepository implementation backed by
// PostgreSQL.
type PostgresIntentStore struct {
	db *pgxpool.Pool
}

// NewPostgresIntentStore creates a new repository instance with the given
// connection pool.
func NewPostgresIntentStore(db *pgxpool.Pool) *PostgresIntentStore {
	validation.AssertNotNil(db, "database pool")
	return &PostgresIntentStore{db: db}
}

// CreateIntent inserts a pending intent row.
func (s *PostgresIntentStore) CreateIntent(ctx context.Context, i *Intent) error {
	query := `
		INSERT INTO provision_intents (id, shop, tag, title, percentage, state, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		i.ID,
		i.Shop,
		i.Tag,
		i.Title,
		i.Percentage,
		i.State,
		i.Detail,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert provision intent: %w", err)
	}

	return nil
}

// MarkSegmentCreated records the created segment id on the intent.
func (s *PostgresIntentStore) MarkSegmentCreated(ctx context.Context, id, segmentID string) error {
	query := `
		UPDATE provision_intents
		SET segment_id = $2, updated_at = now()
		WHERE id = $1
	`

	if _, err := s.db.Exec(ctx, query, id, segmentID); err != nil {
		return fmt.Errorf("failed to mark segment on intent %s: %w", id, err)
	}
	return nil
}

// FinishIntent moves the intent to its final state.
func (s *PostgresIntentStore) FinishIntent(ctx context.Context, id, state, detail string) error {
	query := `
		UPDATE provision_intents
		SET state = $2, detail = $3, updated_at = now()
		WHERE id = $1
	`

	if _, err := s.db.Exec(ctx, query, id, state, detail); err != nil {
		return fmt.Errorf("failed to finish intent %s: %w", id, err)
	}
	return nil
}

// ListDangling returns stale pending/compensating intents, oldest first.
func (s *PostgresIntentStore) ListDangling(ctx context.Context, updatedBefore time.Time, limit int) ([]*Intent, error) {
	query := `
		SELECT id, shop, tag, title, percentage, state, segment_id, discount_id, detail, created_at, updated_at
		FROM provision_intents
		WHERE state IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at ASC
		LIMIT $4
	`

	rows, err := s.db.Query(ctx, query, IntentPending, IntentCompensating, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dangling intents: %w", err)
	}
	defer rows.Close()

	intents := make([]*Intent, 0, limit)
	for rows.Next() {
		var i Intent
		if err := rows.Scan(
			&i.ID,
			&i.Shop,
			&i.Tag,
			&i.Title,
			&i.Percentage,
			&i.State,
			&i.SegmentID,
			&i.DiscountID,
			&i.Detail,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan intent row: %w", err)
		}
		intents = append(intents, &i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return intents, nil
}
