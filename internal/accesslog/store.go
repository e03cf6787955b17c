// Package accesslog records classified storefront access events in the
// local PostgreSQL store and serves them back for reporting. Writes go
// through a bounded asynchronous sink: logging is advisory telemetry, never
// a transactional side effect of granting access.
package accesslog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfigueredo/viptier/internal/validation"
)

// Entry mirrors one row of the 'vip_login_logs' table. Entries are
// immutable once persisted.
type Entry struct {
	ID int64 `db:"id"`

	// Shop is the storefront domain the event belongs to.
	Shop string `db:"shop"`

	// CustomerKey is the identity dimension chosen by the caller: either
	// the stable platform id or the display name (config-selected). It is
	// deliberately not unified here.
	CustomerKey string `db:"customer_key"`

	// TagSnapshot is the comma-joined list of matched tags at access time.
	TagSnapshot string `db:"customer_tag"`

	// OrdersCount is the customer's order count snapshot at access time.
	OrdersCount int64 `db:"orders_count"`

	// CreatedAt is assigned by the store at write time.
	CreatedAt time.Time `db:"created_at"`
}

// LogRepository defines the persistence operations for access log entries.
type LogRepository interface {
	// InsertEntry appends an entry and populates ID and CreatedAt.
	InsertEntry(ctx context.Context, e *Entry) error

	// ListByShop returns up to limit entries for the shop, newest first.
	ListByShop(ctx context.Context, shop string, limit int) ([]Entry, error)
}

// Compile-time check to verify that PostgresLogStore implements LogRepository.
var _ LogRepository = (*PostgresLogStore)(nil)

// PostgresLogStore is the LogRepository implementation backed by PostgreSQL.
type PostgresLogStore struct {
	db *pgxpool.Pool
}

// NewPostgresLogStore creates a new repository instance with the given
// connection pool.
func NewPostgresLogStore(db *pgxpool.Pool) *PostgresLogStore {
	validation.AssertNotNil(db, "database pool")
	return &PostgresLogStore{db: db}
}

// InsertEntry appends a new access log entry.
// It uses the RETURNING clause to get the server-generated id and timestamp.
func (s *PostgresLogStore) InsertEntry(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO vip_login_logs (shop, customer_key, customer_tag, orders_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := s.db.QueryRow(ctx, query,
		e.Shop,
		e.CustomerKey,
		e.TagSnapshot,
		e.OrdersCount,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert access log entry: %w", err)
	}

	return nil
}

// ListByShop retrieves the shop's entries in descending timestamp order,
// the order the aggregator assumes.
func (s *PostgresLogStore) ListByShop(ctx context.Context, shop string, limit int) ([]Entry, error) {
	query := `
		SELECT id, shop, customer_key, customer_tag, orders_count, created_at
		FROM vip_login_logs
		WHERE shop = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, shop, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list access log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.Shop,
			&e.CustomerKey,
			&e.TagSnapshot,
			&e.OrdersCount,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan access log row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}
