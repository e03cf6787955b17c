package config

import (
	"fmt"
	"time"
)

// Identity key dimensions for access log entries. The platform exposes both
// a stable customer id and a human-readable display name; which one keys the
// log has varied across app revisions, so it is an explicit choice here.
const (
	IdentityKeyID          = "id"
	IdentityKeyDisplayName = "display_name"
)

// AccessLogConfig configures the asynchronous access log sink.
type AccessLogConfig struct {
	// QueueSize bounds the in-memory buffer between the request path and
	// the drain worker. When full, new entries are dropped, not blocked on.
	QueueSize int `envconfig:"QUEUE_SIZE" default:"256" validate:"min=1"`

	// WriteTimeout bounds a single log insert performed by the worker.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"5s"`

	// IdentityKey selects which customer identity dimension keys log
	// entries: "id" (stable platform identifier) or "display_name".
	IdentityKey string `envconfig:"IDENTITY_KEY" default:"id"`
}

// Validate checks if the access log configuration is valid.
func (c *AccessLogConfig) Validate() error {
	switch c.IdentityKey {
	case IdentityKeyID, IdentityKeyDisplayName:
		return nil
	default:
		return fmt.Errorf("accesslog identity key must be %q or %q, got %q",
			IdentityKeyID, IdentityKeyDisplayName, c.IdentityKey)
	}
}

// SweeperConfig configures the provision intent reconciliation worker.
type SweeperConfig struct {
	// Interval is the duration between reconciliation cycles.
	Interval time.Duration `envconfig:"INTERVAL" default:"5m"`

	// MinAge is how old a dangling intent must be before the sweeper
	// touches it, so it never races an in-flight provisioning request.
	MinAge time.Duration `envconfig:"MIN_AGE" default:"10m"`

	// BatchSize caps how many intents one cycle processes.
	BatchSize int `envconfig:"BATCH_SIZE" default:"50" validate:"min=1"`
}
