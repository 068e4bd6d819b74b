package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed webhook event IDs so duplicate deliveries
// can be skipped cheaply. It is an optimization, not a correctness mechanism:
// the reconciliation engine re-derives full state on every event, so a missed
// dedupe only costs redundant work.
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for processed event IDs. After this duration
	// the same event ID can be processed again.
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
