package identity

import "context"

// Repository is the durable store of identity records, keyed by normalized
// email. Implementations must serialize conflicting writes per email so that
// concurrent reconciliation passes merge rather than clobber each other.
type Repository interface {
	// FindByEmail returns the record for the normalized email, or
	// shared.ErrNotFound when no record exists.
	FindByEmail(ctx context.Context, email string) (*Record, error)

	// UpsertIntent merges the profile into the record for email, creating the
	// record if absent. Coalesce-on-write applies to names and phone; program
	// and answers overwrite when provided. Returns the resulting record.
	UpsertIntent(ctx context.Context, email string, profile Profile) (*Record, error)

	// RecordExternalIDs sets any provided, non-empty external IDs and the new
	// lifecycle status for email. Idempotent, and atomic with respect to
	// concurrent calls for the same email: two passes assigning different IDs
	// must both survive.
	RecordExternalIDs(ctx context.Context, email string, ids ExternalIDs, status LifecycleStatus) error

	// MarkLost sets the lifecycle status to lost, leaving external IDs intact.
	MarkLost(ctx context.Context, email string) error

	// Save persists the full record state (used by intent capture after
	// in-memory mutation).
	Save(ctx context.Context, record *Record) error
}
