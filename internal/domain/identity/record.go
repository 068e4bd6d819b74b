package identity

import (
	"strings"
	"time"

	"github.com/barn/onboarding/internal/domain/shared"
	"github.com/google/uuid"
)

// LifecycleStatus represents where a subject is in the onboarding lifecycle
type LifecycleStatus string

const (
	StatusPending  LifecycleStatus = "pending"  // intent captured, no payment yet
	StatusTrialing LifecycleStatus = "trialing" // trial subscription started
	StatusActive   LifecycleStatus = "active"   // trial converted to paid
	StatusLost     LifecycleStatus = "lost"     // cancelled, expired or payment failed
)

// Record is the aggregate root for one subject being onboarded. The subject is
// identified by normalized email; every external system's assigned identifier
// is stored here so later webhook deliveries can be reconciled against it.
type Record struct {
	ID               uuid.UUID
	Email            string // lower-cased, trimmed; immutable once created
	FirstName        string
	LastName         string
	Phone            string
	SelectedProgram  string
	CoachingClientID string // assigned by the coaching platform; never cleared once set
	CRMContactID     string // assigned by the CRM; never cleared once set
	Status           LifecycleStatus
	Answers          map[string]string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NormalizeEmail canonicalizes an email for use as the record key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewRecord creates a record for a previously unseen subject
func NewRecord(email string) (*Record, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email is required and must contain '@'")
	}
	now := time.Now()
	return &Record{
		ID:        uuid.New(),
		Email:     normalized,
		Status:    StatusPending,
		Answers:   make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Profile carries the best-effort subject attributes an event or lead form
// may provide. Empty fields mean "no information", not "clear the value".
type Profile struct {
	FirstName string
	LastName  string
	Phone     string
	Program   string
	Answers   map[string]string
}

// MergeProfile applies coalesce-on-write: a non-empty incoming value overwrites,
// an empty incoming value never erases what is already known. Program and
// answers overwrite when provided (a later authoritative event wins).
func (r *Record) MergeProfile(p Profile) {
	if p.FirstName != "" {
		r.FirstName = p.FirstName
	}
	if p.LastName != "" {
		r.LastName = p.LastName
	}
	if p.Phone != "" {
		r.Phone = p.Phone
	}
	if p.Program != "" {
		r.SelectedProgram = p.Program
	}
	if len(p.Answers) > 0 {
		if r.Answers == nil {
			r.Answers = make(map[string]string, len(p.Answers))
		}
		for k, v := range p.Answers {
			r.Answers[k] = v
		}
	}
	r.UpdatedAt = time.Now()
}

// AdoptProgram sets the program only when none is recorded yet. Used for the
// engine's default-program fallback so a configured default never overrides a
// bridged intent.
func (r *Record) AdoptProgram(program string) {
	if r.SelectedProgram == "" && program != "" {
		r.SelectedProgram = program
		r.UpdatedAt = time.Now()
	}
}

// ExternalIDs carries identifiers obtained from downstream systems in one
// reconciliation pass. Empty fields mean the ID was not obtained this pass.
type ExternalIDs struct {
	CoachingClientID string
	CRMContactID     string
}

// AttachExternalIDs records any newly obtained downstream IDs and the new
// lifecycle status. Re-setting the same ID is a no-op; a set ID is never
// cleared by a later event.
func (r *Record) AttachExternalIDs(ids ExternalIDs, status LifecycleStatus) {
	if ids.CoachingClientID != "" && r.CoachingClientID == "" {
		r.CoachingClientID = ids.CoachingClientID
	}
	if ids.CRMContactID != "" && r.CRMContactID == "" {
		r.CRMContactID = ids.CRMContactID
	}
	r.Status = status
	r.UpdatedAt = time.Now()
}

// MarkLost transitions the record to lost while leaving external IDs intact
// for potential reactivation.
func (r *Record) MarkLost() {
	r.Status = StatusLost
	r.UpdatedAt = time.Now()
}

// IsTrialing reports whether the subject is currently in a trial
func (r *Record) IsTrialing() bool {
	return r.Status == StatusTrialing
}

// FullName returns the display name, best effort
func (r *Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}
