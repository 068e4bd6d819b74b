package integration

import "context"

// NewClient carries the attributes needed to create a coaching-platform client
type NewClient struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// ClientResult distinguishes a freshly created client from a pre-existing one,
// so the engine knows whether a separate program assignment is still required.
type ClientResult struct {
	ClientID string
	Created  bool
}

// CoachingPlatform is the capability interface over the coaching system
type CoachingPlatform interface {
	CreateOrFindClient(ctx context.Context, client NewClient) (*ClientResult, error)
	AssignProgram(ctx context.Context, clientID, programID string) error
	DeactivateClient(ctx context.Context, clientID string) error
}

// Contact carries the attributes synced to the CRM contact record
type Contact struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Program   string
	Answers   map[string]string
}

// OpportunityStatus is the CRM pipeline opportunity status
type OpportunityStatus string

const (
	OpportunityOpen OpportunityStatus = "open"
	OpportunityWon  OpportunityStatus = "won"
	OpportunityLost OpportunityStatus = "lost"
)

// CRM is the capability interface over the CRM system
type CRM interface {
	UpsertContact(ctx context.Context, contact Contact, tags []string) (string, error)
	AddTags(ctx context.Context, contactID string, tags []string) error
	RemoveTags(ctx context.Context, contactID string, tags []string) error
	UpsertPipelineStage(ctx context.Context, contactID, stageName string, status OpportunityStatus) error
}

// AttributionUser carries the identifiers the attribution service hashes
type AttributionUser struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
}

// Attribution is the fire-and-forget conversion-tracking interface. Failures
// are logged by implementations and must never block lifecycle progression.
type Attribution interface {
	SendEvent(ctx context.Context, eventName string, user AttributionUser, customData map[string]any, dedupeID string) error
}

// PaymentProvider resolves upstream customer references when a webhook
// payload arrives without a subject email.
type PaymentProvider interface {
	ResolveCustomerEmail(ctx context.Context, customerRef string) (string, error)
}
