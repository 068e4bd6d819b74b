package lifecycle

// EventKind discriminates the normalized lifecycle events the engine handles
type EventKind string

const (
	IntentCaptured            EventKind = "intent_captured"
	SubscriptionStarted       EventKind = "subscription_started"
	SubscriptionConverted     EventKind = "subscription_converted"
	SubscriptionExpiredUnpaid EventKind = "subscription_expired_unpaid"
	PaymentFailed             EventKind = "payment_failed"
	SubscriptionCancelled     EventKind = "subscription_cancelled"
)

// Event is the canonical, ephemeral representation of one webhook occurrence
// (or one lead-capture submission). Empty optional fields mean the upstream
// payload carried no information; the engine bridges them from the stored
// record or applies configured fallbacks.
type Event struct {
	SubjectEmail string
	Kind         EventKind

	// Best-effort subject attributes from the payload
	FirstName string
	LastName  string
	Phone     string

	// Program is the offering slug from event metadata; empty when the
	// payment step was decoupled from the selection step.
	Program string

	// PlanName is the upstream plan/price description, used for tier mapping
	// on conversion.
	PlanName string

	// CustomerRef is the upstream customer identifier, when present
	CustomerRef string

	// Answers are intake-quiz responses attached opportunistically
	Answers map[string]string

	// IdempotencyKey is the upstream event identifier used to skip duplicate
	// deliveries when cheaply determinable.
	IdempotencyKey string
}

// OutcomeStatus classifies the result of one reconciliation pass
type OutcomeStatus string

const (
	// OutcomeOK means identity resolution, all downstream actions and the
	// final persist succeeded.
	OutcomeOK OutcomeStatus = "ok"

	// OutcomePartial means at least one downstream action failed but identity
	// resolution and persistence succeeded.
	OutcomePartial OutcomeStatus = "partial"

	// OutcomeRejected means the event was not actionable (no resolvable
	// email, unknown kind) and was acknowledged without processing.
	OutcomeRejected OutcomeStatus = "rejected"
)

// Outcome reports what one reconciliation pass achieved
type Outcome struct {
	Status OutcomeStatus
	Detail string

	// FailedActions names the downstream actions that failed this pass
	FailedActions []string
}
