package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/barn/onboarding/internal/domain/identity"
	"github.com/barn/onboarding/internal/domain/integration"
	"github.com/barn/onboarding/internal/domain/program"
	"github.com/barn/onboarding/internal/domain/shared"
	"github.com/barn/onboarding/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Engine drives one reconciliation pass per lifecycle event: resolve the
// identity record, bridge the program choice, fan out to the downstream
// systems independently, and persist whatever was obtained. Downstream
// actions are best-effort, not transactional: a failed action is logged and
// re-attempted naturally by the next event for the same subject, because
// every pass re-derives current state instead of trusting a prior run.
type Engine struct {
	store       identity.Repository
	coaching    integration.CoachingPlatform
	crm         integration.CRM
	attribution integration.Attribution
	catalog     *program.Catalog
	logger      *zap.Logger

	trialTag   string
	trialStage string
	lostStage  string
}

// EngineConfig contains the dependencies and policy knobs for the Engine
type EngineConfig struct {
	Store       identity.Repository
	Coaching    integration.CoachingPlatform
	CRM         integration.CRM
	Attribution integration.Attribution
	Catalog     *program.Catalog
	Logger      *zap.Logger

	// TrialTag is the CRM tag applied while a subject is on trial
	TrialTag string
	// TrialStage is the pipeline stage for freshly started trials
	TrialStage string
	// LostStage is the pipeline stage for churned subjects
	LostStage string
}

// NewEngine creates a reconciliation engine
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		store:       cfg.Store,
		coaching:    cfg.Coaching,
		crm:         cfg.CRM,
		attribution: cfg.Attribution,
		catalog:     cfg.Catalog,
		logger:      cfg.Logger,
		trialTag:    cfg.TrialTag,
		trialStage:  cfg.TrialStage,
		lostStage:   cfg.LostStage,
	}
	if e.trialTag == "" {
		e.trialTag = "Trial Community"
	}
	if e.trialStage == "" {
		e.trialStage = "On Trial"
	}
	if e.lostStage == "" {
		e.lostStage = "Lost"
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// log returns the engine logger enriched with the provider event ID carried
// by the context, so reconciliation lines correlate with the delivery that
// triggered them.
func (e *Engine) log(ctx context.Context) *zap.Logger {
	if eventID := logger.GetEventID(ctx); eventID != "" {
		return e.logger.With(zap.String("event_id", eventID))
	}
	return e.logger
}

// Handle processes one lifecycle event. The returned error is non-nil only
// for store-level failures, the one case where the upstream should retry;
// downstream action failures are reported through the partial outcome.
func (e *Engine) Handle(ctx context.Context, event *Event) (*Outcome, error) {
	email := identity.NormalizeEmail(event.SubjectEmail)
	if email == "" {
		return &Outcome{Status: OutcomeRejected, Detail: "no resolvable subject email"}, nil
	}

	// Resolve the prior record first: the duplicate-delivery tie-break needs
	// the program and client ID as they were before this event merges in.
	prior, err := e.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve identity record: %w", err)
	}

	record, err := e.store.UpsertIntent(ctx, email, identity.Profile{
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Phone:     event.Phone,
		Program:   event.Program,
		Answers:   event.Answers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert identity record: %w", err)
	}

	if event.Kind == IntentCaptured {
		e.log(ctx).Info("Intent captured",
			zap.String("email", email),
			zap.String("program", record.SelectedProgram))
		return &Outcome{Status: OutcomeOK}, nil
	}

	// Bridge the program from the stored intent, then fall back to the
	// configured default; sync is never blocked on a missing program.
	programSlug := record.SelectedProgram
	if programSlug == "" {
		programSlug = e.catalog.DefaultSlug()
		record.AdoptProgram(programSlug)
		if err := e.store.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to persist default program: %w", err)
		}
		e.log(ctx).Warn("No program resolvable, applying configured default",
			zap.String("email", email),
			zap.String("program", programSlug))
	}

	switch event.Kind {
	case SubscriptionStarted:
		return e.handleStarted(ctx, event, prior, record, programSlug)
	case SubscriptionConverted:
		return e.handleConverted(ctx, event, record, programSlug)
	case SubscriptionExpiredUnpaid, SubscriptionCancelled:
		return e.handleChurn(ctx, record, true)
	case PaymentFailed:
		return e.handleChurn(ctx, record, false)
	default:
		return &Outcome{Status: OutcomeRejected, Detail: "unknown event kind"}, nil
	}
}

// handleStarted provisions both downstream systems for a new trial
func (e *Engine) handleStarted(ctx context.Context, event *Event, prior, record *identity.Record, programSlug string) (*Outcome, error) {
	var failed []string
	var ids identity.ExternalIDs

	// CRM: upsert contact, tag, open the trial opportunity
	contactID := record.CRMContactID
	if contactID == "" {
		var err error
		contactID, err = e.crm.UpsertContact(ctx, e.contactFor(record, programSlug), e.initialTags(programSlug))
		if err != nil {
			e.logActionFailure(ctx, "crm.upsert_contact", record.Email, err)
			failed = append(failed, "crm.upsert_contact")
		} else {
			ids.CRMContactID = contactID
		}
	}
	if contactID != "" {
		if err := e.crm.AddTags(ctx, contactID, []string{e.trialTag}); err != nil {
			e.logActionFailure(ctx, "crm.add_trial_tag", record.Email, err)
			failed = append(failed, "crm.add_trial_tag")
		}
		if err := e.crm.UpsertPipelineStage(ctx, contactID, e.trialStage, integration.OpportunityOpen); err != nil {
			e.logActionFailure(ctx, "crm.pipeline_stage", record.Email, err)
			failed = append(failed, "crm.pipeline_stage")
		}
	} else {
		e.log(ctx).Warn("Skipping CRM tag and pipeline actions: no contact ID",
			zap.String("email", record.Email))
	}

	// Coaching platform: create the client unless an earlier delivery for
	// this purchase already did, then assign the program.
	clientID := ""
	needAssign := false
	if prior != nil && prior.CoachingClientID != "" {
		clientID = prior.CoachingClientID
		// Duplicate delivery: re-assign only when the program changed
		needAssign = programSlug != prior.SelectedProgram && prior.SelectedProgram != ""
		if !needAssign {
			e.log(ctx).Info("Coaching client already assigned, skipping re-creation",
				zap.String("email", record.Email),
				zap.String("client_id", clientID))
		}
	} else {
		result, err := e.coaching.CreateOrFindClient(ctx, integration.NewClient{
			Email:     record.Email,
			FirstName: record.FirstName,
			LastName:  record.LastName,
			Phone:     record.Phone,
		})
		if err != nil {
			e.logActionFailure(ctx, "coaching.create_client", record.Email, err)
			failed = append(failed, "coaching.create_client")
		} else {
			clientID = result.ClientID
			ids.CoachingClientID = clientID
			needAssign = true
			if !result.Created {
				e.log(ctx).Info("Coaching client already existed upstream",
					zap.String("email", record.Email),
					zap.String("client_id", clientID))
			}
		}
	}
	if needAssign {
		if platformID := e.catalog.PlatformID(programSlug); platformID == "" {
			e.log(ctx).Warn("No coaching-platform mapping for program, skipping assignment",
				zap.String("email", record.Email),
				zap.String("program", programSlug))
		} else if err := e.coaching.AssignProgram(ctx, clientID, platformID); err != nil {
			e.logActionFailure(ctx, "coaching.assign_program", record.Email, err)
			failed = append(failed, "coaching.assign_program")
		}
	} else if clientID == "" {
		e.log(ctx).Warn("Skipping program assignment: coaching client creation failed",
			zap.String("email", record.Email))
	}

	e.sendAttribution(ctx, record, "StartTrial", programSlug, event.IdempotencyKey)

	// Partial success is preserved, never rolled back: whatever IDs this
	// pass obtained are written together with the new status.
	if err := e.store.RecordExternalIDs(ctx, record.Email, ids, identity.StatusTrialing); err != nil {
		return nil, fmt.Errorf("failed to persist external IDs: %w", err)
	}

	return outcomeFor(failed), nil
}

// handleConverted moves a trial that converted to paid into the won stage
func (e *Engine) handleConverted(ctx context.Context, event *Event, record *identity.Record, programSlug string) (*Outcome, error) {
	var failed []string
	var ids identity.ExternalIDs

	contactID := record.CRMContactID
	if contactID == "" {
		// Self-heal: a failed trial-time sync left no contact ID, so the
		// conversion pass creates the contact now.
		var err error
		contactID, err = e.crm.UpsertContact(ctx, e.contactFor(record, programSlug), e.initialTags(programSlug))
		if err != nil {
			e.logActionFailure(ctx, "crm.upsert_contact", record.Email, err)
			failed = append(failed, "crm.upsert_contact")
		} else {
			ids.CRMContactID = contactID
		}
	}

	if contactID != "" {
		if err := e.crm.RemoveTags(ctx, contactID, []string{e.trialTag}); err != nil {
			e.logActionFailure(ctx, "crm.remove_trial_tag", record.Email, err)
			failed = append(failed, "crm.remove_trial_tag")
		}
		stage := e.catalog.ConversionStage(firstNonEmpty(event.PlanName, programSlug))
		if err := e.crm.UpsertPipelineStage(ctx, contactID, stage, integration.OpportunityWon); err != nil {
			e.logActionFailure(ctx, "crm.pipeline_stage", record.Email, err)
			failed = append(failed, "crm.pipeline_stage")
		}
	} else {
		e.log(ctx).Warn("Skipping conversion pipeline actions: no contact ID",
			zap.String("email", record.Email))
	}

	e.sendAttribution(ctx, record, "Purchase", programSlug, event.IdempotencyKey)

	if err := e.store.RecordExternalIDs(ctx, record.Email, ids, identity.StatusActive); err != nil {
		return nil, fmt.Errorf("failed to persist external IDs: %w", err)
	}

	return outcomeFor(failed), nil
}

// handleChurn deactivates the coaching client and marks the CRM opportunity
// lost. External IDs stay on the record for potential reactivation.
func (e *Engine) handleChurn(ctx context.Context, record *identity.Record, removeTrialTag bool) (*Outcome, error) {
	var failed []string

	if record.CoachingClientID != "" {
		if err := e.coaching.DeactivateClient(ctx, record.CoachingClientID); err != nil {
			e.logActionFailure(ctx, "coaching.deactivate_client", record.Email, err)
			failed = append(failed, "coaching.deactivate_client")
		}
	} else {
		e.log(ctx).Warn("Skipping coaching deactivation: no client ID recorded",
			zap.String("email", record.Email))
	}

	if record.CRMContactID != "" {
		if err := e.crm.UpsertPipelineStage(ctx, record.CRMContactID, e.lostStage, integration.OpportunityLost); err != nil {
			e.logActionFailure(ctx, "crm.pipeline_stage", record.Email, err)
			failed = append(failed, "crm.pipeline_stage")
		}
		if removeTrialTag {
			if err := e.crm.RemoveTags(ctx, record.CRMContactID, []string{e.trialTag}); err != nil {
				e.logActionFailure(ctx, "crm.remove_trial_tag", record.Email, err)
				failed = append(failed, "crm.remove_trial_tag")
			}
		}
	} else {
		e.log(ctx).Warn("Skipping CRM lost marking: no contact ID recorded",
			zap.String("email", record.Email))
	}

	if err := e.store.MarkLost(ctx, record.Email); err != nil {
		return nil, fmt.Errorf("failed to mark record lost: %w", err)
	}

	return outcomeFor(failed), nil
}

// sendAttribution fires a conversion event, logging failures only
func (e *Engine) sendAttribution(ctx context.Context, record *identity.Record, eventName, programSlug, dedupeID string) {
	if e.attribution == nil {
		return
	}
	user := integration.AttributionUser{
		Email:     record.Email,
		Phone:     record.Phone,
		FirstName: record.FirstName,
		LastName:  record.LastName,
	}
	custom := map[string]any{"content_name": programSlug}
	if err := e.attribution.SendEvent(ctx, eventName, user, custom, dedupeID); err != nil {
		e.log(ctx).Warn("Attribution event failed",
			zap.String("event_name", eventName),
			zap.String("email", record.Email),
			zap.Error(err))
	}
}

func (e *Engine) contactFor(record *identity.Record, programSlug string) integration.Contact {
	return integration.Contact{
		Email:     record.Email,
		FirstName: record.FirstName,
		LastName:  record.LastName,
		Phone:     record.Phone,
		Program:   programSlug,
		Answers:   record.Answers,
	}
}

func (e *Engine) initialTags(programSlug string) []string {
	tags := []string{e.trialTag}
	if tag := e.catalog.CRMTag(programSlug); tag != "" {
		tags = append(tags, tag)
	}
	return tags
}

// logActionFailure logs one failed downstream action, distinguishing
// transient from permanent failures so operators can tell them apart.
func (e *Engine) logActionFailure(ctx context.Context, action, email string, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("email", email),
		zap.Error(err),
	}
	if errors.Is(err, shared.ErrAdapterRejected) {
		e.log(ctx).Error("Downstream action rejected (operator action required)", fields...)
		return
	}
	e.log(ctx).Warn("Downstream action failed, continuing with siblings", fields...)
}

func outcomeFor(failed []string) *Outcome {
	if len(failed) > 0 {
		return &Outcome{
			Status:        OutcomePartial,
			Detail:        fmt.Sprintf("%d downstream action(s) failed", len(failed)),
			FailedActions: failed,
		}
	}
	return &Outcome{Status: OutcomeOK}
}
