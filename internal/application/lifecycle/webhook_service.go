package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/barn/onboarding/internal/domain/integration"
	"github.com/barn/onboarding/internal/domain/shared"
	"github.com/barn/onboarding/internal/infrastructure/billing"
	"github.com/barn/onboarding/internal/infrastructure/logger"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// WebhookService verifies, deduplicates, and dispatches payment-provider
// webhook deliveries to the reconciliation engine.
type WebhookService struct {
	config      *billing.StripeConfig
	engine      *Engine
	provider    integration.PaymentProvider
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	logger      *zap.Logger
}

// WebhookServiceConfig contains configuration for WebhookService
type WebhookServiceConfig struct {
	Config      *billing.StripeConfig
	Engine      *Engine
	Provider    integration.PaymentProvider
	Idempotency shared.IdempotencyStore
	IdemConfig  shared.IdempotencyConfig
	Logger      *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		config:      cfg.Config,
		engine:      cfg.Engine,
		provider:    cfg.Provider,
		idempotency: cfg.Idempotency,
		idemConfig:  cfg.IdemConfig,
		logger:      logger,
	}
}

// WebhookResult contains the result of processing a webhook delivery
type WebhookResult struct {
	EventID   string   `json:"event_id"`
	EventType string   `json:"event_type"`
	Processed bool     `json:"processed"`
	Outcome   string   `json:"outcome,omitempty"`
	Failed    []string `json:"failed_actions,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// ProcessWebhook verifies the delivery signature and runs one reconciliation
// pass. The returned error is reserved for failures worth an upstream retry
// (store errors); everything else is acknowledged through the result so the
// provider stops redelivering.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature",
			zap.Error(err))
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	return s.processEvent(ctx, event)
}

// processEvent dispatches one verified event. The event ID is attached to the
// context and the logger so every line written while reconciling this
// delivery carries it.
func (s *WebhookService) processEvent(ctx context.Context, event stripe.Event) (*WebhookResult, error) {
	ctx, log := logger.WithEventID(ctx, s.logger, event.ID)
	log.Info("Processing webhook event",
		zap.String("event_type", string(event.Type)))

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	if s.isDuplicate(ctx, event.ID) {
		log.Info("Duplicate webhook delivery, acknowledging without reprocessing")
		result.Message = "duplicate delivery"
		return result, nil
	}

	lifecycleEvent, err := Normalize(event)
	if err != nil {
		if errors.Is(err, ErrEventNotActionable) {
			log.Debug("Webhook event maps to no lifecycle transition",
				zap.String("event_type", string(event.Type)))
			result.Message = "event not actionable"
			return result, nil
		}
		log.Error("Failed to normalize webhook event",
			zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, nil
	}

	// Subscription-scoped deliveries carry only a customer reference; the
	// subject email is resolved through the provider before reconciliation.
	if lifecycleEvent.SubjectEmail == "" && lifecycleEvent.CustomerRef != "" {
		email, err := s.provider.ResolveCustomerEmail(ctx, lifecycleEvent.CustomerRef)
		if err != nil {
			log.Error("Failed to resolve customer email",
				zap.String("customer_ref", lifecycleEvent.CustomerRef),
				zap.Error(err))
			result.Processed = false
			result.Message = "customer email unresolvable"
			return result, nil
		}
		lifecycleEvent.SubjectEmail = email
	}

	outcome, err := s.engine.Handle(ctx, lifecycleEvent)
	if err != nil {
		log.Error("Failed to reconcile lifecycle event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	result.Outcome = string(outcome.Status)
	result.Failed = outcome.FailedActions
	result.Message = outcome.Detail
	if outcome.Status == OutcomeRejected {
		result.Processed = false
	}
	return result, nil
}

// isDuplicate consults the dedupe ledger. The ledger is an optimization on
// top of the structurally idempotent engine, so ledger failures degrade to
// reprocessing instead of blocking the delivery.
func (s *WebhookService) isDuplicate(ctx context.Context, eventID string) bool {
	if s.idempotency == nil || !s.idemConfig.Enabled {
		return false
	}
	firstTime, err := s.idempotency.MarkProcessed(ctx, eventID, s.idemConfig.TTL)
	if err != nil {
		s.logger.Warn("Idempotency ledger unavailable, reprocessing event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return false
	}
	return !firstTime
}
