package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/barn/onboarding/internal/domain/identity"
	"github.com/barn/onboarding/internal/domain/program"
	"github.com/barn/onboarding/internal/domain/shared"
	"github.com/barn/onboarding/internal/infrastructure/billing"
	"go.uber.org/zap"
)

// SessionCreator creates hosted checkout sessions with the payment provider
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, input billing.CheckoutSessionInput) (*billing.CheckoutSessionOutput, error)
}

// Service starts a paid signup: it captures the intent locally, then creates
// a provider checkout session whose metadata carries the intent back on the
// completion webhook.
type Service struct {
	billing SessionCreator
	store   identity.Repository
	catalog *program.Catalog
	logger  *zap.Logger
}

// ServiceConfig contains configuration for Service
type ServiceConfig struct {
	Billing SessionCreator
	Store   identity.Repository
	Catalog *program.Catalog
	Logger  *zap.Logger
}

// NewService creates a new checkout service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		billing: cfg.Billing,
		store:   cfg.Store,
		catalog: cfg.Catalog,
		logger:  logger,
	}
}

// CreateSessionCommand contains the checkout request fields
type CreateSessionCommand struct {
	Email     string `json:"email" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Program   string `json:"program"`
}

// SessionResult contains the created checkout session
type SessionResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateSession captures the intent and opens a checkout session
func (s *Service) CreateSession(ctx context.Context, cmd CreateSessionCommand) (*SessionResult, error) {
	email := identity.NormalizeEmail(cmd.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, shared.NewDomainError("INVALID_EMAIL", "a valid email is required")
	}

	programSlug := cmd.Program
	if programSlug == "" {
		programSlug = s.catalog.DefaultSlug()
	}

	// Intent is captured before payment so the completion webhook can bridge
	// back to it even when the provider strips metadata.
	if _, err := s.store.UpsertIntent(ctx, email, identity.Profile{
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		Phone:     cmd.Phone,
		Program:   programSlug,
	}); err != nil {
		return nil, fmt.Errorf("failed to capture checkout intent: %w", err)
	}

	session, err := s.billing.CreateCheckoutSession(ctx, billing.CheckoutSessionInput{
		Email:       email,
		ProgramSlug: programSlug,
		Metadata: map[string]string{
			"firstName": cmd.FirstName,
			"lastName":  cmd.LastName,
			"phone":     cmd.Phone,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("Checkout session created",
		zap.String("email", email),
		zap.String("program", programSlug),
		zap.String("session_id", session.SessionID))

	return &SessionResult{
		SessionID: session.SessionID,
		URL:       session.URL,
	}, nil
}
