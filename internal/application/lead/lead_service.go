package lead

import (
	"context"
	"fmt"
	"strings"

	"github.com/barn/onboarding/internal/domain/identity"
	"github.com/barn/onboarding/internal/domain/shared"
	"go.uber.org/zap"
)

// Service captures pre-purchase intent. A lead submission creates or enriches
// the identity record so that later payment events can bridge back to the
// program the person chose.
type Service struct {
	store  identity.Repository
	logger *zap.Logger
}

// ServiceConfig contains configuration for Service
type ServiceConfig struct {
	Store  identity.Repository
	Logger *zap.Logger
}

// NewService creates a new lead service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  cfg.Store,
		logger: logger,
	}
}

// CaptureCommand contains the submitted lead fields
type CaptureCommand struct {
	Email     string            `json:"email" binding:"required"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Phone     string            `json:"phone"`
	Program   string            `json:"program"`
	Answers   map[string]string `json:"answers"`
}

// Capture records a lead submission, merging into any existing record
func (s *Service) Capture(ctx context.Context, cmd CaptureCommand) (*identity.Record, error) {
	email := identity.NormalizeEmail(cmd.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, shared.NewDomainError("INVALID_EMAIL", "a valid email is required")
	}

	record, err := s.store.UpsertIntent(ctx, email, identity.Profile{
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		Phone:     cmd.Phone,
		Program:   cmd.Program,
		Answers:   cmd.Answers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture lead: %w", err)
	}

	s.logger.Info("Lead captured",
		zap.String("email", email),
		zap.String("program", record.SelectedProgram))
	return record, nil
}

// Find returns the identity record for an email, if one exists
func (s *Service) Find(ctx context.Context, email string) (*identity.Record, error) {
	normalized := identity.NormalizeEmail(email)
	if normalized == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "a valid email is required")
	}
	return s.store.FindByEmail(ctx, normalized)
}
