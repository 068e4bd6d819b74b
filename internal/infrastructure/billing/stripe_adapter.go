package billing

import (
	"context"
	"fmt"
	"maps"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/customer"
	"go.uber.org/zap"
)

// StripeAdapter implements Stripe billing operations: checkout session
// creation for new trials and customer lookups for webhook enrichment.
type StripeAdapter struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeAdapter creates a new Stripe adapter
func NewStripeAdapter(config *StripeConfig, logger *zap.Logger) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Initialize Stripe client
	config.InitStripeClient()

	return &StripeAdapter{
		config: config,
		logger: logger,
	}, nil
}

// ResolveCustomerEmail looks up the email address behind a Stripe customer
// reference. Subscription-scoped webhook events carry only this reference.
func (a *StripeAdapter) ResolveCustomerEmail(ctx context.Context, customerRef string) (string, error) {
	a.logger.Debug("Resolving Stripe customer email",
		zap.String("customer_id", customerRef))

	cust, err := customer.Get(customerRef, nil)
	if err != nil {
		a.logger.Error("Failed to get Stripe customer",
			zap.String("customer_id", customerRef),
			zap.Error(err))
		return "", fmt.Errorf("stripe: failed to get customer %s: %w", customerRef, err)
	}
	if cust.Email == "" {
		return "", fmt.Errorf("stripe: customer %s has no email", customerRef)
	}
	return cust.Email, nil
}

// CheckoutSessionInput contains the parameters for a new checkout session
type CheckoutSessionInput struct {
	Email       string
	ProgramSlug string
	Metadata    map[string]string
}

// CheckoutSessionOutput contains the created session
type CheckoutSessionOutput struct {
	SessionID string
	URL       string
}

// CreateCheckoutSession creates a subscription checkout session with the
// configured trial period. The caller's metadata rides on the session so the
// completion webhook can carry the captured intent back.
func (a *StripeAdapter) CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSessionOutput, error) {
	priceID, err := a.config.GetPriceID(input.ProgramSlug)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Creating Stripe checkout session",
		zap.String("email", input.Email),
		zap.String("program", input.ProgramSlug))

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(a.config.SuccessURL),
		CancelURL:           stripe.String(a.config.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
	}
	if input.Email != "" {
		params.CustomerEmail = stripe.String(input.Email)
	}
	if a.config.TrialPeriodDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(a.config.TrialPeriodDays),
		}
	}

	params.Metadata = map[string]string{
		"programSlug": input.ProgramSlug,
		"userEmail":   input.Email,
	}
	maps.Copy(params.Metadata, input.Metadata)

	sess, err := session.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe checkout session",
			zap.String("email", input.Email),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	a.logger.Info("Created Stripe checkout session",
		zap.String("session_id", sess.ID),
		zap.String("program", input.ProgramSlug))

	return &CheckoutSessionOutput{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}
