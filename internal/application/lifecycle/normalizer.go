package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
)

// ErrEventNotActionable marks a webhook delivery this system can never
// process (unknown type, or an update that maps to no lifecycle transition).
// The dispatcher acknowledges such events so the upstream stops retrying.
var ErrEventNotActionable = errors.New("event not actionable")

// SplitName splits a display name into first/last at the first space. This is
// the single source of truth for the split rule.
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	if idx := strings.IndexByte(full, ' '); idx >= 0 {
		return full[:idx], strings.TrimSpace(full[idx+1:])
	}
	return full, ""
}

// Normalize converts a verified Stripe event into a canonical lifecycle
// event. It is a pure transform: missing email on subscription-scoped events
// is left empty together with the CustomerRef, and the dispatcher resolves it
// through the payment provider before handing the event to the engine.
func Normalize(event stripe.Event) (*Event, error) {
	switch event.Type {
	case "checkout.session.completed":
		return normalizeCheckoutCompleted(event)
	case "customer.subscription.updated":
		return normalizeSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		return normalizeSubscriptionDeleted(event)
	case "invoice.payment_failed":
		return normalizePaymentFailed(event)
	default:
		return nil, fmt.Errorf("%w: unhandled event type %s", ErrEventNotActionable, event.Type)
	}
}

func normalizeCheckoutCompleted(event stripe.Event) (*Event, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	// Explicit metadata beats the nested customer-details block; first
	// non-empty wins.
	email := firstNonEmpty(session.Metadata["userEmail"], session.CustomerEmail)
	var detailName, detailPhone string
	if session.CustomerDetails != nil {
		email = firstNonEmpty(email, session.CustomerDetails.Email)
		detailName = session.CustomerDetails.Name
		detailPhone = session.CustomerDetails.Phone
	}

	detailFirst, detailLast := SplitName(detailName)

	out := &Event{
		Kind:           SubscriptionStarted,
		SubjectEmail:   email,
		FirstName:      firstNonEmpty(session.Metadata["firstName"], detailFirst),
		LastName:       firstNonEmpty(session.Metadata["lastName"], detailLast),
		Phone:          firstNonEmpty(session.Metadata["phone"], detailPhone),
		Program:        session.Metadata["programSlug"],
		IdempotencyKey: session.ID,
	}
	if session.Customer != nil {
		out.CustomerRef = session.Customer.ID
	}
	return out, nil
}

func normalizeSubscriptionUpdated(event stripe.Event) (*Event, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	out := subscriptionEvent(event, &sub)

	switch {
	case sub.Status == stripe.SubscriptionStatusActive && previousStatus(event) == "trialing":
		out.Kind = SubscriptionConverted
	case sub.Status == stripe.SubscriptionStatusIncompleteExpired,
		sub.Status == stripe.SubscriptionStatusUnpaid:
		out.Kind = SubscriptionExpiredUnpaid
	default:
		return nil, fmt.Errorf("%w: subscription status %s maps to no transition", ErrEventNotActionable, sub.Status)
	}
	return out, nil
}

func normalizeSubscriptionDeleted(event stripe.Event) (*Event, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	out := subscriptionEvent(event, &sub)
	out.Kind = SubscriptionCancelled
	return out, nil
}

func normalizePaymentFailed(event stripe.Event) (*Event, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	out := &Event{
		Kind:           PaymentFailed,
		SubjectEmail:   invoice.CustomerEmail,
		IdempotencyKey: invoice.ID,
	}
	if invoice.Customer != nil {
		out.CustomerRef = invoice.Customer.ID
	}
	return out, nil
}

// subscriptionEvent extracts the fields shared by subscription-scoped events
func subscriptionEvent(event stripe.Event, sub *stripe.Subscription) *Event {
	out := &Event{
		Program:        sub.Metadata["programSlug"],
		IdempotencyKey: event.ID,
	}
	if sub.Customer != nil {
		out.CustomerRef = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PlanName = sub.Items.Data[0].Price.Nickname
	}
	return out
}

// previousStatus reads previous_attributes.status from the raw event
func previousStatus(event stripe.Event) string {
	if event.Data == nil {
		return ""
	}
	status, _ := event.Data.PreviousAttributes["status"].(string)
	return status
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
