package handler

import (
	"io"
	"net/http"

	"github.com/barn/onboarding/internal/application/lifecycle"
	"github.com/gin-gonic/gin"
)

// Maximum webhook payload size (64KB - Stripe webhooks are typically small)
const maxWebhookPayloadSize = 65536

// WebhookHandler handles payment-provider webhook endpoints
// These endpoints are called by Stripe and do not require authentication
type WebhookHandler struct {
	BaseHandler
	webhookService *lifecycle.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhookService *lifecycle.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// WebhookResponse represents the response for a webhook delivery
type WebhookResponse struct {
	Received  bool     `json:"received"`
	EventID   string   `json:"event_id,omitempty"`
	EventType string   `json:"event_type,omitempty"`
	Outcome   string   `json:"outcome,omitempty"`
	Failed    []string `json:"failed_actions,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// HandleStripeWebhook receives and processes webhook events from Stripe.
//
// Status codes are chosen around Stripe's retry behavior: a 2xx acknowledges
// the delivery permanently, anything else makes Stripe redeliver. Identity
// store failures return 500 so the delivery is retried; everything else,
// including partial downstream failures, is acknowledged with 200.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// Read the raw request body with size limit. Stripe requires the raw
	// body for signature verification, so no binding here.
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookResponse{
			Received: false,
			Message:  "Failed to read request body",
		})
		return
	}

	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookResponse{
			Received: false,
			Message:  "Payload too large",
		})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusUnauthorized, WebhookResponse{
			Received: false,
			Message:  "Missing Stripe-Signature header",
		})
		return
	}

	result, err := h.webhookService.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		// No result means the signature did not verify
		if result == nil {
			c.JSON(http.StatusUnauthorized, WebhookResponse{
				Received: false,
				Message:  "Webhook signature verification failed",
			})
			return
		}

		// Identity store failure: ask Stripe to redeliver
		// Note: don't expose internal error details in the response
		c.JSON(http.StatusInternalServerError, WebhookResponse{
			Received:  false,
			EventID:   result.EventID,
			EventType: result.EventType,
			Message:   "Webhook processing failed, delivery will be retried",
		})
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Outcome:   result.Outcome,
		Failed:    result.Failed,
		Message:   result.Message,
	})
}

// RegisterRoutes registers webhook routes. The group is expected to be the
// bare engine group, not the versioned API group, so the webhook URL stays
// stable across API versions.
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/stripe", h.HandleStripeWebhook)
}
