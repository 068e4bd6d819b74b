package handler

import (
	"github.com/barn/onboarding/internal/application/checkout"
	"github.com/gin-gonic/gin"
)

// CheckoutHandler handles checkout session endpoints
type CheckoutHandler struct {
	BaseHandler
	checkoutService *checkout.Service
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

// CreateSession captures the buyer's intent and opens a Stripe checkout session
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var cmd checkout.CreateSessionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.checkoutService.CreateSession(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// RegisterRoutes registers checkout routes on the versioned API group
func (h *CheckoutHandler) RegisterRoutes(rg *gin.RouterGroup) {
	co := rg.Group("/checkout")
	{
		co.POST("/session", h.CreateSession)
	}
}
