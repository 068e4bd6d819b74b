package handler

import (
	"github.com/barn/onboarding/internal/application/lead"
	"github.com/barn/onboarding/internal/domain/identity"
	"github.com/gin-gonic/gin"
)

// LeadHandler handles lead capture endpoints
type LeadHandler struct {
	BaseHandler
	leadService *lead.Service
}

// NewLeadHandler creates a new LeadHandler
func NewLeadHandler(leadService *lead.Service) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
	}
}

// LeadResponse represents an identity record in API responses
type LeadResponse struct {
	Email           string            `json:"email"`
	FirstName       string            `json:"first_name,omitempty"`
	LastName        string            `json:"last_name,omitempty"`
	Phone           string            `json:"phone,omitempty"`
	SelectedProgram string            `json:"selected_program,omitempty"`
	Status          string            `json:"status"`
	Answers         map[string]string `json:"answers,omitempty"`
}

func toLeadResponse(r *identity.Record) LeadResponse {
	return LeadResponse{
		Email:           r.Email,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Phone:           r.Phone,
		SelectedProgram: r.SelectedProgram,
		Status:          string(r.Status),
		Answers:         r.Answers,
	}
}

// CaptureLead records a quiz or landing-page submission
func (h *LeadHandler) CaptureLead(c *gin.Context) {
	var cmd lead.CaptureCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	record, err := h.leadService.Capture(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toLeadResponse(record))
}

// GetLead returns the identity record for an email
func (h *LeadHandler) GetLead(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		h.BadRequest(c, "email query parameter is required")
		return
	}

	record, err := h.leadService.Find(c.Request.Context(), email)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toLeadResponse(record))
}

// RegisterRoutes registers lead routes on the versioned API group
func (h *LeadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	leads := rg.Group("/leads")
	{
		leads.POST("", h.CaptureLead)
		leads.GET("", h.GetLead)
	}
}
