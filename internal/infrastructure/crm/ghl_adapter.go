package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/barn/onboarding/internal/domain/integration"
	"github.com/barn/onboarding/internal/domain/shared"
	"go.uber.org/zap"
)

// maxGHLResponseSize limits the response body size
const maxGHLResponseSize = 1 * 1024 * 1024 // 1MB max response

// GHLAdapter implements the CRM interface for GoHighLevel
type GHLAdapter struct {
	config     *GHLConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.CRM = (*GHLAdapter)(nil)

// NewGHLAdapter creates a new GoHighLevel adapter
func NewGHLAdapter(config *GHLConfig, logger *zap.Logger) (*GHLAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GHLAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// UpsertContact creates or updates the contact keyed by email and returns
// the contact ID.
func (a *GHLAdapter) UpsertContact(ctx context.Context, contact integration.Contact, tags []string) (string, error) {
	payload := ghlUpsertContactRequest{
		LocationID: a.config.LocationID,
		Email:      contact.Email,
		FirstName:  contact.FirstName,
		LastName:   contact.LastName,
		Phone:      contact.Phone,
		Tags:       tags,
	}
	for key, value := range contact.Answers {
		payload.CustomFields = append(payload.CustomFields, ghlCustomField{Key: key, Value: value})
	}

	body, status, err := a.doRequest(ctx, http.MethodPost, "/contacts/upsert", payload)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", a.apiError("contacts/upsert", status, body)
	}

	var resp ghlUpsertContactResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ghl: failed to decode upsert response: %w", err)
	}
	if resp.Contact.ID == "" {
		return "", fmt.Errorf("%w: upsert returned no contact ID", shared.ErrAdapterRejected)
	}

	a.logger.Info("Upserted GHL contact",
		zap.String("email", contact.Email),
		zap.String("contact_id", resp.Contact.ID))
	return resp.Contact.ID, nil
}

// AddTags adds tags to a contact
func (a *GHLAdapter) AddTags(ctx context.Context, contactID string, tags []string) error {
	path := fmt.Sprintf("/contacts/%s/tags", url.PathEscape(contactID))
	body, status, err := a.doRequest(ctx, http.MethodPost, path, ghlTagsRequest{Tags: tags})
	if err != nil {
		return err
	}
	if status >= 400 {
		return a.apiError("contacts/tags add", status, body)
	}
	return nil
}

// RemoveTags removes tags from a contact
func (a *GHLAdapter) RemoveTags(ctx context.Context, contactID string, tags []string) error {
	path := fmt.Sprintf("/contacts/%s/tags", url.PathEscape(contactID))
	body, status, err := a.doRequest(ctx, http.MethodDelete, path, ghlTagsRequest{Tags: tags})
	if err != nil {
		return err
	}
	if status >= 400 {
		return a.apiError("contacts/tags remove", status, body)
	}
	return nil
}

// UpsertPipelineStage moves the contact's opportunity in the configured
// pipeline to the named stage, creating the opportunity when none exists.
func (a *GHLAdapter) UpsertPipelineStage(ctx context.Context, contactID, stageName string, status integration.OpportunityStatus) error {
	stageID, ok := a.config.StageIDs[stageName]
	if !ok {
		return fmt.Errorf("%w: no stage ID configured for stage %q", shared.ErrAdapterRejected, stageName)
	}

	opportunityID, err := a.findOpportunity(ctx, contactID)
	if err != nil {
		return err
	}

	if opportunityID == "" {
		payload := ghlOpportunityRequest{
			LocationID:      a.config.LocationID,
			PipelineID:      a.config.PipelineID,
			PipelineStageID: stageID,
			ContactID:       contactID,
			Name:            stageName,
			Status:          string(status),
		}
		body, code, err := a.doRequest(ctx, http.MethodPost, "/opportunities/", payload)
		if err != nil {
			return err
		}
		if code >= 400 {
			return a.apiError("opportunities create", code, body)
		}
		a.logger.Info("Created GHL opportunity",
			zap.String("contact_id", contactID),
			zap.String("stage", stageName))
		return nil
	}

	payload := ghlOpportunityRequest{
		PipelineStageID: stageID,
		Status:          string(status),
	}
	path := fmt.Sprintf("/opportunities/%s", url.PathEscape(opportunityID))
	body, code, err := a.doRequest(ctx, http.MethodPut, path, payload)
	if err != nil {
		return err
	}
	if code >= 400 {
		return a.apiError("opportunities update", code, body)
	}
	a.logger.Info("Updated GHL opportunity",
		zap.String("contact_id", contactID),
		zap.String("opportunity_id", opportunityID),
		zap.String("stage", stageName))
	return nil
}

// findOpportunity returns the contact's opportunity ID in the configured
// pipeline, or "" when the contact has none yet.
func (a *GHLAdapter) findOpportunity(ctx context.Context, contactID string) (string, error) {
	path := fmt.Sprintf("/opportunities/search?location_id=%s&contact_id=%s",
		url.QueryEscape(a.config.LocationID), url.QueryEscape(contactID))

	body, status, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", a.apiError("opportunities/search", status, body)
	}

	var resp ghlOpportunitySearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ghl: failed to decode opportunity search: %w", err)
	}
	for _, opp := range resp.Opportunities {
		if opp.PipelineID == a.config.PipelineID {
			return opp.ID, nil
		}
	}
	return "", nil
}

// doRequest executes one API call and returns the body and status code
func (a *GHLAdapter) doRequest(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("ghl: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("ghl: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)
	req.Header.Set("Version", GHLAPIVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", shared.ErrAdapterUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGHLResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("ghl: failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// apiError maps an HTTP error status to the adapter failure taxonomy
func (a *GHLAdapter) apiError(operation string, status int, body []byte) error {
	var apiErr ghlErrorResponse
	message := ""
	if err := json.Unmarshal(body, &apiErr); err == nil {
		message = apiErr.Message
	}

	a.logger.Error("GHL API request failed",
		zap.String("operation", operation),
		zap.Int("status", status),
		zap.String("message", message))

	if status >= 500 || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s returned HTTP %d", shared.ErrAdapterUnavailable, operation, status)
	}
	return fmt.Errorf("%w: %s returned HTTP %d: %s", shared.ErrAdapterRejected, operation, status, message)
}
