package coaching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/barn/onboarding/internal/domain/integration"
	"github.com/barn/onboarding/internal/domain/shared"
	"go.uber.org/zap"
)

// maxTrainerizeResponseSize limits the response body size
const maxTrainerizeResponseSize = 1 * 1024 * 1024 // 1MB max response

const trainerizeDateLayout = "2006-01-02"

// TrainerizeAdapter implements the coaching-platform interface for Trainerize
type TrainerizeAdapter struct {
	config     *TrainerizeConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.CoachingPlatform = (*TrainerizeAdapter)(nil)

// NewTrainerizeAdapter creates a new Trainerize adapter
func NewTrainerizeAdapter(config *TrainerizeConfig, logger *zap.Logger) (*TrainerizeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainerizeAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// CreateOrFindClient creates a client, falling back to a lookup when the
// email is already registered in the group.
func (a *TrainerizeAdapter) CreateOrFindClient(ctx context.Context, client integration.NewClient) (*integration.ClientResult, error) {
	payload := trainerizeCreateUserRequest{
		Email:       client.Email,
		FirstName:   client.FirstName,
		LastName:    client.LastName,
		MobilePhone: client.Phone,
		Role:        "client",
		Status:      "active",
	}

	body, status, err := a.doRequest(ctx, http.MethodPost, "/users", payload)
	if err != nil {
		return nil, err
	}

	if status == http.StatusConflict {
		// Already registered, resolve the existing client by email
		a.logger.Info("Trainerize client already exists, looking up by email",
			zap.String("email", client.Email))
		userID, err := a.findUserByEmail(ctx, client.Email)
		if err != nil {
			return nil, err
		}
		return &integration.ClientResult{ClientID: strconv.Itoa(userID), Created: false}, nil
	}
	if status >= 400 {
		return nil, a.apiError("create user", status, body)
	}

	var resp trainerizeCreateUserResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("trainerize: failed to decode create-user response: %w", err)
	}
	if resp.UserID == 0 {
		return nil, fmt.Errorf("%w: create user returned no user ID", shared.ErrAdapterRejected)
	}

	a.logger.Info("Created Trainerize client",
		zap.String("email", client.Email),
		zap.Int("user_id", resp.UserID))
	return &integration.ClientResult{ClientID: strconv.Itoa(resp.UserID), Created: true}, nil
}

// AssignProgram copies a training program onto a client, merging with any
// schedule the client already has.
func (a *TrainerizeAdapter) AssignProgram(ctx context.Context, clientID, programID string) error {
	userID, err := strconv.Atoi(clientID)
	if err != nil {
		return fmt.Errorf("%w: client ID %q is not numeric", shared.ErrAdapterRejected, clientID)
	}
	progID, err := strconv.Atoi(programID)
	if err != nil {
		return fmt.Errorf("%w: program ID %q is not numeric", shared.ErrAdapterRejected, programID)
	}

	payload := trainerizeCopyProgramRequest{
		UserID:     userID,
		ProgramID:  progID,
		StartDate:  time.Now().Format(trainerizeDateLayout),
		ForceMerge: true,
	}

	body, status, err := a.doRequest(ctx, http.MethodPost, "/program/copyToUser", payload)
	if err != nil {
		return err
	}
	if status >= 400 {
		return a.apiError("copy program", status, body)
	}

	a.logger.Info("Assigned Trainerize program",
		zap.Int("user_id", userID),
		zap.Int("program_id", progID))
	return nil
}

// DeactivateClient sets a client to deactivated status
func (a *TrainerizeAdapter) DeactivateClient(ctx context.Context, clientID string) error {
	userID, err := strconv.Atoi(clientID)
	if err != nil {
		return fmt.Errorf("%w: client ID %q is not numeric", shared.ErrAdapterRejected, clientID)
	}

	payload := trainerizeUpdateUserRequest{
		UserID: userID,
		Status: "deactivated",
	}

	body, status, err := a.doRequest(ctx, http.MethodPut, "/users", payload)
	if err != nil {
		return err
	}
	if status >= 400 {
		return a.apiError("update user", status, body)
	}

	a.logger.Info("Deactivated Trainerize client",
		zap.Int("user_id", userID))
	return nil
}

// findUserByEmail resolves a client ID by searching the group for an email
func (a *TrainerizeAdapter) findUserByEmail(ctx context.Context, email string) (int, error) {
	query := url.Values{}
	query.Set("search", email)
	query.Set("role", "client")
	query.Set("count", "10")

	body, status, err := a.doRequest(ctx, http.MethodGet, "/users?"+query.Encode(), nil)
	if err != nil {
		return 0, err
	}
	if status >= 400 {
		return 0, a.apiError("list users", status, body)
	}

	var resp trainerizeListUsersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("trainerize: failed to decode user list: %w", err)
	}
	for _, user := range resp.Users {
		if strings.EqualFold(user.Email, email) {
			return user.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: existing client not found by email", shared.ErrAdapterRejected)
}

// doRequest executes one API call and returns the body and status code.
// A nil payload sends no request body. Conflict responses are returned to
// the caller instead of being treated as errors, because create-then-lookup
// depends on seeing them.
func (a *TrainerizeAdapter) doRequest(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("trainerize: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("trainerize: failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", a.config.BasicAuth())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", shared.ErrAdapterUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTrainerizeResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("trainerize: failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// apiError maps an HTTP error status to the adapter failure taxonomy
func (a *TrainerizeAdapter) apiError(operation string, status int, body []byte) error {
	var apiErr trainerizeErrorResponse
	message := ""
	if err := json.Unmarshal(body, &apiErr); err == nil {
		message = apiErr.Message
	}

	a.logger.Error("Trainerize API request failed",
		zap.String("operation", operation),
		zap.Int("status", status),
		zap.String("message", message))

	if status >= 500 || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s returned HTTP %d", shared.ErrAdapterUnavailable, operation, status)
	}
	return fmt.Errorf("%w: %s returned HTTP %d: %s", shared.ErrAdapterRejected, operation, status, message)
}
