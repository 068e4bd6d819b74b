package attribution

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/barn/onboarding/internal/domain/integration"
	"github.com/barn/onboarding/internal/domain/shared"
	"go.uber.org/zap"
)

// maxMetaResponseSize limits the response body size
const maxMetaResponseSize = 256 * 1024

// MetaAdapter implements the attribution interface for the Meta Conversions
// API. User identifiers are SHA-256 hashed after normalization, as the API
// requires; event IDs let Meta deduplicate against browser-side pixels.
type MetaAdapter struct {
	config     *MetaConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.Attribution = (*MetaAdapter)(nil)

// NewMetaAdapter creates a new Meta Conversions API adapter
func NewMetaAdapter(config *MetaConfig, logger *zap.Logger) (*MetaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetaAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// metaEventPayload is the request envelope for the events endpoint
type metaEventPayload struct {
	Data          []metaEvent `json:"data"`
	TestEventCode string      `json:"test_event_code,omitempty"`
}

// metaEvent is one server event
type metaEvent struct {
	EventName    string         `json:"event_name"`
	EventTime    int64          `json:"event_time"`
	EventID      string         `json:"event_id,omitempty"`
	ActionSource string         `json:"action_source"`
	UserData     metaUserData   `json:"user_data"`
	CustomData   map[string]any `json:"custom_data,omitempty"`
}

// metaUserData carries the hashed matching identifiers
type metaUserData struct {
	Emails     []string `json:"em,omitempty"`
	Phones     []string `json:"ph,omitempty"`
	FirstNames []string `json:"fn,omitempty"`
	LastNames  []string `json:"ln,omitempty"`
}

// SendEvent reports one conversion event
func (a *MetaAdapter) SendEvent(ctx context.Context, eventName string, user integration.AttributionUser, customData map[string]any, dedupeID string) error {
	payload := metaEventPayload{
		Data: []metaEvent{
			{
				EventName:    eventName,
				EventTime:    time.Now().Unix(),
				EventID:      dedupeID,
				ActionSource: "website",
				UserData: metaUserData{
					Emails:     hashedField(normalizeText(user.Email)),
					Phones:     hashedField(normalizePhone(user.Phone)),
					FirstNames: hashedField(normalizeText(user.FirstName)),
					LastNames:  hashedField(normalizeText(user.LastName)),
				},
				CustomData: customData,
			},
		},
		TestEventCode: a.config.TestEventCode,
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("meta: failed to marshal event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events?access_token=%s",
		a.config.APIBaseURL, a.config.APIVersion, a.config.PixelID,
		url.QueryEscape(a.config.AccessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("meta: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAdapterUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetaResponseSize))
	if err != nil {
		return fmt.Errorf("meta: failed to read response: %w", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: events endpoint returned HTTP %d", shared.ErrAdapterUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		a.logger.Error("Meta Conversions API rejected event",
			zap.String("event_name", eventName),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return fmt.Errorf("%w: events endpoint returned HTTP %d", shared.ErrAdapterRejected, resp.StatusCode)
	}

	a.logger.Debug("Sent Meta conversion event",
		zap.String("event_name", eventName),
		zap.String("event_id", dedupeID))
	return nil
}

// normalizeText lowercases and trims an identifier before hashing
func normalizeText(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// normalizePhone strips everything but digits
func normalizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hashedField returns the SHA-256 hex digest as a one-element slice, or nil
// when the value is empty so the field is omitted entirely.
func hashedField(normalized string) []string {
	if normalized == "" {
		return nil
	}
	digest := sha256.Sum256([]byte(normalized))
	return []string{hex.EncodeToString(digest[:])}
}
