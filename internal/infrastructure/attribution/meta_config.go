package attribution

import "errors"

// MetaConfig holds configuration for the Meta Conversions API integration
type MetaConfig struct {
	// PixelID is the dataset (pixel) identifier events are reported against
	PixelID string
	// AccessToken is the system-user token with ads_management scope
	AccessToken string
	// TestEventCode routes events to the test console instead of production
	TestEventCode string
	// APIBaseURL is the base URL for the Graph API
	APIBaseURL string
	// APIVersion is the Graph API version segment
	APIVersion string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// MetaGraphAPIURL is the production Graph API endpoint
	MetaGraphAPIURL = "https://graph.facebook.com"
	// MetaDefaultAPIVersion is the Graph API version used when unset
	MetaDefaultAPIVersion = "v21.0"
)

// Errors for Meta configuration
var (
	ErrMetaConfigMissingPixelID = errors.New("meta: pixel ID is required")
	ErrMetaConfigMissingToken   = errors.New("meta: access token is required")
)

// NewMetaConfig creates a new Meta configuration with defaults
func NewMetaConfig(pixelID, accessToken string) *MetaConfig {
	return &MetaConfig{
		PixelID:        pixelID,
		AccessToken:    accessToken,
		APIBaseURL:     MetaGraphAPIURL,
		APIVersion:     MetaDefaultAPIVersion,
		TimeoutSeconds: 10,
	}
}

// Validate validates the Meta configuration
func (c *MetaConfig) Validate() error {
	if c.PixelID == "" {
		return ErrMetaConfigMissingPixelID
	}
	if c.AccessToken == "" {
		return ErrMetaConfigMissingToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = MetaGraphAPIURL
	}
	if c.APIVersion == "" {
		c.APIVersion = MetaDefaultAPIVersion
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	return nil
}
