package crm

import "errors"

// GHLConfig holds configuration for the GoHighLevel API integration
type GHLConfig struct {
	// AccessToken is the private integration token
	AccessToken string
	// LocationID is the sub-account (location) identifier
	LocationID string
	// PipelineID is the sales pipeline opportunities are tracked in
	PipelineID string
	// StageIDs maps pipeline stage names to their GoHighLevel stage IDs
	StageIDs map[string]string
	// APIBaseURL is the base URL for the GoHighLevel API
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// GHLProductionAPIURL is the production API endpoint
	GHLProductionAPIURL = "https://services.leadconnectorhq.com"
	// GHLAPIVersion is the Version header required on every request
	GHLAPIVersion = "2021-07-28"
)

// Errors for GoHighLevel configuration
var (
	ErrGHLConfigMissingToken      = errors.New("ghl: access token is required")
	ErrGHLConfigMissingLocationID = errors.New("ghl: location ID is required")
	ErrGHLConfigMissingPipelineID = errors.New("ghl: pipeline ID is required")
)

// NewGHLConfig creates a new GoHighLevel configuration with defaults
func NewGHLConfig(accessToken, locationID, pipelineID string) *GHLConfig {
	return &GHLConfig{
		AccessToken:    accessToken,
		LocationID:     locationID,
		PipelineID:     pipelineID,
		StageIDs:       map[string]string{},
		APIBaseURL:     GHLProductionAPIURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the GoHighLevel configuration
func (c *GHLConfig) Validate() error {
	if c.AccessToken == "" {
		return ErrGHLConfigMissingToken
	}
	if c.LocationID == "" {
		return ErrGHLConfigMissingLocationID
	}
	if c.PipelineID == "" {
		return ErrGHLConfigMissingPipelineID
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = GHLProductionAPIURL
	}
	if c.StageIDs == nil {
		c.StageIDs = map[string]string{}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
