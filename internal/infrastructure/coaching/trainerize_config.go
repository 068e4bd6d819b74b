package coaching

import (
	"encoding/base64"
	"errors"
)

// TrainerizeConfig holds configuration for the Trainerize API integration
type TrainerizeConfig struct {
	// GroupID is the Trainerize group (account) identifier
	GroupID string
	// APIToken is the API token issued for the group
	APIToken string
	// APIBaseURL is the base URL for the Trainerize API
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// TrainerizeProductionAPIURL is the production API endpoint
const TrainerizeProductionAPIURL = "https://api.trainerize.com/v03"

// Errors for Trainerize configuration
var (
	ErrTrainerizeConfigMissingGroupID = errors.New("trainerize: group ID is required")
	ErrTrainerizeConfigMissingToken   = errors.New("trainerize: API token is required")
)

// NewTrainerizeConfig creates a new Trainerize configuration with defaults
func NewTrainerizeConfig(groupID, apiToken string) *TrainerizeConfig {
	return &TrainerizeConfig{
		GroupID:        groupID,
		APIToken:       apiToken,
		APIBaseURL:     TrainerizeProductionAPIURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the Trainerize configuration
func (c *TrainerizeConfig) Validate() error {
	if c.GroupID == "" {
		return ErrTrainerizeConfigMissingGroupID
	}
	if c.APIToken == "" {
		return ErrTrainerizeConfigMissingToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = TrainerizeProductionAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// BasicAuth returns the Authorization header value for the group credentials
func (c *TrainerizeConfig) BasicAuth() string {
	credentials := c.GroupID + ":" + c.APIToken
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}
