package crm

import "errors"

// Config holds configuration for the CRM platform API.
type Config struct {
	// BaseURL is the base URL of the CRM platform API.
	BaseURL string
	// AuthURL is the OAuth token endpoint. Defaults to <BaseURL>/auth/token
	// when empty.
	AuthURL string
	// ClientID and ClientSecret identify this integration to the OAuth
	// endpoint.
	ClientID     string
	ClientSecret string
	// RefreshToken is the long-lived token the access token is minted from.
	RefreshToken string
	// TimeoutSeconds is the HTTP request timeout.
	TimeoutSeconds int
	// RateLimitPerMinute is the request budget per fixed 60s window.
	RateLimitPerMinute int
	// RefreshLeadSeconds is how long before expiry the access token is
	// refreshed proactively.
	RefreshLeadSeconds int
}

// Errors for CRM configuration
var (
	ErrConfigMissingBaseURL      = errors.New("crm: base URL is required")
	ErrConfigMissingClientID     = errors.New("crm: client id is required")
	ErrConfigMissingClientSecret = errors.New("crm: client secret is required")
	ErrConfigMissingRefreshToken = errors.New("crm: refresh token is required")
)

// NewConfig creates a CRM configuration with defaults.
func NewConfig(baseURL, clientID, clientSecret, refreshToken string) *Config {
	return &Config{
		BaseURL:            baseURL,
		ClientID:           clientID,
		ClientSecret:       clientSecret,
		RefreshToken:       refreshToken,
		TimeoutSeconds:     30,
		RateLimitPerMinute: 600,
		RefreshLeadSeconds: 300,
	}
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.ClientID == "" {
		return ErrConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrConfigMissingClientSecret
	}
	if c.RefreshToken == "" {
		return ErrConfigMissingRefreshToken
	}
	if c.AuthURL == "" {
		c.AuthURL = c.BaseURL + "/auth/token"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 600
	}
	if c.RefreshLeadSeconds <= 0 {
		c.RefreshLeadSeconds = 300
	}
	return nil
}
