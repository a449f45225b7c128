package erp

import "errors"

// Config holds configuration for the ERP integration endpoint.
type Config struct {
	// BaseURL is the base URL of the ERP gateway (the RPC servlet lives
	// under <BaseURL>/service.sbr).
	BaseURL string
	// Username and Password are the credentials for session creation.
	Username string
	Password string
	// BearerToken is the static integration bearer token. Sent on every
	// request alongside the session cookie.
	BearerToken string
	// APIKey is the static API key sent in the "token" header. The ERP
	// requires cookie, bearer token and API key simultaneously.
	APIKey string
	// TimeoutSeconds is the HTTP request timeout.
	TimeoutSeconds int
	// RateLimitPerMinute is the request budget per fixed 60s window.
	RateLimitPerMinute int
	// DefaultCompanyID and DefaultSellerID are used when creating orders
	// from CRM data that carries no company/seller assignment.
	DefaultCompanyID int64
	DefaultSellerID  int64
}

// Errors for ERP configuration
var (
	ErrConfigMissingBaseURL  = errors.New("erp: base URL is required")
	ErrConfigMissingUsername = errors.New("erp: username is required")
	ErrConfigMissingPassword = errors.New("erp: password is required")
	ErrConfigMissingToken    = errors.New("erp: bearer token is required")
	ErrConfigMissingAPIKey   = errors.New("erp: API key is required")
)

// NewConfig creates an ERP configuration with defaults.
func NewConfig(baseURL, username, password, bearerToken, apiKey string) *Config {
	return &Config{
		BaseURL:            baseURL,
		Username:           username,
		Password:           password,
		BearerToken:        bearerToken,
		APIKey:             apiKey,
		TimeoutSeconds:     30,
		RateLimitPerMinute: 300,
		DefaultCompanyID:   1,
		DefaultSellerID:    1,
	}
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.Username == "" {
		return ErrConfigMissingUsername
	}
	if c.Password == "" {
		return ErrConfigMissingPassword
	}
	if c.BearerToken == "" {
		return ErrConfigMissingToken
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 300
	}
	if c.DefaultCompanyID <= 0 {
		c.DefaultCompanyID = 1
	}
	if c.DefaultSellerID <= 0 {
		c.DefaultSellerID = 1
	}
	return nil
}
