package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	HTTP     HTTPConfig
	ERP      ERPConfig
	CRM      CRMConfig
	Webhook  WebhookConfig
	Queue    QueueConfig
	Sync     SyncConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// ERPConfig holds the ERP integration endpoint settings
type ERPConfig struct {
	BaseURL            string
	Username           string
	Password           string
	BearerToken        string
	APIKey             string
	TimeoutSeconds     int
	RateLimitPerMinute int
	DefaultCompanyID   int64
	DefaultSellerID    int64
}

// CRMConfig holds the CRM platform API settings
type CRMConfig struct {
	BaseURL            string
	AuthURL            string
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	TimeoutSeconds     int
	RateLimitPerMinute int
	RefreshLeadSeconds int
}

// WebhookConfig holds inbound webhook settings
type WebhookConfig struct {
	// Secret is the HMAC-SHA256 key inbound payload signatures are
	// verified against.
	Secret string
	// ValidateSignature turns signature checking on. Has no effect
	// without a secret.
	ValidateSignature bool
	// CallbackURL is the public URL registered with the CRM.
	CallbackURL string
	// DedupEnabled turns on duplicate event suppression by event id.
	DedupEnabled bool
	// DedupTTL is how long processed event ids are remembered.
	DedupTTL time.Duration
	// DefaultPartnerID and DefaultProductID are fallback ids for orders
	// created from webhook payloads that carry none.
	DefaultPartnerID int64
	DefaultProductID int64
}

// QueueConfig holds background job queue settings
type QueueConfig struct {
	Workers     int
	BufferSize  int
	MaxRetries  int
	RetryDelay  time.Duration
	MaxInterval time.Duration
}

// SyncConfig holds the periodic synchronization settings
type SyncConfig struct {
	Enabled          bool
	SupplierInterval time.Duration
	OrderInterval    time.Duration
	ProductInterval  time.Duration
	OrderLookback    time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g., SYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		ERP: ERPConfig{
			BaseURL:            v.GetString("erp.base_url"),
			Username:           v.GetString("erp.username"),
			Password:           v.GetString("erp.password"),
			BearerToken:        v.GetString("erp.bearer_token"),
			APIKey:             v.GetString("erp.api_key"),
			TimeoutSeconds:     v.GetInt("erp.timeout_seconds"),
			RateLimitPerMinute: v.GetInt("erp.rate_limit_per_minute"),
			DefaultCompanyID:   v.GetInt64("erp.default_company_id"),
			DefaultSellerID:    v.GetInt64("erp.default_seller_id"),
		},
		CRM: CRMConfig{
			BaseURL:            v.GetString("crm.base_url"),
			AuthURL:            v.GetString("crm.auth_url"),
			ClientID:           v.GetString("crm.client_id"),
			ClientSecret:       v.GetString("crm.client_secret"),
			RefreshToken:       v.GetString("crm.refresh_token"),
			TimeoutSeconds:     v.GetInt("crm.timeout_seconds"),
			RateLimitPerMinute: v.GetInt("crm.rate_limit_per_minute"),
			RefreshLeadSeconds: v.GetInt("crm.refresh_lead_seconds"),
		},
		Webhook: WebhookConfig{
			Secret:            v.GetString("webhook.secret"),
			ValidateSignature: v.GetBool("webhook.validate_signature"),
			CallbackURL:       v.GetString("webhook.callback_url"),
			DedupEnabled:      v.GetBool("webhook.dedup_enabled"),
			DedupTTL:          v.GetDuration("webhook.dedup_ttl"),
			DefaultPartnerID:  v.GetInt64("webhook.default_partner_id"),
			DefaultProductID:  v.GetInt64("webhook.default_product_id"),
		},
		Queue: QueueConfig{
			Workers:     v.GetInt("queue.workers"),
			BufferSize:  v.GetInt("queue.buffer_size"),
			MaxRetries:  v.GetInt("queue.max_retries"),
			RetryDelay:  v.GetDuration("queue.retry_delay"),
			MaxInterval: v.GetDuration("queue.max_interval"),
		},
		Sync: SyncConfig{
			Enabled:          v.GetBool("sync.enabled"),
			SupplierInterval: v.GetDuration("sync.supplier_interval"),
			OrderInterval:    v.GetDuration("sync.order_interval"),
			ProductInterval:  v.GetDuration("sync.product_interval"),
			OrderLookback:    v.GetDuration("sync.order_lookback"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "syncbridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "syncbridge"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.ERP.TimeoutSeconds == 0 {
		cfg.ERP.TimeoutSeconds = 30
	}
	if cfg.ERP.RateLimitPerMinute == 0 {
		cfg.ERP.RateLimitPerMinute = 300
	}
	if cfg.ERP.DefaultCompanyID == 0 {
		cfg.ERP.DefaultCompanyID = 1
	}
	if cfg.ERP.DefaultSellerID == 0 {
		cfg.ERP.DefaultSellerID = 1
	}
	if cfg.CRM.TimeoutSeconds == 0 {
		cfg.CRM.TimeoutSeconds = 30
	}
	if cfg.CRM.RateLimitPerMinute == 0 {
		cfg.CRM.RateLimitPerMinute = 600
	}
	if cfg.CRM.RefreshLeadSeconds == 0 {
		cfg.CRM.RefreshLeadSeconds = 300
	}
	if cfg.Webhook.DedupTTL == 0 {
		cfg.Webhook.DedupTTL = 24 * time.Hour
	}
	if cfg.Webhook.DefaultPartnerID == 0 {
		cfg.Webhook.DefaultPartnerID = 1
	}
	if cfg.Webhook.DefaultProductID == 0 {
		cfg.Webhook.DefaultProductID = 1
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 5
	}
	if cfg.Queue.BufferSize == 0 {
		cfg.Queue.BufferSize = 100
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 5
	}
	if cfg.Queue.RetryDelay == 0 {
		cfg.Queue.RetryDelay = 5 * time.Second
	}
	if cfg.Queue.MaxInterval == 0 {
		cfg.Queue.MaxInterval = 2 * time.Minute
	}
	if cfg.Sync.SupplierInterval == 0 {
		cfg.Sync.SupplierInterval = time.Hour
	}
	if cfg.Sync.OrderInterval == 0 {
		cfg.Sync.OrderInterval = 30 * time.Minute
	}
	if cfg.Sync.ProductInterval == 0 {
		cfg.Sync.ProductInterval = 2 * time.Hour
	}
	if cfg.Sync.OrderLookback == 0 {
		cfg.Sync.OrderLookback = 24 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Webhook.Secret == "" {
			return fmt.Errorf("webhook.secret is required in production")
		}
		if len(c.Webhook.Secret) < 32 {
			return fmt.Errorf("webhook.secret must be at least 32 characters in production")
		}
		if c.ERP.BaseURL == "" {
			return fmt.Errorf("erp.base_url is required in production")
		}
		if c.CRM.BaseURL == "" {
			return fmt.Errorf("crm.base_url is required in production")
		}
	}

	if c.Webhook.DedupEnabled && !c.Redis.Enabled && c.App.Env == "production" {
		return fmt.Errorf("webhook.dedup_enabled requires redis.enabled in production")
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
