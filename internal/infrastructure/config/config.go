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
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Stripe      StripeConfig
	Trainerize  TrainerizeConfig
	GHL         GHLConfig
	Meta        MetaConfig
	Programs    ProgramsConfig
	Idempotency IdempotencyConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
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
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// StripeConfig holds Stripe API and webhook settings
type StripeConfig struct {
	SecretKey       string
	PublishableKey  string
	WebhookSecret   string
	TestMode        bool
	PriceIDs        map[string]string // program slug -> Stripe price ID
	TrialPeriodDays int64
	SuccessURL      string
	CancelURL       string
}

// TrainerizeConfig holds coaching platform API settings
type TrainerizeConfig struct {
	GroupID        string
	APIToken       string
	APIBaseURL     string
	TimeoutSeconds int
}

// GHLConfig holds GoHighLevel CRM API settings
type GHLConfig struct {
	AccessToken    string
	LocationID     string
	PipelineID     string
	StageIDs       map[string]string // stage name -> GHL stage ID
	APIBaseURL     string
	TimeoutSeconds int
}

// MetaConfig holds Meta Conversions API settings
type MetaConfig struct {
	Enabled        bool
	PixelID        string
	AccessToken    string
	TestEventCode  string
	APIBaseURL     string
	APIVersion     string
	TimeoutSeconds int
}

// ProgramsConfig holds the program catalog and the lifecycle tag/stage names
type ProgramsConfig struct {
	DefaultSlug string
	PlatformIDs map[string]string // slug -> Trainerize program ID
	CRMTags     map[string]string // slug -> CRM tag
	TierStages  map[string]string // keyword -> conversion pipeline stage
	MemberStage string
	TrialTag    string
	TrialStage  string
	LostStage   string
}

// IdempotencyConfig holds webhook dedupe ledger settings
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ONB_ prefix (e.g., ONB_STRIPE_SECRET_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("ONB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
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
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),

			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Stripe: StripeConfig{
			SecretKey:       v.GetString("stripe.secret_key"),
			PublishableKey:  v.GetString("stripe.publishable_key"),
			WebhookSecret:   v.GetString("stripe.webhook_secret"),
			TestMode:        v.GetBool("stripe.test_mode"),
			PriceIDs:        v.GetStringMapString("stripe.price_ids"),
			TrialPeriodDays: v.GetInt64("stripe.trial_period_days"),
			SuccessURL:      v.GetString("stripe.success_url"),
			CancelURL:       v.GetString("stripe.cancel_url"),
		},
		Trainerize: TrainerizeConfig{
			GroupID:        v.GetString("trainerize.group_id"),
			APIToken:       v.GetString("trainerize.api_token"),
			APIBaseURL:     v.GetString("trainerize.api_base_url"),
			TimeoutSeconds: v.GetInt("trainerize.timeout_seconds"),
		},
		GHL: GHLConfig{
			AccessToken:    v.GetString("ghl.access_token"),
			LocationID:     v.GetString("ghl.location_id"),
			PipelineID:     v.GetString("ghl.pipeline_id"),
			StageIDs:       v.GetStringMapString("ghl.stage_ids"),
			APIBaseURL:     v.GetString("ghl.api_base_url"),
			TimeoutSeconds: v.GetInt("ghl.timeout_seconds"),
		},
		Meta: MetaConfig{
			Enabled:        v.GetBool("meta.enabled"),
			PixelID:        v.GetString("meta.pixel_id"),
			AccessToken:    v.GetString("meta.access_token"),
			TestEventCode:  v.GetString("meta.test_event_code"),
			APIBaseURL:     v.GetString("meta.api_base_url"),
			APIVersion:     v.GetString("meta.api_version"),
			TimeoutSeconds: v.GetInt("meta.timeout_seconds"),
		},
		Programs: ProgramsConfig{
			DefaultSlug: v.GetString("programs.default_slug"),
			PlatformIDs: v.GetStringMapString("programs.platform_ids"),
			CRMTags:     v.GetStringMapString("programs.crm_tags"),
			TierStages:  v.GetStringMapString("programs.tier_stages"),
			MemberStage: v.GetString("programs.member_stage"),
			TrialTag:    v.GetString("programs.trial_tag"),
			TrialStage:  v.GetString("programs.trial_stage"),
			LostStage:   v.GetString("programs.lost_stage"),
		},
		Idempotency: IdempotencyConfig{
			Enabled: v.GetBool("idempotency.enabled"),
			TTL:     v.GetDuration("idempotency.ttl"),
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
		cfg.App.Name = "onboarding"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.Database.DBName = "onboarding"
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
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
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
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB, webhook payloads are small
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly
	// configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 120
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Stripe.SecretKey == "" {
		// No secret key configured: assume test mode so local runs don't
		// trip the live-key validation.
		cfg.Stripe.TestMode = true
	}
	if cfg.Stripe.TrialPeriodDays == 0 {
		cfg.Stripe.TrialPeriodDays = 7
	}
	if cfg.Stripe.PriceIDs == nil {
		cfg.Stripe.PriceIDs = map[string]string{}
	}
	if cfg.Trainerize.APIBaseURL == "" {
		cfg.Trainerize.APIBaseURL = "https://api.trainerize.com/v03"
	}
	if cfg.Trainerize.TimeoutSeconds == 0 {
		cfg.Trainerize.TimeoutSeconds = 30
	}
	if cfg.GHL.APIBaseURL == "" {
		cfg.GHL.APIBaseURL = "https://services.leadconnectorhq.com"
	}
	if cfg.GHL.TimeoutSeconds == 0 {
		cfg.GHL.TimeoutSeconds = 30
	}
	if cfg.GHL.StageIDs == nil {
		cfg.GHL.StageIDs = map[string]string{}
	}
	if cfg.Meta.APIBaseURL == "" {
		cfg.Meta.APIBaseURL = "https://graph.facebook.com"
	}
	if cfg.Meta.APIVersion == "" {
		cfg.Meta.APIVersion = "v21.0"
	}
	if cfg.Meta.TimeoutSeconds == 0 {
		cfg.Meta.TimeoutSeconds = 10
	}
	if cfg.Programs.DefaultSlug == "" {
		cfg.Programs.DefaultSlug = "foundation"
	}
	if cfg.Programs.MemberStage == "" {
		cfg.Programs.MemberStage = "Member"
	}
	if cfg.Programs.TrialTag == "" {
		cfg.Programs.TrialTag = "Trial Community"
	}
	if cfg.Programs.TrialStage == "" {
		cfg.Programs.TrialStage = "On Trial"
	}
	if cfg.Programs.LostStage == "" {
		cfg.Programs.LostStage = "Lost"
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
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

	if c.Idempotency.Enabled && c.Idempotency.TTL <= 0 {
		return fmt.Errorf("idempotency.ttl must be positive when the dedupe ledger is enabled")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("stripe.secret_key is required in production")
		}
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("stripe.webhook_secret is required in production")
		}
		if c.Stripe.TestMode {
			return fmt.Errorf("stripe.test_mode must be false in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Meta.Enabled && c.Meta.TestEventCode != "" {
			return fmt.Errorf("meta.test_event_code must be empty in production (events would be routed to the test console)")
		}
		// CORS must not use wildcard with credentials
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
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
