package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ai_chat/internal/models"
	"ai_chat/internal/providers"
)

// CredentialMode selects where provider keys are read from during a dispatch.
type CredentialMode string

const (
	CredentialModeEnv   CredentialMode = "env"   // deploy-time keys only
	CredentialModeUser  CredentialMode = "user"  // per-user stored keys only
	CredentialModeChain CredentialMode = "chain" // user key first, then deploy-time key
)

// Config holds configuration for the chat service.
type Config struct {
	HTTPPort  string
	JWTSecret []byte // empty disables user authentication
	LogLevel  string
	Local     bool

	Database    DatabaseConfig
	Redis       RedisConfig
	Credentials CredentialsConfig
	Provider    ProviderConfig
	Fallback    FallbackConfig
	RateLimit   RateLimitConfig
	DispatchLog DispatchLogConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string // empty disables per-user key storage
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string // empty keeps queues and rate limits in memory
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CredentialsConfig holds provider key settings
type CredentialsConfig struct {
	Mode          CredentialMode
	EncryptionKey string                       // base64, 32 bytes
	EnvKeys       map[models.ProviderID]string // deploy-time keys by provider
}

// ProviderOverride replaces the built-in endpoint or model of one provider
type ProviderOverride struct {
	Endpoint string
	Model    string
}

// ProviderConfig holds provider-related settings
type ProviderConfig struct {
	RequestTimeout        time.Duration
	Overrides             map[models.ProviderID]ProviderOverride
	OpenRouterReferer     string
	OpenRouterTitle       string
	DisableSafetySettings bool
}

// FallbackConfig holds settings for the local reply generator
type FallbackConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Seed     int64 // 0 seeds from the clock
}

// RateLimitConfig holds per-user chat limits
type RateLimitConfig struct {
	PerMinute int // 0 disables limiting
}

// DispatchLogConfig holds settings for dispatch record persistence
type DispatchLogConfig struct {
	Enabled      bool
	QueueSize    int
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	S3Bucket     string // empty disables archiving
	S3Region     string
	S3Prefix     string
	PodName      string
}

var credentialKeys = map[models.ProviderID]string{
	models.ProviderOpenAI:     "openai_api_key",
	models.ProviderGoogleAI:   "google_ai_api_key",
	models.ProviderOpenRouter: "openrouter_api_key",
	models.ProviderAnthropic:  "anthropic_api_key",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "8080")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("local", false)

	v.SetDefault("database_url", "")
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime", 5*time.Minute)
	v.SetDefault("db_conn_max_idle_time", 1*time.Minute)

	v.SetDefault("redis_address", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_pool_size", 10)
	v.SetDefault("redis_min_idle_conns", 2)
	v.SetDefault("redis_dial_timeout", 5*time.Second)
	v.SetDefault("redis_read_timeout", 3*time.Second)
	v.SetDefault("redis_write_timeout", 3*time.Second)

	v.SetDefault("credential_mode", string(CredentialModeChain))
	v.SetDefault("encryption_key", "")
	for _, key := range credentialKeys {
		v.SetDefault(key, "")
	}

	v.SetDefault("provider_request_timeout", 60*time.Second)
	v.SetDefault("openrouter_referer", providers.DefaultOpenRouterReferer)
	v.SetDefault("openrouter_title", providers.DefaultOpenRouterTitle)
	v.SetDefault("google_disable_safety_settings", false)
	for _, id := range models.ProviderIDs() {
		v.SetDefault(overrideKey(id, "endpoint"), "")
		v.SetDefault(overrideKey(id, "model"), "")
	}

	v.SetDefault("fallback_min_delay", 1*time.Second)
	v.SetDefault("fallback_max_delay", 3*time.Second)
	v.SetDefault("fallback_seed", 0)

	v.SetDefault("rate_limit_per_minute", 0)

	v.SetDefault("dispatch_log_enabled", true)
	v.SetDefault("dispatch_log_queue_size", 10000)
	v.SetDefault("dispatch_log_batch_size", 100)
	v.SetDefault("dispatch_log_batch_timeout", 5*time.Second)
	v.SetDefault("dispatch_log_max_retries", 3)
	v.SetDefault("dispatch_log_s3_bucket", "")
	v.SetDefault("dispatch_log_s3_region", "us-east-1")
	v.SetDefault("dispatch_log_s3_prefix", "dispatch/")
	v.SetDefault("pod_name", "chatd-0")

	v.SetDefault("config_file", "")
}

func overrideKey(id models.ProviderID, field string) string {
	return fmt.Sprintf("provider_%s_%s", id, field)
}

// Load reads configuration from environment variables, falling back to an
// optional config.yaml and then to defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/ai-chat")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPPort:  v.GetString("http_port"),
		JWTSecret: []byte(v.GetString("jwt_secret")),
		LogLevel:  v.GetString("log_level"),
		Local:     v.GetBool("local"),
		Database: DatabaseConfig{
			URL:             v.GetString("database_url"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("db_conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Address:      v.GetString("redis_address"),
			Password:     v.GetString("redis_password"),
			DB:           v.GetInt("redis_db"),
			PoolSize:     v.GetInt("redis_pool_size"),
			MinIdleConns: v.GetInt("redis_min_idle_conns"),
			DialTimeout:  v.GetDuration("redis_dial_timeout"),
			ReadTimeout:  v.GetDuration("redis_read_timeout"),
			WriteTimeout: v.GetDuration("redis_write_timeout"),
		},
		Credentials: CredentialsConfig{
			Mode:          CredentialMode(strings.ToLower(v.GetString("credential_mode"))),
			EncryptionKey: v.GetString("encryption_key"),
			EnvKeys:       make(map[models.ProviderID]string),
		},
		Provider: ProviderConfig{
			RequestTimeout:        v.GetDuration("provider_request_timeout"),
			Overrides:             make(map[models.ProviderID]ProviderOverride),
			OpenRouterReferer:     v.GetString("openrouter_referer"),
			OpenRouterTitle:       v.GetString("openrouter_title"),
			DisableSafetySettings: v.GetBool("google_disable_safety_settings"),
		},
		Fallback: FallbackConfig{
			MinDelay: v.GetDuration("fallback_min_delay"),
			MaxDelay: v.GetDuration("fallback_max_delay"),
			Seed:     v.GetInt64("fallback_seed"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: v.GetInt("rate_limit_per_minute"),
		},
		DispatchLog: DispatchLogConfig{
			Enabled:      v.GetBool("dispatch_log_enabled"),
			QueueSize:    v.GetInt("dispatch_log_queue_size"),
			BatchSize:    v.GetInt("dispatch_log_batch_size"),
			BatchTimeout: v.GetDuration("dispatch_log_batch_timeout"),
			MaxRetries:   v.GetInt("dispatch_log_max_retries"),
			S3Bucket:     v.GetString("dispatch_log_s3_bucket"),
			S3Region:     v.GetString("dispatch_log_s3_region"),
			S3Prefix:     v.GetString("dispatch_log_s3_prefix"),
			PodName:      v.GetString("pod_name"),
		},
	}

	for id, key := range credentialKeys {
		if val := strings.TrimSpace(v.GetString(key)); val != "" {
			cfg.Credentials.EnvKeys[id] = val
		}
	}

	for _, id := range models.ProviderIDs() {
		ov := ProviderOverride{
			Endpoint: v.GetString(overrideKey(id, "endpoint")),
			Model:    v.GetString(overrideKey(id, "model")),
		}
		if ov.Endpoint != "" || ov.Model != "" {
			cfg.Provider.Overrides[id] = ov
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Credentials.Mode {
	case CredentialModeEnv, CredentialModeUser, CredentialModeChain:
	default:
		return fmt.Errorf("invalid CREDENTIAL_MODE %q (want env, user or chain)", c.Credentials.Mode)
	}

	if c.Credentials.Mode == CredentialModeUser && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when CREDENTIAL_MODE is user")
	}

	if c.Database.URL != "" && c.Credentials.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required when DATABASE_URL is set")
	}

	if c.Fallback.MaxDelay <= 0 {
		return fmt.Errorf("FALLBACK_MAX_DELAY must be positive")
	}
	if c.Fallback.MinDelay < 0 || c.Fallback.MaxDelay < c.Fallback.MinDelay {
		return fmt.Errorf("invalid fallback delay range [%s, %s)", c.Fallback.MinDelay, c.Fallback.MaxDelay)
	}

	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return nil
}

// UserStoreEnabled reports whether per-user keys can be read and written.
func (c *Config) UserStoreEnabled() bool {
	return c.Database.URL != "" && c.Credentials.Mode != CredentialModeEnv
}

// AuthEnabled reports whether requests must carry a user token.
func (c *Config) AuthEnabled() bool {
	return len(c.JWTSecret) > 0
}
