// Package config handles loading and validation of application configuration
// from environment variables and an optional .env file.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"

	minJWTLength               = 32
	minIntegrationSecretLength = 16
)

// Storage drivers.
const (
	DriverDynamo   = "dynamodb"
	DriverPostgres = "postgres"
)

// Push providers.
const (
	PushProviderFCM  = "fcm"
	PushProviderExpo = "expo"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
	JwtSecretKey   string      `mapstructure:"JWT_SECRET_KEY" yaml:"jwt_secret_key"`
}

// StorageConfig selects the persistence backend and names its tables.
type StorageConfig struct {
	Driver            string `mapstructure:"DRIVER" yaml:"driver"`
	TimersTable       string `mapstructure:"TIMERS_TABLE" yaml:"timers_table"`
	SharedTimersTable string `mapstructure:"SHARED_TIMERS_TABLE" yaml:"shared_timers_table"`
	ConnectionsTable  string `mapstructure:"CONNECTIONS_TABLE" yaml:"connections_table"`
	DeviceTokensTable string `mapstructure:"DEVICE_TOKENS_TABLE" yaml:"device_tokens_table"`
	// SharedWithIndex is the secondary index on the sharing table keyed by sharedWith.
	SharedWithIndex string `mapstructure:"SHARED_WITH_INDEX" yaml:"shared_with_index"`
	// ConnectionIDIndex is the secondary index on the connections table keyed by connectionId.
	ConnectionIDIndex string `mapstructure:"CONNECTION_ID_INDEX" yaml:"connection_id_index"`
}

// AWSConfig holds credentials and endpoint overrides shared by the AWS clients.
type AWSConfig struct {
	Region          string `mapstructure:"REGION" yaml:"region"`
	Endpoint        string `mapstructure:"ENDPOINT" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"ACCESS_KEY_ID" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"SECRET_ACCESS_KEY" yaml:"secret_access_key"`
}

// DatabaseConfig holds PostgreSQL database connection details.
type DatabaseConfig struct {
	Host           string `mapstructure:"HOST" yaml:"host"`
	Port           int    `mapstructure:"PORT" yaml:"port"`
	User           string `mapstructure:"USER" yaml:"user"`
	Password       string `mapstructure:"PASSWORD" yaml:"password"`
	Name           string `mapstructure:"NAME" yaml:"name"`
	MaxConnections int    `mapstructure:"MAX_CONNECTIONS" yaml:"max_connections"`
	SSLMode        string `mapstructure:"SSL_MODE" yaml:"ssl_mode"`
}

// URL returns a postgres:// connection URL suitable for pgxpool and golang-migrate.
func (c *DatabaseConfig) URL() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslmode,
	)
}

// RedisConfig holds Redis connection details. An empty address disables rate limiting.
type RedisConfig struct {
	Address  string `mapstructure:"ADDRESS" yaml:"address"`
	Password string `mapstructure:"PASSWORD" yaml:"password"`
	DB       int    `mapstructure:"DB" yaml:"db"`
	UseTLS   bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
}

// PushConfig configures the push notification gateway.
type PushConfig struct {
	Provider           string `mapstructure:"PROVIDER" yaml:"provider"`
	FCMProjectID       string `mapstructure:"FCM_PROJECT_ID" yaml:"fcm_project_id"`
	FCMCredentialsFile string `mapstructure:"FCM_CREDENTIALS_FILE" yaml:"fcm_credentials_file"`
	ExpoURL            string `mapstructure:"EXPO_URL" yaml:"expo_url"`
	TimeoutSeconds     int    `mapstructure:"TIMEOUT_SECONDS" yaml:"timeout_seconds"`
}

// WebSocketConfig holds realtime transport settings.
type WebSocketConfig struct {
	// CallbackURL is the API Gateway management endpoint. When set, frames are
	// posted through API Gateway instead of the in-process hub.
	CallbackURL         string `mapstructure:"CALLBACK_URL" yaml:"callback_url"`
	// IntegrationSecret is the shared secret API Gateway sends in
	// X-Integration-Secret on the integration routes.
	IntegrationSecret   string `mapstructure:"INTEGRATION_SECRET" yaml:"integration_secret"`
	PingIntervalSeconds int    `mapstructure:"PING_INTERVAL_SECONDS" yaml:"ping_interval_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"WRITE_TIMEOUT_SECONDS" yaml:"write_timeout_seconds"`
}

// FanoutConfig bounds the concurrency of a single fanout operation.
type FanoutConfig struct {
	MaxConcurrency int `mapstructure:"MAX_CONCURRENCY" yaml:"max_concurrency"`
}

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"REQUESTS_PER_MINUTE" yaml:"requests_per_minute"`
	WindowSeconds     int `mapstructure:"WINDOW_SECONDS" yaml:"window_seconds"`
}

// AvatarConfig configures profile image uploads.
type AvatarConfig struct {
	Bucket        string `mapstructure:"BUCKET" yaml:"bucket"`
	MaxBytes      int64  `mapstructure:"MAX_BYTES" yaml:"max_bytes"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL" yaml:"public_base_url"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server    ServerConfig    `mapstructure:"SERVER" yaml:"server"`
	Storage   StorageConfig   `mapstructure:"STORAGE" yaml:"storage"`
	AWS       AWSConfig       `mapstructure:"AWS" yaml:"aws"`
	Database  DatabaseConfig  `mapstructure:"DATABASE" yaml:"database"`
	Redis     RedisConfig     `mapstructure:"REDIS" yaml:"redis"`
	Push      PushConfig      `mapstructure:"PUSH" yaml:"push"`
	WebSocket WebSocketConfig `mapstructure:"WEBSOCKET" yaml:"websocket"`
	Fanout    FanoutConfig    `mapstructure:"FANOUT" yaml:"fanout"`
	RateLimit RateLimitConfig `mapstructure:"RATE_LIMIT" yaml:"rate_limit"`
	Avatar    AvatarConfig    `mapstructure:"AVATAR" yaml:"avatar"`
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// AllowedOrigin returns the single origin echoed in Access-Control-Allow-Origin.
func (c *Config) AllowedOrigin() string {
	if len(c.Server.AllowedOrigins) == 0 || ContainsWildcard(c.Server.AllowedOrigins) {
		return "*"
	}
	return c.Server.AllowedOrigins[0]
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// LoadConfig reads an optional .env file, applies defaults, binds environment
// variables, unmarshals into Config and validates the result.
func LoadConfig() (*Config, error) {
	log := logger.GetLogger()
	if err := godotenv.Load(); err != nil {
		log.Debugw("No .env file loaded", "error", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envBindings := [][2]string{
		// Server config
		{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.VERSION", "VERSION"},
		{"SERVER.JWT_SECRET_KEY", "JWT_SECRET_KEY"},
		// Storage config
		{"STORAGE.DRIVER", "STORAGE_DRIVER"},
		{"STORAGE.TIMERS_TABLE", "TIMERS_TABLE"},
		{"STORAGE.SHARED_TIMERS_TABLE", "SHARED_TIMERS_TABLE"},
		{"STORAGE.CONNECTIONS_TABLE", "CONNECTIONS_TABLE"},
		{"STORAGE.DEVICE_TOKENS_TABLE", "DEVICE_TOKENS_TABLE"},
		{"STORAGE.SHARED_WITH_INDEX", "SHARED_WITH_INDEX"},
		{"STORAGE.CONNECTION_ID_INDEX", "CONNECTION_ID_INDEX"},
		// AWS config
		{"AWS.REGION", "AWS_REGION"},
		{"AWS.ENDPOINT", "AWS_ENDPOINT"},
		{"AWS.ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"},
		{"AWS.SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"},
		// Database config
		{"DATABASE.HOST", "DB_HOST"},
		{"DATABASE.PORT", "DB_PORT"},
		{"DATABASE.USER", "DB_USER"},
		{"DATABASE.PASSWORD", "DB_PASSWORD"},
		{"DATABASE.NAME", "DB_NAME"},
		{"DATABASE.SSL_MODE", "DB_SSL_MODE"},
		// Redis config
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.USE_TLS", "REDIS_USE_TLS"},
		// Push config
		{"PUSH.PROVIDER", "PUSH_PROVIDER"},
		{"PUSH.FCM_PROJECT_ID", "FCM_PROJECT_ID"},
		{"PUSH.FCM_CREDENTIALS_FILE", "FCM_CREDENTIALS_FILE"},
		{"PUSH.EXPO_URL", "EXPO_PUSH_URL"},
		{"PUSH.TIMEOUT_SECONDS", "PUSH_TIMEOUT_SECONDS"},
		// WebSocket config
		{"WEBSOCKET.CALLBACK_URL", "WEBSOCKET_CALLBACK_URL"},
		{"WEBSOCKET.INTEGRATION_SECRET", "WEBSOCKET_INTEGRATION_SECRET"},
		{"WEBSOCKET.PING_INTERVAL_SECONDS", "WEBSOCKET_PING_INTERVAL_SECONDS"},
		{"WEBSOCKET.WRITE_TIMEOUT_SECONDS", "WEBSOCKET_WRITE_TIMEOUT_SECONDS"},
		// Fanout config
		{"FANOUT.MAX_CONCURRENCY", "FANOUT_MAX_CONCURRENCY"},
		// Rate limit config
		{"RATE_LIMIT.REQUESTS_PER_MINUTE", "RATE_LIMIT_REQUESTS_PER_MINUTE"},
		{"RATE_LIMIT.WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS"},
		// Avatar config
		{"AVATAR.BUCKET", "AVATAR_BUCKET"},
		{"AVATAR.MAX_BYTES", "AVATAR_MAX_BYTES"},
		{"AVATAR.PUBLIC_BASE_URL", "AVATAR_PUBLIC_BASE_URL"},
	}

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	log.Infow("Configuration loaded",
		"environment", v.GetString("SERVER.ENVIRONMENT"),
		"server_port", v.GetString("SERVER.PORT"),
		"storage_driver", v.GetString("STORAGE.DRIVER"),
		"push_provider", v.GetString("PUSH.PROVIDER"),
		"gateway_callback", v.GetString("WEBSOCKET.CALLBACK_URL") != "",
	)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}

	if err := validateConfig(&cfg, log); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Info("Configuration validated successfully")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.VERSION", "dev")

	v.SetDefault("STORAGE.DRIVER", DriverDynamo)
	v.SetDefault("STORAGE.TIMERS_TABLE", "Timers")
	v.SetDefault("STORAGE.SHARED_TIMERS_TABLE", "SharedTimers")
	v.SetDefault("STORAGE.CONNECTIONS_TABLE", "UserConnections")
	v.SetDefault("STORAGE.DEVICE_TOKENS_TABLE", "DeviceTokens")
	v.SetDefault("STORAGE.SHARED_WITH_INDEX", "SharedWithIndex")
	v.SetDefault("STORAGE.CONNECTION_ID_INDEX", "ConnectionIdIndex")

	v.SetDefault("AWS.REGION", "us-east-1")

	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.NAME", "timers_dev")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MAX_CONNECTIONS", 10)

	v.SetDefault("REDIS.ADDRESS", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)

	v.SetDefault("PUSH.PROVIDER", PushProviderFCM)
	v.SetDefault("PUSH.EXPO_URL", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("PUSH.TIMEOUT_SECONDS", 10)

	v.SetDefault("WEBSOCKET.PING_INTERVAL_SECONDS", 30)
	v.SetDefault("WEBSOCKET.WRITE_TIMEOUT_SECONDS", 10)

	v.SetDefault("FANOUT.MAX_CONCURRENCY", 16)

	v.SetDefault("RATE_LIMIT.REQUESTS_PER_MINUTE", 120)
	v.SetDefault("RATE_LIMIT.WINDOW_SECONDS", 60)

	v.SetDefault("AVATAR.MAX_BYTES", 5<<20)
}

// validateConfig checks if the loaded configuration values are valid.
func validateConfig(cfg *Config, log *zap.SugaredLogger) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if len(cfg.Server.JwtSecretKey) < minJWTLength {
		return fmt.Errorf("JWT secret key must be at least %d characters long", minJWTLength)
	}
	if !ContainsWildcard(cfg.Server.AllowedOrigins) {
		for _, origin := range cfg.Server.AllowedOrigins {
			if _, err := url.ParseRequestURI(origin); err != nil {
				return fmt.Errorf("invalid allowed origin '%s': %w", origin, err)
			}
		}
	}

	switch cfg.Storage.Driver {
	case DriverDynamo:
		if cfg.AWS.Region == "" {
			return fmt.Errorf("aws region is required for the dynamodb driver")
		}
		if cfg.Storage.TimersTable == "" || cfg.Storage.SharedTimersTable == "" ||
			cfg.Storage.ConnectionsTable == "" || cfg.Storage.DeviceTokensTable == "" {
			return fmt.Errorf("all table names are required for the dynamodb driver")
		}
	case DriverPostgres:
		if cfg.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if cfg.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if cfg.Database.Password == "" {
			log.Warn("Database password is not set. Ensure this is intended (e.g., using trusted auth).")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.Push.Provider {
	case PushProviderFCM:
		if cfg.Push.FCMCredentialsFile == "" {
			log.Warn("FCM credentials file not set, falling back to application default credentials")
		}
	case PushProviderExpo:
		if _, err := url.ParseRequestURI(cfg.Push.ExpoURL); err != nil {
			return fmt.Errorf("invalid expo push URL: %w", err)
		}
	default:
		return fmt.Errorf("unsupported push provider %q", cfg.Push.Provider)
	}
	if cfg.Push.TimeoutSeconds <= 0 {
		return fmt.Errorf("push timeout must be positive")
	}

	if cfg.WebSocket.CallbackURL != "" {
		if _, err := url.ParseRequestURI(cfg.WebSocket.CallbackURL); err != nil {
			return fmt.Errorf("invalid websocket callback URL: %w", err)
		}
		if len(cfg.WebSocket.IntegrationSecret) < minIntegrationSecretLength {
			return fmt.Errorf("websocket integration secret must be at least %d characters long when a callback URL is set", minIntegrationSecretLength)
		}
	}
	if cfg.WebSocket.PingIntervalSeconds <= 0 || cfg.WebSocket.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("websocket ping interval and write timeout must be positive")
	}

	if cfg.Fanout.MaxConcurrency <= 0 {
		return fmt.Errorf("fanout max concurrency must be positive")
	}

	if cfg.Redis.Address == "" {
		log.Info("Redis address not set, rate limiting disabled")
	} else {
		if cfg.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate limit requests per minute must be positive")
		}
		if cfg.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("rate limit window seconds must be positive")
		}
	}

	if cfg.Avatar.Bucket != "" && cfg.Avatar.MaxBytes <= 0 {
		return fmt.Errorf("avatar max bytes must be positive")
	}

	return nil
}

// ContainsWildcard reports whether the list of allowed origins contains the wildcard "*".
func ContainsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
