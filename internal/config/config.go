package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration, loaded from environment
// variables (optionally seeded from a .env file).
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	OIDC      OIDCConfig
	Provider  ProviderConfig
	Signing   SigningConfig
	Import    ImportConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type OIDCConfig struct {
	IssuerURL string
	ClientID  string
	// HMACSecret enables the static HS256 verifier when no OIDC issuer is
	// configured (small deployments, integration tests).
	HMACSecret string
}

// ProviderConfig points at the external e-signature platform documents are
// imported from.
type ProviderConfig struct {
	BaseURL      string
	AccessToken  string
	RefreshToken string
}

type SigningConfig struct {
	// BaseURL prefixes recipient signing links: <BaseURL>/sign/<token>.
	BaseURL string
}

type ImportConfig struct {
	// JobTTL is the retention window for finished import jobs; the job
	// store's TTL discards them afterwards.
	JobTTL time.Duration
	// SweepInterval drives the periodic document expiration sweep.
	SweepInterval time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "draftdeck")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("SIGNING_BASE_URL", "http://localhost:5001")
	viper.SetDefault("IMPORT_JOB_TTL_MINUTES", 30)
	viper.SetDefault("EXPIRY_SWEEP_MINUTES", 10)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       0,
		},
		OIDC: OIDCConfig{
			IssuerURL:  viper.GetString("OIDC_ISSUER_URL"),
			ClientID:   viper.GetString("OIDC_CLIENT_ID"),
			HMACSecret: viper.GetString("AUTH_HMAC_SECRET"),
		},
		Provider: ProviderConfig{
			BaseURL:      viper.GetString("PROVIDER_BASE_URL"),
			AccessToken:  viper.GetString("PROVIDER_ACCESS_TOKEN"),
			RefreshToken: viper.GetString("PROVIDER_REFRESH_TOKEN"),
		},
		Signing: SigningConfig{
			BaseURL: viper.GetString("SIGNING_BASE_URL"),
		},
		Import: ImportConfig{
			JobTTL:        time.Duration(viper.GetInt("IMPORT_JOB_TTL_MINUTES")) * time.Minute,
			SweepInterval: time.Duration(viper.GetInt("EXPIRY_SWEEP_MINUTES")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	return cfg, nil
}
