package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling and env for environment variable binding.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Clerk integration: webhook signing secret (whsec_...), management API
	// key and base URL for metadata sync and directory listing.
	ClerkWebhookSecret string `mapstructure:"CLERK_WEBHOOK_SECRET"`
	ClerkSecretKey     string `mapstructure:"CLERK_SECRET_KEY"`
	ClerkAPIBase       string `mapstructure:"CLERK_API_BASE"`

	// Stripe webhook endpoint secret.
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	// Comma-separated origin allow-list for the dashboard.
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	// TTL in seconds for the cached identity directory used by the admin
	// listing merge.
	DirectoryCacheTTLSec int `mapstructure:"DIRECTORY_CACHE_TTL_SEC"`
}

// Origins splits the configured origin allow-list.
func (c *ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/userhub/")
	v.AddConfigPath("$HOME/.userhub")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/userhub_dev")
	v.SetDefault("MONGO_DB_NAME", "userhub_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "userhub-server")
	v.SetDefault("CLERK_API_BASE", "https://api.clerk.com/v1")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DIRECTORY_CACHE_TTL_SEC", 60)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: env vars and defaults apply.
		// Anything else (malformed file, permissions) is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.ClerkWebhookSecret == "" {
		return nil, fmt.Errorf("CLERK_WEBHOOK_SECRET is required")
	}

	return &cfg, nil
}
