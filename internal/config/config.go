// Package config loads forge configuration from file, environment, and
// defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full forge configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Models   ModelsConfig   `mapstructure:"models"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Address returns the listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the execution adapter
type DatabaseConfig struct {
	// Provider is memory, postgres, or sqlite
	Provider string `mapstructure:"provider"`
	URL      string `mapstructure:"url"`
}

// RedisConfig configures the rate limiter backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds the JWT signing secret and toggles API key
// authentication for the generated routes
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
	APIKey bool   `mapstructure:"apiKey"`
}

// MetricsConfig toggles per-request telemetry collection
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ModelsConfig locates the model definition documents
type ModelsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads configuration from the given file (optional), FORGE_*
// environment variables, and defaults, in that precedence order.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.provider", "memory")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.apikey", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("models.dir", "models")

	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("forge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Provider {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database provider: %s", c.Database.Provider)
	}
	if c.Database.Provider != "memory" && c.Database.URL == "" {
		return fmt.Errorf("database.url is required for provider %s", c.Database.Provider)
	}
	return nil
}
