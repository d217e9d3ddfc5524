package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendLocal    = "local"
	BackendSupabase = "supabase"
)

type Config struct {
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	GinMode     string `mapstructure:"gin_mode"`
	LogLevel    string `mapstructure:"log_level"`
	PublicURL   string `mapstructure:"public_url"`

	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Email     EmailConfig     `mapstructure:"email"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Server    ServerConfig    `mapstructure:"server"`

	// GeneratedSecret is set when a throwaway JWT secret was created for
	// development.
	GeneratedSecret bool   `mapstructure:"-"`
	ConfigPath      string `mapstructure:"-"`
}

type DatabaseConfig struct {
	URL    string `mapstructure:"url"`
	Driver string `mapstructure:"driver"`
}

type AuthConfig struct {
	Provider           string        `mapstructure:"provider"`
	ConfirmationPolicy string        `mapstructure:"confirmation_policy"`
	JWTSecret          string        `mapstructure:"jwt_secret"`
	AccessTTL          time.Duration `mapstructure:"access_ttl"`
}

type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
	AnonKey    string `mapstructure:"anon_key"`
	Table      string `mapstructure:"table"`
}

type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type ServerConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"port":                     "PORT",
	"environment":              "ENVIRONMENT",
	"gin_mode":                 "GIN_MODE",
	"log_level":                "LOG_LEVEL",
	"public_url":               "PUBLIC_URL",
	"database.url":             "DATABASE_URL",
	"database.driver":          "DATABASE_DRIVER",
	"auth.provider":            "AUTH_PROVIDER",
	"auth.confirmation_policy": "AUTH_CONFIRMATION_POLICY",
	"auth.jwt_secret":          "JWT_SECRET",
	"auth.access_ttl":          "ACCESS_TOKEN_TTL",
	"supabase.url":             "SUPABASE_URL",
	"supabase.service_key":     "SUPABASE_SERVICE_KEY",
	"supabase.anon_key":        "SUPABASE_ANON_KEY",
	"supabase.table":           "SUPABASE_TABLE",
	"email.resend_api_key":     "RESEND_API_KEY",
	"email.from":               "EMAIL_FROM",
	"rate_limit.requests":      "RATE_LIMIT_REQUESTS",
	"rate_limit.window":        "RATE_LIMIT_WINDOW",
	"server.read_timeout":      "READ_TIMEOUT",
	"server.write_timeout":     "WRITE_TIMEOUT",
	"server.shutdown_timeout":  "SHUTDOWN_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("gin_mode", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("public_url", "")
	v.SetDefault("database.url", "expense.db")
	v.SetDefault("database.driver", "")
	v.SetDefault("auth.provider", BackendLocal)
	v.SetDefault("auth.confirmation_policy", "auto")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", time.Hour)
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_key", "")
	v.SetDefault("supabase.anon_key", "")
	v.SetDefault("supabase.table", "transactions")
	v.SetDefault("email.resend_api_key", "")
	v.SetDefault("email.from", "noreply@expense-tracker.local")
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

// Load reads .env (if present), an optional YAML file at path and the
// environment, in increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.Auth.Provider = strings.ToLower(strings.TrimSpace(cfg.Auth.Provider))
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:" + cfg.Port
	}

	if cfg.Auth.Provider == BackendLocal && cfg.Auth.JWTSecret == "" && !cfg.IsProduction() {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Auth.JWTSecret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Auth.Provider {
	case BackendLocal:
		if len(c.Auth.JWTSecret) < 16 {
			problems = append(problems, "JWT_SECRET must be at least 16 characters")
		}
		if _, err := c.Database.DriverName(); err != nil {
			problems = append(problems, err.Error())
		}
	case BackendSupabase:
		if c.Supabase.URL == "" {
			problems = append(problems, "SUPABASE_URL is required for the supabase backend")
		}
		if c.Supabase.ServiceKey == "" {
			problems = append(problems, "SUPABASE_SERVICE_KEY is required for the supabase backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("AUTH_PROVIDER %q is not supported (want local or supabase)", c.Auth.Provider))
	}

	switch strings.ToLower(c.Auth.ConfirmationPolicy) {
	case "", "auto", "email":
	default:
		problems = append(problems, fmt.Sprintf("AUTH_CONFIRMATION_POLICY %q is not supported (want auto or email)", c.Auth.ConfirmationPolicy))
	}

	if c.RateLimit.Requests < 0 {
		problems = append(problems, "RATE_LIMIT_REQUESTS must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DriverName returns "postgres" or "sqlite", inferring it from the URL when
// DATABASE_DRIVER is unset.
func (d DatabaseConfig) DriverName() (string, error) {
	switch strings.ToLower(strings.TrimSpace(d.Driver)) {
	case "postgres", "postgresql", "pq":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "":
		if strings.HasPrefix(d.URL, "postgres://") || strings.HasPrefix(d.URL, "postgresql://") {
			return "postgres", nil
		}
		return "sqlite", nil
	default:
		return "", fmt.Errorf("DATABASE_DRIVER %q is not supported (want postgres or sqlite)", d.Driver)
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
