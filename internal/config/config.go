package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Email     EmailConfig     `koanf:"email"`
	Auth      AuthConfig      `koanf:"auth"`
	Reminders RemindersConfig `koanf:"reminders"`
}

type ServerConfig struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	Environment string `koanf:"environment"` // "development", "production", "test"
	Debug       bool   `koanf:"debug"`
}

type DatabaseConfig struct {
	Host          string `koanf:"host"`
	Port          int    `koanf:"port"`
	User          string `koanf:"user"`
	Password      string `koanf:"password"`
	DBName        string `koanf:"name"`
	SSLMode       string `koanf:"sslmode"`
	MigrationsDir string `koanf:"migrations_dir"`
	MaxConns      int32  `koanf:"max_conns"`
}

type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type EmailConfig struct {
	Provider     string `koanf:"provider"` // "resend", "console"
	FromAddress  string `koanf:"from_address"`
	FromName     string `koanf:"from_name"`
	BaseURL      string `koanf:"base_url"` // Application base URL for links
	ResendAPIKey string `koanf:"resend_api_key"`
}

type AuthConfig struct {
	FirebaseProjectID string `koanf:"firebase_project_id"`
	// IssuerURL overrides the Firebase issuer, mostly for local OIDC test servers.
	IssuerURL string `koanf:"issuer_url"`
	ClientID  string `koanf:"client_id"`
}

type RemindersConfig struct {
	TickInterval  time.Duration `koanf:"tick_interval"`
	NotifyTimeout time.Duration `koanf:"notify_timeout"`
	LockTTL       time.Duration `koanf:"lock_ttl"`
	RunOnStart    bool          `koanf:"run_on_start"`
	CronSecret    string        `koanf:"cron_secret"`
	CronRateLimit int64         `koanf:"cron_rate_limit"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Issuer returns the OIDC issuer used to verify ID tokens.
func (a AuthConfig) Issuer() string {
	if strings.TrimSpace(a.IssuerURL) != "" {
		return a.IssuerURL
	}
	if a.FirebaseProjectID == "" {
		return ""
	}
	return "https://securetoken.google.com/" + a.FirebaseProjectID
}

// Audience is the expected "aud" claim. Firebase uses the project ID.
func (a AuthConfig) Audience() string {
	if a.ClientID != "" {
		return a.ClientID
	}
	return a.FirebaseProjectID
}

// envKeys maps supported environment variables onto config keys.
var envKeys = map[string]string{
	"SERVER_HOST":              "server.host",
	"SERVER_PORT":              "server.port",
	"APP_ENV":                  "server.environment",
	"DEBUG":                    "server.debug",
	"DB_HOST":                  "database.host",
	"DB_PORT":                  "database.port",
	"DB_USER":                  "database.user",
	"DB_PASSWORD":              "database.password",
	"DB_NAME":                  "database.name",
	"DB_SSLMODE":               "database.sslmode",
	"DB_MIGRATIONS_DIR":        "database.migrations_dir",
	"DB_MAX_CONNS":             "database.max_conns",
	"REDIS_HOST":               "redis.host",
	"REDIS_PORT":               "redis.port",
	"REDIS_PASSWORD":           "redis.password",
	"REDIS_DB":                 "redis.db",
	"EMAIL_PROVIDER":           "email.provider",
	"EMAIL_FROM_ADDRESS":       "email.from_address",
	"EMAIL_FROM_NAME":          "email.from_name",
	"APP_BASE_URL":             "email.base_url",
	"RESEND_API_KEY":           "email.resend_api_key",
	"FIREBASE_PROJECT_ID":      "auth.firebase_project_id",
	"OIDC_ISSUER_URL":          "auth.issuer_url",
	"OIDC_CLIENT_ID":           "auth.client_id",
	"REMINDERS_TICK_INTERVAL":  "reminders.tick_interval",
	"REMINDERS_NOTIFY_TIMEOUT": "reminders.notify_timeout",
	"REMINDERS_LOCK_TTL":       "reminders.lock_ttl",
	"REMINDERS_RUN_ON_START":   "reminders.run_on_start",
	"CRON_SECRET":              "reminders.cron_secret",
	"CRON_RATE_LIMIT":          "reminders.cron_rate_limit",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":               "0.0.0.0",
		"server.port":               8080,
		"server.environment":        "development",
		"server.debug":              false,
		"database.host":             "localhost",
		"database.port":             5432,
		"database.user":             "plantcare",
		"database.password":         "plantcare",
		"database.name":             "plantcare",
		"database.sslmode":          "disable",
		"database.migrations_dir":   "migrations",
		"database.max_conns":        10,
		"redis.host":                "localhost",
		"redis.port":                6379,
		"redis.password":            "",
		"redis.db":                  0,
		"email.provider":            "console",
		"email.from_address":        "reminders@plantcare.app",
		"email.from_name":           "Plant Care",
		"email.base_url":            "http://localhost:8080",
		"email.resend_api_key":      "",
		"auth.firebase_project_id":  "",
		"auth.issuer_url":           "",
		"auth.client_id":            "",
		"reminders.tick_interval":   "1h",
		"reminders.notify_timeout":  "30s",
		"reminders.lock_ttl":        "55m",
		"reminders.run_on_start":    true,
		"reminders.cron_secret":     "",
		"reminders.cron_rate_limit": 30,
	}
}

// Load reads defaults, then the YAML file named by CONFIG_FILE (if any),
// then environment variables. Later sources win.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading config defaults: %w", err)
	}

	if path, ok := os.LookupEnv("CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(key string) string {
		mapped, ok := envKeys[key]
		if !ok {
			return ""
		}
		if value, exists := os.LookupEnv(key); !exists || strings.TrimSpace(value) == "" {
			return ""
		}
		return mapped
	}), nil); err != nil {
		return nil, fmt.Errorf("loading config env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Reminders.TickInterval <= 0 {
		return fmt.Errorf("reminders.tick_interval must be positive, got %s", c.Reminders.TickInterval)
	}
	if c.Reminders.NotifyTimeout <= 0 {
		return fmt.Errorf("reminders.notify_timeout must be positive, got %s", c.Reminders.NotifyTimeout)
	}
	if c.Reminders.LockTTL <= 0 {
		return fmt.Errorf("reminders.lock_ttl must be positive, got %s", c.Reminders.LockTTL)
	}
	switch c.Email.Provider {
	case "resend", "console":
	default:
		return fmt.Errorf("unsupported email provider %q", c.Email.Provider)
	}
	return nil
}
