package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "./config/config.yaml"

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Push       PushConfig       `yaml:"push"`
	Mail       MailConfig       `yaml:"mail"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Reminder   ReminderConfig   `yaml:"reminder"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications. Push delivery
// is disabled when either key is empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool { return p.PublicKey != "" && p.PrivateKey != "" }

// MailConfig holds the SMTP relay used for email notifications. Email is
// disabled when Host is empty.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                   int     `yaml:"port"`
	RequestIPHeader        string  `yaml:"request_ip_header"`
	RateLimitPerSec        float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds        int     `yaml:"cache_ttl_seconds"`
	ShutdownTimeoutSeconds int     `yaml:"shutdown_timeout_seconds"`
}

// AuthConfig holds the token settings.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTLHours int           `yaml:"token_ttl_hours"`
	TokenTTL      time.Duration `yaml:"-"`
}

// ReminderConfig controls the periodic due-date scan.
type ReminderConfig struct {
	Enabled         bool           `yaml:"enabled"`
	IntervalSeconds int            `yaml:"interval_seconds"`
	Interval        time.Duration  `yaml:"-"`
	WarrantyWindow  int            `yaml:"warranty_window_days"`
	DedupeHours     int            `yaml:"dedupe_hours"`
	Dedupe          time.Duration  `yaml:"-"`
	Timezone        string         `yaml:"timezone"`
	Location        *time.Location `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Path returns CONFIG_PATH or DefaultPath. A .env file in the working
// directory is loaded first so it can set CONFIG_PATH too.
func Path() string {
	_ = godotenv.Load(".env")
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the configuration from the given path, applies environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 5
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	switch cfg.Database.Driver {
	case "":
		cfg.Database.Driver = "postgres"
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver %q is not supported", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required")
	}
	if cfg.Auth.TokenTTLHours <= 0 {
		cfg.Auth.TokenTTLHours = 12
	}
	cfg.Auth.TokenTTL = time.Duration(cfg.Auth.TokenTTLHours) * time.Hour

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Mail.Port <= 0 {
		cfg.Mail.Port = 587
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Warn().Msg("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 256
	}

	if cfg.Reminder.IntervalSeconds <= 0 {
		cfg.Reminder.IntervalSeconds = 3600
	}
	cfg.Reminder.Interval = time.Duration(cfg.Reminder.IntervalSeconds) * time.Second
	if cfg.Reminder.WarrantyWindow <= 0 {
		cfg.Reminder.WarrantyWindow = 30
	}
	if cfg.Reminder.DedupeHours <= 0 {
		cfg.Reminder.DedupeHours = 24
	}
	cfg.Reminder.Dedupe = time.Duration(cfg.Reminder.DedupeHours) * time.Hour
	cfg.Reminder.Location = time.UTC
	if cfg.Reminder.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Reminder.Timezone)
		if err != nil {
			return fmt.Errorf("reminder.timezone: %w", err)
		}
		cfg.Reminder.Location = loc
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}
