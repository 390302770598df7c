package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the license service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string
	HTTPPort  int

	RedisURL   string
	AdminToken string

	DefaultValidity   time.Duration
	AuditRetention    time.Duration
	StoreOpTimeout    time.Duration
	ActivationRetries int

	AuditBufferSize int
	AuditMaxRetries int
	AuditRetryDelay time.Duration

	SeedDemoData bool
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Dependencies struct {
		RedisURL string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Licensing struct {
		DefaultValidityDays int  `yaml:"default_validity_days"`
		AuditRetentionDays  int  `yaml:"audit_retention_days"`
		StoreTimeoutSeconds int  `yaml:"store_timeout_seconds"`
		ActivationRetries   int  `yaml:"activation_retries"`
		SeedDemoData        bool `yaml:"seed_demo_data"`
	} `yaml:"licensing"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:         "license-service",
		HTTPPort:          8080,
		DefaultValidity:   30 * 24 * time.Hour,
		AuditRetention:    30 * 24 * time.Hour,
		StoreOpTimeout:    3 * time.Second,
		ActivationRetries: 5,
		AuditBufferSize:   256,
		AuditMaxRetries:   3,
		AuditRetryDelay:   200 * time.Millisecond,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Licensing.DefaultValidityDays > 0 {
			cfg.DefaultValidity = time.Duration(f.Licensing.DefaultValidityDays) * 24 * time.Hour
		}
		if f.Licensing.AuditRetentionDays > 0 {
			cfg.AuditRetention = time.Duration(f.Licensing.AuditRetentionDays) * 24 * time.Hour
		}
		if f.Licensing.StoreTimeoutSeconds > 0 {
			cfg.StoreOpTimeout = time.Duration(f.Licensing.StoreTimeoutSeconds) * time.Second
		}
		if f.Licensing.ActivationRetries > 0 {
			cfg.ActivationRetries = f.Licensing.ActivationRetries
		}
		cfg.SeedDemoData = f.Licensing.SeedDemoData
	}

	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.AdminToken = envOrDefault("ADMIN_TOKEN", cfg.AdminToken)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.ActivationRetries = envInt("ACTIVATION_RETRIES", cfg.ActivationRetries)
	cfg.AuditBufferSize = envInt("AUDIT_BUFFER_SIZE", cfg.AuditBufferSize)
	cfg.AuditMaxRetries = envInt("AUDIT_MAX_RETRIES", cfg.AuditMaxRetries)
	cfg.SeedDemoData = envBool("SEED_DEMO_DATA", cfg.SeedDemoData)

	cfg.DefaultValidity = time.Duration(envInt("DEFAULT_VALIDITY_DAYS", int(cfg.DefaultValidity.Hours()/24))) * 24 * time.Hour
	cfg.AuditRetention = time.Duration(envInt("AUDIT_RETENTION_DAYS", int(cfg.AuditRetention.Hours()/24))) * 24 * time.Hour
	cfg.StoreOpTimeout = time.Duration(envInt("STORE_TIMEOUT_SECONDS", int(cfg.StoreOpTimeout.Seconds()))) * time.Second

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
