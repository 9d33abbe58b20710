// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis result cache. Optional; an empty address disables caching.
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`

	// Normalization parameters
	ActivityCapEvents int `koanf:"activity_cap_events"`
	MaxPlanRank       int `koanf:"max_plan_rank"`

	// Background recompute job
	RecomputeInterval time.Duration `koanf:"recompute_interval"`
	RecomputeTimeout  time.Duration `koanf:"recompute_timeout"`

	// Tracing
	TracingEnabled  bool    `koanf:"tracing_enabled"`
	TracingExporter string  `koanf:"tracing_exporter"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	SamplingRate    float64 `koanf:"sampling_rate"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL      = errors.New("DATABASE_URL is required")
	ErrInvalidPort             = errors.New("PORT must be a valid integer")
	ErrInvalidActivityCap      = errors.New("ACTIVITY_CAP_EVENTS must be > 0")
	ErrInvalidMaxPlanRank      = errors.New("MAX_PLAN_RANK must be > 0")
	ErrInvalidSamplingRate     = errors.New("SAMPLING_RATE must be between 0.0 and 1.0")
	ErrInvalidTracingExporter  = errors.New("TRACING_EXPORTER must be otlp-grpc or otlp-http")
	ErrInvalidRecomputeTimings = errors.New("RECOMPUTE_INTERVAL and RECOMPUTE_TIMEOUT must be > 0")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultCacheTTL          = 15 * time.Minute
	DefaultActivityCapEvents = 30
	DefaultMaxPlanRank       = 3
	DefaultRecomputeInterval = 30 * time.Second
	DefaultRecomputeTimeout  = 30 * time.Second
	DefaultTracingExporter   = "otlp-grpc"
	DefaultSamplingRate      = 1.0
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// YAML file first, lower precedence
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"VERIDEX_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	activityCap, capErr := getEnvIntOrDefault("ACTIVITY_CAP_EVENTS", k.Int("activity_cap_events"), DefaultActivityCapEvents)
	if capErr != nil {
		loadErrs = append(loadErrs, capErr)
	}
	maxPlanRank, planErr := getEnvIntOrDefault("MAX_PLAN_RANK", k.Int("max_plan_rank"), DefaultMaxPlanRank)
	if planErr != nil {
		loadErrs = append(loadErrs, planErr)
	}

	cacheTTL, ttlErr := getEnvDurationOrDefault("CACHE_TTL", k.Duration("cache_ttl"), DefaultCacheTTL)
	if ttlErr != nil {
		loadErrs = append(loadErrs, ttlErr)
	}
	recomputeInterval, riErr := getEnvDurationOrDefault("RECOMPUTE_INTERVAL", k.Duration("recompute_interval"), DefaultRecomputeInterval)
	if riErr != nil {
		loadErrs = append(loadErrs, riErr)
	}
	recomputeTimeout, rtErr := getEnvDurationOrDefault("RECOMPUTE_TIMEOUT", k.Duration("recompute_timeout"), DefaultRecomputeTimeout)
	if rtErr != nil {
		loadErrs = append(loadErrs, rtErr)
	}

	samplingRate, srErr := getEnvFloatOrDefault("SAMPLING_RATE", k.Float64("sampling_rate"), DefaultSamplingRate)
	if srErr != nil {
		loadErrs = append(loadErrs, srErr)
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		tracingEnabled = val == "true" || val == "1" || val == "yes" || val == "on"
	}

	corsOrigins := k.Strings("cors_allowed_origins")
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		corsOrigins = splitAndTrim(val)
	}

	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefaultMulti([]string{"VERIDEX_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:        getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:          getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword:      getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		CacheTTL:           cacheTTL,
		ActivityCapEvents:  activityCap,
		MaxPlanRank:        maxPlanRank,
		RecomputeInterval:  recomputeInterval,
		RecomputeTimeout:   recomputeTimeout,
		TracingEnabled:     tracingEnabled,
		TracingExporter:    getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:       getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		SamplingRate:       samplingRate,
		CORSAllowedOrigins: corsOrigins,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// splitAndTrim splits a comma-separated list, dropping empty elements.
func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a duration if set,
// otherwise the koanf value, or default.
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.ActivityCapEvents <= 0 {
		errs = append(errs, ErrInvalidActivityCap)
	}
	if c.MaxPlanRank <= 0 {
		errs = append(errs, ErrInvalidMaxPlanRank)
	}
	if c.SamplingRate < 0.0 || c.SamplingRate > 1.0 {
		errs = append(errs, ErrInvalidSamplingRate)
	}
	if c.TracingExporter != "otlp-grpc" && c.TracingExporter != "otlp-http" {
		errs = append(errs, ErrInvalidTracingExporter)
	}
	if c.RecomputeInterval <= 0 || c.RecomputeTimeout <= 0 {
		errs = append(errs, ErrInvalidRecomputeTimings)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                fmt.Sprintf("%d", c.Port),
		"env":                 c.Env,
		"database_url":        maskDatabaseURL(c.DatabaseURL),
		"redis_addr":          orNotSet(c.RedisAddr),
		"redis_password":      maskSecret(c.RedisPassword),
		"cache_ttl":           c.CacheTTL.String(),
		"activity_cap_events": fmt.Sprintf("%d", c.ActivityCapEvents),
		"max_plan_rank":       fmt.Sprintf("%d", c.MaxPlanRank),
		"recompute_interval":  c.RecomputeInterval.String(),
		"recompute_timeout":   c.RecomputeTimeout.String(),
		"tracing_enabled":     fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":    c.TracingExporter,
		"otlp_endpoint":       orNotSet(c.OTLPEndpoint),
		"sampling_rate":       fmt.Sprintf("%g", c.SamplingRate),
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // no credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // no password, only username
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
