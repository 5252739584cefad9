// Package config provides configuration loading and validation for the ranking
// service. It uses koanf to merge environment variables with optional file
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the ranking service.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Redis (session store + score cache). Optional: when unset the service
	// falls back to in-memory backends.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// Ranking calibration
	CalibrationPath string `koanf:"calibration_path"`

	// Devaluation
	DevaluationPreset string `koanf:"devaluation_preset"`
	DevaluationPath   string `koanf:"devaluation_path"`

	// Session tracking
	SessionTimeoutMinutes int `koanf:"session_timeout_minutes"`

	// Score cache
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// Recency decay half-life for blended scoring
	RecencyHalfLifeHours int `koanf:"recency_half_life_hours"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporterType string  `koanf:"tracing_exporter_type"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrInvalidPort            = errors.New("PORT must be a valid integer")
	ErrInvalidSessionTimeout  = errors.New("SESSION_TIMEOUT_MINUTES must be positive")
	ErrInvalidCacheTTL        = errors.New("CACHE_TTL_SECONDS must be positive")
	ErrInvalidRecencyHalfLife = errors.New("RECENCY_HALF_LIFE_HOURS must be positive")
	ErrInvalidSamplingRate    = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
	ErrUnknownPreset          = errors.New("DEVALUATION_PRESET must be one of: default, gentle, aggressive")
)

// Default values for non-secret configuration.
const (
	DefaultPort                  = 8080
	DefaultEnv                   = "development"
	DefaultSessionTimeoutMinutes = 30
	DefaultCacheTTLSeconds       = 60
	DefaultRecencyHalfLifeHours  = 24
	DefaultDevaluationPreset     = "default"
	DefaultTracingSamplingRate   = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try LUCENT_PORT first, then PORT for container environments
	port, portErr := getEnvIntOrDefaultMulti([]string{"LUCENT_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	redisDB, redisDBErr := getEnvIntOrDefault("REDIS_DB", k.Int("redis_db"), 0)
	if redisDBErr != nil {
		loadErrs = append(loadErrs, redisDBErr)
	}

	sessionTimeout, sessionErr := getEnvIntOrDefault("SESSION_TIMEOUT_MINUTES", k.Int("session_timeout_minutes"), DefaultSessionTimeoutMinutes)
	if sessionErr != nil {
		loadErrs = append(loadErrs, sessionErr)
	}

	cacheTTL, cacheTTLErr := getEnvIntOrDefault("CACHE_TTL_SECONDS", k.Int("cache_ttl_seconds"), DefaultCacheTTLSeconds)
	if cacheTTLErr != nil {
		loadErrs = append(loadErrs, cacheTTLErr)
	}

	halfLife, halfLifeErr := getEnvIntOrDefault("RECENCY_HALF_LIFE_HOURS", k.Int("recency_half_life_hours"), DefaultRecencyHalfLifeHours)
	if halfLifeErr != nil {
		loadErrs = append(loadErrs, halfLifeErr)
	}

	samplingRate, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                  port,
		Env:                   getEnvOrDefaultMulti([]string{"LUCENT_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		RedisAddr:             getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword:         getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		RedisDB:               redisDB,
		CalibrationPath:       getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		DevaluationPreset:     getEnvOrDefault("DEVALUATION_PRESET", k.String("devaluation_preset"), DefaultDevaluationPreset),
		DevaluationPath:       getEnvOrKoanf("DEVALUATION_PATH", k, "devaluation_path"),
		SessionTimeoutMinutes: sessionTimeout,
		CacheTTLSeconds:       cacheTTL,
		RecencyHalfLifeHours:  halfLife,
		TracingEnabled:        getEnvBool("TRACING_ENABLED", k.Bool("tracing_enabled")),
		TracingExporterType:   getEnvOrKoanf("TRACING_EXPORTER_TYPE", k, "tracing_exporter_type"),
		TracingOTLPEndpoint:   getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate:   samplingRate,
		TracingInsecure:       getEnvBool("TRACING_INSECURE", k.Bool("tracing_insecure")),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
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

// getEnvBool returns the environment variable as bool if set, otherwise the koanf value.
func getEnvBool(envKey string, koanfVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return koanfVal
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
// Returns an error if any environment variable is set but cannot be parsed as an integer.
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
// Returns an error if the environment variable is set but cannot be parsed as a float.
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

// Validate checks that all configuration values are in range.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.SessionTimeoutMinutes <= 0 {
		errs = append(errs, ErrInvalidSessionTimeout)
	}
	if c.CacheTTLSeconds <= 0 {
		errs = append(errs, ErrInvalidCacheTTL)
	}
	if c.RecencyHalfLifeHours <= 0 {
		errs = append(errs, ErrInvalidRecencyHalfLife)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}
	switch c.DevaluationPreset {
	case "", "default", "gentle", "aggressive":
	default:
		errs = append(errs, ErrUnknownPreset)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                    fmt.Sprintf("%d", c.Port),
		"env":                     c.Env,
		"redis_addr":              orNotSet(c.RedisAddr),
		"redis_password":          maskSecret(c.RedisPassword),
		"redis_db":                fmt.Sprintf("%d", c.RedisDB),
		"calibration_path":        orNotSet(c.CalibrationPath),
		"devaluation_preset":      c.DevaluationPreset,
		"devaluation_path":        orNotSet(c.DevaluationPath),
		"session_timeout_minutes": fmt.Sprintf("%d", c.SessionTimeoutMinutes),
		"cache_ttl_seconds":       fmt.Sprintf("%d", c.CacheTTLSeconds),
		"recency_half_life_hours": fmt.Sprintf("%d", c.RecencyHalfLifeHours),
		"tracing_enabled":         fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter_type":   orNotSet(c.TracingExporterType),
		"tracing_otlp_endpoint":   orNotSet(c.TracingOTLPEndpoint),
		"tracing_sampling_rate":   fmt.Sprintf("%g", c.TracingSamplingRate),
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
