package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv unsets every variable Load reads so tests start from a clean slate.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"LUCENT_PORT", "PORT", "LUCENT_ENV", "ENV", "GO_ENV",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"CALIBRATION_PATH", "DEVALUATION_PRESET", "DEVALUATION_PATH",
		"SESSION_TIMEOUT_MINUTES", "CACHE_TTL_SECONDS", "RECENCY_HALF_LIFE_HOURS",
		"TRACING_ENABLED", "TRACING_EXPORTER_TYPE", "TRACING_OTLP_ENDPOINT",
		"TRACING_SAMPLING_RATE", "TRACING_INSECURE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.Env != DefaultEnv {
		t.Errorf("expected env %q, got %q", DefaultEnv, cfg.Env)
	}
	if cfg.SessionTimeoutMinutes != DefaultSessionTimeoutMinutes {
		t.Errorf("expected session timeout %d, got %d", DefaultSessionTimeoutMinutes, cfg.SessionTimeoutMinutes)
	}
	if cfg.CacheTTLSeconds != DefaultCacheTTLSeconds {
		t.Errorf("expected cache ttl %d, got %d", DefaultCacheTTLSeconds, cfg.CacheTTLSeconds)
	}
	if cfg.RecencyHalfLifeHours != DefaultRecencyHalfLifeHours {
		t.Errorf("expected half-life %d, got %d", DefaultRecencyHalfLifeHours, cfg.RecencyHalfLifeHours)
	}
	if cfg.DevaluationPreset != DefaultDevaluationPreset {
		t.Errorf("expected preset %q, got %q", DefaultDevaluationPreset, cfg.DevaluationPreset)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("expected empty redis addr, got %q", cfg.RedisAddr)
	}
	if cfg.TracingEnabled {
		t.Error("tracing should be disabled by default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LUCENT_PORT", "9090")
	t.Setenv("LUCENT_ENV", "production")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SESSION_TIMEOUT_MINUTES", "45")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("DEVALUATION_PRESET", "gentle")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TRACING_SAMPLING_RATE", "0.5")

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected env production, got %q", cfg.Env)
	}
	if cfg.RedisAddr != "redis.internal:6379" {
		t.Errorf("expected redis addr, got %q", cfg.RedisAddr)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.RedisDB)
	}
	if cfg.SessionTimeoutMinutes != 45 {
		t.Errorf("expected session timeout 45, got %d", cfg.SessionTimeoutMinutes)
	}
	if cfg.CacheTTLSeconds != 120 {
		t.Errorf("expected cache ttl 120, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.DevaluationPreset != "gentle" {
		t.Errorf("expected gentle preset, got %q", cfg.DevaluationPreset)
	}
	if !cfg.TracingEnabled {
		t.Error("expected tracing enabled")
	}
	if cfg.TracingSamplingRate != 0.5 {
		t.Errorf("expected sampling rate 0.5, got %v", cfg.TracingSamplingRate)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := strings.Join([]string{
		"port: 8088",
		"env: staging",
		"redis_addr: localhost:6379",
		"devaluation_preset: aggressive",
		"cache_ttl_seconds: 30",
	}, "\n")
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	if cfg.Port != 8088 {
		t.Errorf("expected port 8088, got %d", cfg.Port)
	}
	if cfg.Env != "staging" {
		t.Errorf("expected env staging, got %q", cfg.Env)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected redis addr from file, got %q", cfg.RedisAddr)
	}
	if cfg.DevaluationPreset != "aggressive" {
		t.Errorf("expected aggressive preset, got %q", cfg.DevaluationPreset)
	}
	if cfg.CacheTTLSeconds != 30 {
		t.Errorf("expected cache ttl 30, got %d", cfg.CacheTTLSeconds)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 8088\nenv: staging\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LUCENT_PORT", "9999")
	t.Setenv("LUCENT_ENV", "production")

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	if cfg.Port != 9999 {
		t.Errorf("env should override file: expected 9999, got %d", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("env should override file: expected production, got %q", cfg.Env)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, errs := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if len(errs) == 0 {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("LUCENT_PORT", "not-a-number")

	_, errs := Load("")
	if len(errs) == 0 {
		t.Fatal("expected error for unparseable port")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:                  8080,
		Env:                   "development",
		DevaluationPreset:     "default",
		SessionTimeoutMinutes: 30,
		CacheTTLSeconds:       60,
		RecencyHalfLifeHours:  24,
		TracingSamplingRate:   0.1,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"port zero", func(c *Config) { c.Port = 0 }, ErrInvalidPort},
		{"port out of range", func(c *Config) { c.Port = 70000 }, ErrInvalidPort},
		{"session timeout zero", func(c *Config) { c.SessionTimeoutMinutes = 0 }, ErrInvalidSessionTimeout},
		{"cache ttl negative", func(c *Config) { c.CacheTTLSeconds = -1 }, ErrInvalidCacheTTL},
		{"half-life zero", func(c *Config) { c.RecencyHalfLifeHours = 0 }, ErrInvalidRecencyHalfLife},
		{"sampling rate above one", func(c *Config) { c.TracingSamplingRate = 1.5 }, ErrInvalidSamplingRate},
		{"unknown preset", func(c *Config) { c.DevaluationPreset = "brutal" }, ErrUnknownPreset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			errs := cfg.Validate()
			if tt.wantErr == nil {
				if len(errs) != 0 {
					t.Errorf("unexpected errors: %v", errs)
				}
				return
			}
			found := false
			for _, err := range errs {
				if errors.Is(err, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %v in %v", tt.wantErr, errs)
			}
		})
	}
}

func TestLogSummaryMasksSecrets(t *testing.T) {
	cfg := Config{
		Port:          8080,
		Env:           "production",
		RedisAddr:     "redis.internal:6379",
		RedisPassword: "super-secret-password",
	}

	summary := cfg.LogSummary()

	if strings.Contains(summary["redis_password"], "secret-password") {
		t.Errorf("redis password leaked in summary: %q", summary["redis_password"])
	}
	if summary["redis_addr"] != "redis.internal:6379" {
		t.Errorf("redis addr should not be masked, got %q", summary["redis_addr"])
	}
	if summary["calibration_path"] != "<not set>" {
		t.Errorf("expected <not set> marker, got %q", summary["calibration_path"])
	}
}
