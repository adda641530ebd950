package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ARMORUM_API_URL", "HTTP_TIMEOUT", "POLL_LOTES", "POLL_EXCEPCIONES",
		"POLL_PRODUCTOS", "MENSAJE_TTL", "MAX_UPLOAD_MB", "BREAKER_MAX_FAILURES", "BREAKER_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.APIBaseURL != "http://localhost:8080/api" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.BatchPollInterval != 30*time.Second || cfg.ExceptionPollInterval != 60*time.Second || cfg.ProductPollInterval != 60*time.Second {
		t.Errorf("poll intervals = %v %v %v", cfg.BatchPollInterval, cfg.ExceptionPollInterval, cfg.ProductPollInterval)
	}
	if cfg.MessageTTL != 5*time.Second {
		t.Errorf("MessageTTL = %v", cfg.MessageTTL)
	}
	if cfg.MaxUploadBytes != 50*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.BreakerMaxFailures != 5 {
		t.Errorf("BreakerMaxFailures = %d", cfg.BreakerMaxFailures)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ARMORUM_API_URL", "https://armorum.example.com/api/")
	t.Setenv("POLL_LOTES", "10")
	t.Setenv("POLL_EXCEPCIONES", "2m")
	t.Setenv("MAX_UPLOAD_MB", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "https://armorum.example.com/api" {
		t.Errorf("APIBaseURL = %q (trailing slash must be trimmed)", cfg.APIBaseURL)
	}
	if cfg.BatchPollInterval != 10*time.Second {
		t.Errorf("BatchPollInterval = %v", cfg.BatchPollInterval)
	}
	if cfg.ExceptionPollInterval != 2*time.Minute {
		t.Errorf("ExceptionPollInterval = %v", cfg.ExceptionPollInterval)
	}
	if cfg.MaxUploadBytes != 20*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Setenv("ARMORUM_AUTH_TOKEN", "")
	t.Setenv("POLL_PRODUCTOS", "")

	path := filepath.Join(t.TempDir(), ".env")
	content := "ARMORUM_AUTH_TOKEN=secret-token\nPOLL_PRODUCTOS=45s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// godotenv no pisa variables ya definidas; se limpian para la prueba
	os.Unsetenv("ARMORUM_AUTH_TOKEN")
	os.Unsetenv("POLL_PRODUCTOS")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AuthToken != "secret-token" {
		t.Errorf("AuthToken = %q", cfg.AuthToken)
	}
	if cfg.ProductPollInterval != 45*time.Second {
		t.Errorf("ProductPollInterval = %v", cfg.ProductPollInterval)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"POLL_LOTES":           "cada rato",
		"MAX_UPLOAD_MB":        "-1",
		"BREAKER_MAX_FAILURES": "muchos",
		"POLL_PRODUCTOS":       "0",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}
