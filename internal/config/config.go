package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port     string
	LogLevel string

	// Backend Armorum
	APIBaseURL  string
	AuthToken   string
	HTTPTimeout time.Duration

	// Circuit breaker del cliente
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration

	// Polling de registros
	BatchPollInterval     time.Duration
	ExceptionPollInterval time.Duration
	ProductPollInterval   time.Duration

	MessageTTL     time.Duration
	MaxUploadBytes int64
}

// Load lee la configuración del entorno. Si existe un archivo .env se carga
// primero; las variables ya definidas en el entorno tienen prioridad.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		zap.L().Debug("No .env file found, relying on system env")
	}

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		APIBaseURL: strings.TrimRight(getEnv("ARMORUM_API_URL", "http://localhost:8080/api"), "/"),
		AuthToken:  getEnv("ARMORUM_AUTH_TOKEN", ""),
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerTimeout, err = getDuration("BREAKER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchPollInterval, err = getDuration("POLL_LOTES", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ExceptionPollInterval, err = getDuration("POLL_EXCEPCIONES", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProductPollInterval, err = getDuration("POLL_PRODUCTOS", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.MessageTTL, err = getDuration("MENSAJE_TTL", 5*time.Second); err != nil {
		return nil, err
	}

	maxFailures, err := getInt("BREAKER_MAX_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	cfg.BreakerMaxFailures = uint32(maxFailures)

	maxMB, err := getInt("MAX_UPLOAD_MB", 50)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxMB) * 1024 * 1024

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("ARMORUM_API_URL is required")
	}
	if c.BatchPollInterval <= 0 || c.ExceptionPollInterval <= 0 || c.ProductPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	// Se aceptan segundos sin unidad ("30") o duraciones de Go ("30s", "1m")
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return n, nil
}
