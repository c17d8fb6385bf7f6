package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	RequestFee            int64
	DefaultSessionSeconds float64
	InactivityThreshold   time.Duration
	SweepInterval         time.Duration
	LockWait              time.Duration
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "agegate"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		RequestFee:            envInt64("REQUEST_FEE", 300),
		DefaultSessionSeconds: float64(envInt64("DEFAULT_SESSION_SECONDS", 300)),
		InactivityThreshold:   time.Duration(envInt64("INACTIVITY_THRESHOLD_SECONDS", 180)) * time.Second,
		SweepInterval:         time.Duration(envInt64("SWEEP_INTERVAL_SECONDS", 30)) * time.Second,
		LockWait:              time.Duration(envInt64("LOCK_WAIT_SECONDS", 30)) * time.Second,
	}, nil
}

func envInt64(name string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
