package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	// Storage
	StorageEnabled bool
	DatabaseURL    string

	// Drift checking
	PrometheusURL string

	// Watch loop
	WatchInterval     time.Duration
	MetricsListenAddr string

	// Admission
	AdmitMaxRetries int
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	return &Config{
		StorageEnabled:    getEnvBool("STORAGE_ENABLED", true),
		DatabaseURL:       getEnv("DATABASE_URL", "host=localhost port=5432 user=pdbguard password=devpassword dbname=pdbguard sslmode=disable"),
		PrometheusURL:     getEnv("PROMETHEUS_URL", "http://localhost:9090"),
		WatchInterval:     time.Duration(getEnvInt("WATCH_INTERVAL_SECONDS", 15)) * time.Second,
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ":9806"),
		AdmitMaxRetries:   getEnvInt("ADMIT_MAX_RETRIES", 5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.StorageEnabled && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when storage is enabled")
	}
	if c.WatchInterval < time.Second {
		return fmt.Errorf("watch interval must be at least 1 second")
	}
	if c.AdmitMaxRetries < 1 {
		return fmt.Errorf("admit retries must be >= 1")
	}
	if c.AdmitMaxRetries > 100 {
		return fmt.Errorf("admit retries cannot exceed 100")
	}
	return nil
}
