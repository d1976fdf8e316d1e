package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// Connection limits for the WebSocket endpoint.
	MaxConnections      int64
	MaxConnectionsPerIP int
	ConnectionRate      float64
	ConnectionBurst     int

	// MaxGroupMembers caps sessions per interest group (0 = unlimited).
	MaxGroupMembers int

	// SeedDemoData loads a handful of work items at startup.
	SeedDemoData bool
}

func Load() (*Config, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		SeedDemoData: getEnv("SEED_DEMO_DATA", "true") == "true",
	}

	var err error
	if cfg.MaxConnections, err = getEnvInt64("MAX_CONNECTIONS", 10000); err != nil {
		return nil, err
	}
	if cfg.MaxConnectionsPerIP, err = getEnvInt("MAX_CONNECTIONS_PER_IP", 20); err != nil {
		return nil, err
	}
	if cfg.ConnectionRate, err = getEnvFloat("CONNECTION_RATE", 10.0); err != nil {
		return nil, err
	}
	if cfg.ConnectionBurst, err = getEnvInt("CONNECTION_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.MaxGroupMembers, err = getEnvInt("MAX_GROUP_MEMBERS", 100); err != nil {
		return nil, err
	}

	if cfg.MaxConnections < 1 {
		return nil, fmt.Errorf("MAX_CONNECTIONS must be positive")
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return nil, fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive")
	}
	if cfg.ConnectionRate <= 0 {
		return nil, fmt.Errorf("CONNECTION_RATE must be positive")
	}
	if cfg.ConnectionBurst < 1 {
		return nil, fmt.Errorf("CONNECTION_BURST must be positive")
	}
	if cfg.MaxGroupMembers < 0 {
		return nil, fmt.Errorf("MAX_GROUP_MEMBERS must not be negative")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
