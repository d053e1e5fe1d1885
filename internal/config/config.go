// Package config loads bot configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Solana
	RPCEndpoint  string
	WSEndpoint   string
	ProgramID    string
	BotSecretKey string

	// Payout gateway
	GatewayBaseURL string
	GatewayAPIKey  string

	// Notifications
	NotifierBaseURL string
	NotifierToken   string

	// Storage
	DatabaseURL   string
	ClickhouseDSN string

	// Tuning
	SettlementDelay time.Duration
	ConfirmTimeout  time.Duration
	DrainTimeout    time.Duration
	MetricsAddr     string

	// Breaker thresholds
	GatewayFailureThreshold int
	GatewayResetTimeout     time.Duration
	RPCFailureThreshold     int
	RPCResetTimeout         time.Duration
}

// Load reads configuration from a .env file (if present) and the
// environment, then validates it.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		RPCEndpoint:  os.Getenv("RPC_ENDPOINT"),
		WSEndpoint:   os.Getenv("WS_ENDPOINT"),
		ProgramID:    os.Getenv("PROGRAM_ID"),
		BotSecretKey: os.Getenv("BOT_SECRET_KEY"),

		GatewayBaseURL: os.Getenv("GATEWAY_BASE_URL"),
		GatewayAPIKey:  os.Getenv("GATEWAY_API_KEY"),

		NotifierBaseURL: os.Getenv("NOTIFIER_BASE_URL"),
		NotifierToken:   os.Getenv("NOTIFIER_TOKEN"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		ClickhouseDSN: os.Getenv("CLICKHOUSE_DSN"),

		SettlementDelay: getDurationOrDefault("SETTLEMENT_DELAY", 5*time.Second),
		ConfirmTimeout:  getDurationOrDefault("CONFIRM_TIMEOUT", 60*time.Second),
		DrainTimeout:    getDurationOrDefault("DRAIN_TIMEOUT", 30*time.Second),
		MetricsAddr:     getEnvOrDefault("METRICS_ADDR", ":9090"),

		GatewayFailureThreshold: getIntOrDefault("GATEWAY_FAILURE_THRESHOLD", 3),
		GatewayResetTimeout:     getDurationOrDefault("GATEWAY_RESET_TIMEOUT", 15*time.Second),
		RPCFailureThreshold:     getIntOrDefault("RPC_FAILURE_THRESHOLD", 5),
		RPCResetTimeout:         getDurationOrDefault("RPC_RESET_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"RPC_ENDPOINT", c.RPCEndpoint},
		{"WS_ENDPOINT", c.WSEndpoint},
		{"PROGRAM_ID", c.ProgramID},
		{"BOT_SECRET_KEY", c.BotSecretKey},
		{"GATEWAY_BASE_URL", c.GatewayBaseURL},
		{"GATEWAY_API_KEY", c.GatewayAPIKey},
		{"NOTIFIER_BASE_URL", c.NotifierBaseURL},
		{"DATABASE_URL", c.DatabaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s cannot be empty", r.name)
		}
	}

	if c.SettlementDelay < 0 {
		return fmt.Errorf("SETTLEMENT_DELAY cannot be negative, got %s", c.SettlementDelay)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("DRAIN_TIMEOUT must be positive, got %s", c.DrainTimeout)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
