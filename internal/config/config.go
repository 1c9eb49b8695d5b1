package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// StoreMemory is the DATABASE_URL value that selects the in-memory store
// instead of PostgreSQL. Useful for local development and demos.
const StoreMemory = "memory"

type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	RedisURL          string
	LogLevel          string
	LogFormat         string
	MaxClientsPerPoll int
	VoteCooldown      time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required (use %q for the in-memory store)", StoreMemory)
	}

	maxClients, err := getEnvInt("MAX_CLIENTS_PER_POLL", 100)
	if err != nil {
		return nil, err
	}
	if maxClients <= 0 {
		return nil, fmt.Errorf("MAX_CLIENTS_PER_POLL must be positive, got %d", maxClients)
	}
	cfg.MaxClientsPerPoll = maxClients

	cooldownMs, err := getEnvInt("VOTE_COOLDOWN_MS", 0)
	if err != nil {
		return nil, err
	}
	if cooldownMs < 0 {
		return nil, fmt.Errorf("VOTE_COOLDOWN_MS must not be negative, got %d", cooldownMs)
	}
	cfg.VoteCooldown = time.Duration(cooldownMs) * time.Millisecond

	// Cooldown enforcement lives in Redis, so one implies the other.
	if cfg.VoteCooldown > 0 && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when VOTE_COOLDOWN_MS is set")
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
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}
