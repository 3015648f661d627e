// Package config provides configuration for the assistant.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the assistant configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Session persistence. Empty means in-memory sessions.
	DatabaseURL string

	// Retrieval service
	RetrievalBaseURL string
	RetrievalTimeout time.Duration

	// Model settings
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Dialog settings
	MaxTurns int

	// Confirmation policy. Empty means the built-in default policy.
	PolicyPath string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RetrievalBaseURL: getEnv("RETRIEVAL_BASE_URL", "http://127.0.0.1:8081"),
		RetrievalTimeout: time.Duration(getEnvInt("RETRIEVAL_TIMEOUT_MS", 30000)) * time.Millisecond,
		LLMBaseURL:       getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL", "gemini-2.0-flash-001"),
		LLMTimeout:       time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		MaxTurns:         getEnvInt("MAX_TURNS", 3),
		PolicyPath:       getEnv("POLICY_PATH", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
