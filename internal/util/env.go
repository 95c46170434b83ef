package util

import (
	"os"
	"strconv"
	"time"

	"github.com/cognify-labs/cognify/backend/pkg/logger"

	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file from the working directory if there is one.
// Variables already set in the process environment win.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
}

// GetEnv returns the variable or "" when it is unset.
func GetEnv(key string) string {
	return os.Getenv(key)
}

func GetEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envValue parses a set, non-empty variable with parse and falls back to
// defaultValue when it is missing or does not parse.
func envValue[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := parse(raw)
	if err != nil {
		logger.Debug("Ignoring invalid environment value", "key", key, "value", raw)
		return defaultValue
	}
	return v
}

func GetEnvNumeric(key string, defaultValue int) float64 {
	return envValue(key, float64(defaultValue), func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// GetEnvInt reads an integer variable. Non-integer values fall back to defaultValue.
func GetEnvInt(key string, defaultValue int) int {
	return envValue(key, defaultValue, strconv.Atoi)
}

func GetEnvBool(key string, defaultValue bool) bool {
	return envValue(key, defaultValue, strconv.ParseBool)
}

// GetEnvDuration parses values like "90s" or "15m". Plain integers are read as seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return envValue(key, defaultValue, func(s string) (time.Duration, error) {
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		secs, err := strconv.Atoi(s)
		return time.Duration(secs) * time.Second, err
	})
}
