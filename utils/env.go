package utils

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

func GetEnvOrDefault(env, defaultVal string) string {
	e := os.Getenv(env)
	if e == "" {
		return defaultVal
	}
	return e
}

// GetEnvOrDefaultInt falls back to defaultVal when env is unset or malformed.
func GetEnvOrDefaultInt(env string, defaultVal int64) int64 {
	e := os.Getenv(env)
	if e == "" {
		return defaultVal
	}
	intVal, err := strconv.ParseInt(e, 10, 32)
	if err != nil {
		slog.Warn("failed to parse env as int", "env", env, "value", e)
		return defaultVal
	}
	return intVal
}

func GetEnvOrDefaultDuration(env string, defaultVal time.Duration) time.Duration {
	e := os.Getenv(env)
	if e == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(e)
	if err != nil {
		slog.Warn("failed to parse env as duration", "env", env, "value", e)
		return defaultVal
	}
	return d
}

func Ptr[T any](s T) *T {
	return &s
}
