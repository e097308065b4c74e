package utils

import (
	"log"
	"os"
	"strconv"
	"time"
)

// EnvInt reads an integer environment variable, falling back to def when
// unset or unparseable.
func EnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️  %s=%q is not an integer, using default %d", key, raw, def)
		return def
	}
	return n
}

// EnvDurationMs reads a millisecond count from the environment.
func EnvDurationMs(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		log.Printf("⚠️  %s=%q is not a millisecond count, using default %s", key, raw, def)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// EnvBool treats "true"/"1" as true, anything else as the default off value
// unless explicitly "false"/"0".
func EnvBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return def
	}
}
