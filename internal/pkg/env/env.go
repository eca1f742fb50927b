package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt returns the integer value for key, or def when unset or unparsable.
func GetEnvInt(key string, def int) int {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		zap.L().Warn("env value is not an integer, using default",
			zap.String("key", key), zap.String("value", raw), zap.Int("default", def))
		return def
	}
	return v
}

// GetEnvDuration parses Go durations ("300s", "5m"). A bare integer is read as seconds.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		zap.L().Warn("env value is not a duration, using default",
			zap.String("key", key), zap.String("value", raw), zap.Duration("default", def))
		return def
	}
	return d
}

// GetEnvList splits a comma separated value and drops empty items.
func GetEnvList(key string) []string {
	raw := GetEnv(key, "")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetupEnvFile loads the first .env file found and returns its path, or ""
// when only the process environment is used.
func SetupEnvFile() string {
	// Look for .env file in project root
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/arcana to project root
		"../../../.env", // Fallback for deeper nesting
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return envFile
		}
	}

	// Containers usually inject everything through the process environment.
	Env = map[string]string{}
	return ""
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
