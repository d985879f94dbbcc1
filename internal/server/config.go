package server

import (
	"os"
	"strconv"
	"time"

	"github.com/dagbolade/install-integrity-sidecar/internal/auth"
)

// LoadConfig reads the HTTP settings from the environment.
func LoadConfig() Config {
	return Config{
		Port:            getEnvInt("PORT", 8080),
		ReadTimeout:     getEnvInt("READ_TIMEOUT", 30),
		WriteTimeout:    getEnvInt("WRITE_TIMEOUT", 30),
		ShutdownTimeout: getEnvInt("SHUTDOWN_TIMEOUT", 10),
		BodyLimit:       getEnv("BODY_LIMIT", "1M"),
	}
}

// LoadAuthConfig reads token and user settings. A non-positive
// TOKEN_TTL_HOURS falls back to 24 hours.
func LoadAuthConfig() auth.Config {
	ttl := getEnvInt("TOKEN_TTL_HOURS", 24)
	if ttl <= 0 {
		ttl = 24
	}
	return auth.Config{
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenExpiration: time.Duration(ttl) * time.Hour,
		RequireAuth:     getEnv("REQUIRE_AUTH", "false") == "true",
		Users:           os.Getenv("AUTH_USERS"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}
