// Package config loads server configuration from the environment and
// the YAML catalog directory that seeds standards profiles, industry
// profiles, and profile bundles at startup. Standards packs are JSON and
// are loaded by pkg/standards.
package config

import (
	"os"
	"strconv"
)

// Config holds server configuration, loaded from environment
// variables with defaults suitable for local development.
type Config struct {
	Port             string
	LogLevel         string
	DatabaseURL      string
	RedisAddr        string
	PacksDir         string
	ProfilesDir      string
	JWTSigningKeyEnv string
	RateLimitRPS     float64
	RateLimitBurst   int
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:             envOr("SOE_PORT", "8080"),
		LogLevel:         envOr("SOE_LOG_LEVEL", "INFO"),
		DatabaseURL:      envOr("SOE_DATABASE_URL", ""),
		RedisAddr:        envOr("SOE_REDIS_ADDR", ""),
		PacksDir:         envOr("SOE_PACKS_DIR", "./catalog/packs"),
		ProfilesDir:      envOr("SOE_PROFILES_DIR", "./catalog/profiles"),
		JWTSigningKeyEnv: envOr("SOE_JWT_SIGNING_KEY_ENV", "SOE_JWT_SIGNING_KEY"),
		RateLimitRPS:     envFloat("SOE_RATE_LIMIT_RPS", 20),
		RateLimitBurst:   envInt("SOE_RATE_LIMIT_BURST", 40),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
