package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"coin-chat/internal/integrations/paramstore"
	"coin-chat/internal/ratelimit"
)

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendDynamoDB = "dynamodb"
)

type config struct {
	paramPrefix     string
	upstreamAPIKey  string
	upstreamBaseURL string
	chatModel       string
	rateLimitMax    int
	rateLimitWindow time.Duration
	backend         string
	redisAddr       string
	rateLimitTable  string
	paramCacheTTL   time.Duration
	localAddr       string
	logLevel        slog.Level
}

// loadConfig reads the environment. Missing required values exit the process.
func loadConfig() config {
	cfg := config{
		upstreamAPIKey:  strings.TrimSpace(os.Getenv("UPSTREAM_API_KEY")),
		upstreamBaseURL: envString("UPSTREAM_BASE_URL", "https://api.openai.com/v1"),
		chatModel:       envString("CHAT_MODEL", "gpt-4o-mini"),
		rateLimitMax:    envInt("RATE_LIMIT_MAX", ratelimit.DefaultLimit),
		rateLimitWindow: envDuration("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow),
		backend:         strings.ToLower(envString("RATE_LIMIT_BACKEND", backendMemory)),
		redisAddr:       envString("REDIS_ADDR", "localhost:6379"),
		paramCacheTTL:   envDuration("PARAM_CACHE_TTL", paramstore.DefaultCacheTTL),
		localAddr:       strings.TrimSpace(os.Getenv("LOCAL_ADDR")),
		logLevel:        envLevel("LOG_LEVEL", slog.LevelInfo),
	}
	if cfg.upstreamAPIKey == "" {
		cfg.paramPrefix = mustEnv("PARAM_PREFIX")
	}
	switch cfg.backend {
	case backendMemory, backendRedis:
	case backendDynamoDB:
		cfg.rateLimitTable = mustEnv("RATE_LIMIT_TABLE")
	default:
		slog.Error("unknown rate limit backend", "backend", cfg.backend)
		os.Exit(1)
	}
	return cfg
}

// usesAWS reports whether any configured component talks to AWS.
func (c config) usesAWS() bool {
	return c.upstreamAPIKey == "" || c.backend == backendDynamoDB
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
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

// envDuration accepts Go duration strings or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func envLevel(key string, def slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return lvl
}
