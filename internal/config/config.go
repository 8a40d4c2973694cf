package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP API
	HTTPHost    string
	HTTPPort    int
	CORSOrigins []string

	// Market store
	MarketStoreDSN      string // sqlite file path or postgres:// URL
	StorePoolSize       int
	StoreAcquireTimeout time.Duration
	StoreReadRPS        float64

	// Index cache
	CacheTTL          time.Duration
	CacheServeStale   bool
	CacheBuildTimeout time.Duration
	WarmSchedule      string // cron spec, empty disables warming
	Sports            string // comma-separated sport keys

	// Matching
	MatchWindow           time.Duration
	PriceTolerance        float64
	ConfidenceWeightsPath string
	AliasTablePath        string

	// Invalidation
	RedisURL            string
	InvalidationChannel string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPHost:    envStr("HTTP_HOST", "0.0.0.0"),
		HTTPPort:    envInt("HTTP_PORT", 8080),
		CORSOrigins: envList("CORS_ORIGINS", "*"),

		MarketStoreDSN:      envStr("MARKET_STORE_DSN", "data/markets.db"),
		StorePoolSize:       envInt("STORE_POOL_SIZE", 4),
		StoreAcquireTimeout: time.Duration(envInt("STORE_ACQUIRE_TIMEOUT_MS", 2000)) * time.Millisecond,
		StoreReadRPS:        envFloat("STORE_READ_RPS", 5),

		CacheTTL:          time.Duration(envInt("CACHE_TTL_SEC", 300)) * time.Second,
		CacheServeStale:   envBool("CACHE_SERVE_STALE", true),
		CacheBuildTimeout: time.Duration(envInt("CACHE_BUILD_TIMEOUT_SEC", 30)) * time.Second,
		WarmSchedule:      envStr("WARM_SCHEDULE", "@every 4m"),
		Sports:            envStr("SPORTS", "nfl,ncaaf,nba"),

		// Game markets close within hours of kick-off. A multi-day window
		// lets next week's rematch of the same fixture through.
		MatchWindow:           time.Duration(envInt("MATCH_WINDOW_HOURS", 24)) * time.Hour,
		PriceTolerance:        envFloat("PRICE_TOLERANCE", 0.02),
		ConfidenceWeightsPath: envStr("CONFIDENCE_WEIGHTS_PATH", ""),
		AliasTablePath:        envStr("ALIAS_TABLE_PATH", ""),

		RedisURL:            envStr("REDIS_URL", ""),
		InvalidationChannel: envStr("INVALIDATION_CHANNEL", "matcher:invalidate"),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key, fallback string) []string {
	var out []string
	for _, p := range strings.Split(envStr(key, fallback), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
