package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	ProviderBase  string
	ProviderToken string

	RateLimitMax    int           // sliding-window request budget
	RateLimitWindow time.Duration // trailing window
	RetryMax        int
	RetryBase       time.Duration

	SyncCooldown   time.Duration // recency guard
	DebounceWindow time.Duration
	BatchDelay     time.Duration
	RateCooldown   time.Duration // pause after a 429 before retrying the batch
	SyncInterval   time.Duration // incremental sync period
	CacheTTL       time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/bookingsync?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		ProviderBase:  env("PROVIDER_BASE_URL", "https://api.beds24.com/v2"),
		ProviderToken: env("PROVIDER_TOKEN", ""),

		RateLimitMax:    atoi("RATE_LIMIT_MAX", 100),
		RateLimitWindow: time.Duration(atoi("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		RetryMax:        atoi("RETRY_MAX", 3),
		RetryBase:       time.Duration(atoi("RETRY_BASE_MS", 1000)) * time.Millisecond,

		SyncCooldown:   time.Duration(atoi("SYNC_COOLDOWN_SECONDS", 120)) * time.Second,
		DebounceWindow: time.Duration(atoi("WEBHOOK_DEBOUNCE_MS", 60000)) * time.Millisecond,
		BatchDelay:     time.Duration(atoi("BATCH_DELAY_MS", 500)) * time.Millisecond,
		RateCooldown:   time.Duration(atoi("RATE_COOLDOWN_MINUTES", 6)) * time.Minute,
		SyncInterval:   time.Duration(atoi("SYNC_INTERVAL_MINUTES", 15)) * time.Minute,
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}
	if c.ProviderToken == "" {
		log.Warn().Msg("PROVIDER_TOKEN is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
