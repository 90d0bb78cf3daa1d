package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Fetch    FetchConfig
	Scrape   ScrapeConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type FetchConfig struct {
	RenderAPIBase string
	RenderAPIKey  string
	CountryCode   string
}

type ScrapeConfig struct {
	// Postings whose last scrape is older than this are deactivated.
	RetentionDays int
	// Pause between sources when running "all".
	SourcePaceMS int
	// Cron interval for the scheduled full run; 0 disables the scheduler.
	IntervalHours int
	RunOnStart    bool
	RecentRuns    int
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

func Load() (Config, error) {
	cfg := Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     opt("DB_HOST"),
		DBPort:     opt("DB_PORT"),
		DBName:     opt("DB_NAME"),
		DBUser:     opt("DB_USER"),
		DBPassword: opt("DB_PASSWORD"),
		DBSSLMode:  opt("DB_SSL_MODE"),

		ConnectTimeout:        optDurationSeconds("DB_CONNECT_TIMEOUT_SECONDS", 0),
		PoolMaxConns:          int32(optInt("DB_POOL_MAX_CONNS", 0)),
		PoolMinConns:          int32(optInt("DB_POOL_MIN_CONNS", 0)),
		PoolMaxConnLifetime:   optDurationSeconds("DB_POOL_MAX_CONN_LIFETIME_SECONDS", 0),
		PoolMaxConnIdleTime:   optDurationSeconds("DB_POOL_MAX_CONN_IDLE_SECONDS", 0),
		PoolHealthCheckPeriod: optDurationSeconds("DB_POOL_HEALTH_CHECK_SECONDS", 0),
	}

	cfg.Redis = RedisConfig{
		Host:     opt("REDIS_HOST"),
		Port:     opt("REDIS_PORT"),
		Password: opt("REDIS_PASSWORD"),
	}

	cfg.Fetch = FetchConfig{
		RenderAPIBase: opt("RENDER_API_BASE"),
		RenderAPIKey:  opt("RENDER_API_KEY"),
		CountryCode:   pickDefault(opt("RENDER_COUNTRY_CODE"), "ca"),
	}

	cfg.Scrape = ScrapeConfig{
		RetentionDays: optInt("RETENTION_DAYS", 30),
		SourcePaceMS:  optInt("SOURCE_PACE_MS", 1000),
		IntervalHours: optInt("SCRAPE_INTERVAL_HOURS", 0),
		RunOnStart:    optBool("SCRAPE_RUN_ON_START", false),
		RecentRuns:    optInt("RECENT_RUN_LIMIT", 20),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	return cfg, nil
}

func optInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func optBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func optDurationSeconds(key string, def time.Duration) time.Duration {
	v := optInt(key, 0)
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}

func pickDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
