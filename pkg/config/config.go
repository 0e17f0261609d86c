package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Redis
	Redis RedisConfig

	// Upstream sources
	Universe UniverseConfig
	Yahoo    YahooConfig

	// Pipeline
	Snapshot  SnapshotConfig
	Fetch     FetchConfig
	Scoring   ScoringConfig
	Scheduler SchedulerConfig

	// Optional YAML overlay for the pipeline tunables
	PipelineConfigPath string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// UniverseConfig points at the constituents listing page
type UniverseConfig struct {
	URL       string
	UserAgent string
}

// YahooConfig holds the price and fundamentals endpoints
type YahooConfig struct {
	ChartURL     string
	QuoteURL     string
	SummaryURL   string
	UserAgent    string
	Timeout      time.Duration // per-attempt
	HistoryRange string
}

// SnapshotConfig holds the flat-file snapshot location
type SnapshotConfig struct {
	Path string
}

// FetchConfig holds the fetch orchestrator tunables
type FetchConfig struct {
	BatchSize      int
	Workers        int
	MaxAttempts    int
	BackoffBase    time.Duration
	BatchPause     time.Duration
	RatePerSecond  float64
	FundamentalTTL time.Duration
}

// ScoringConfig holds the earnings-freeze window, in days around today
type ScoringConfig struct {
	FreezeDaysBefore int
	FreezeDaysAfter  int
}

// SchedulerConfig holds the unattended refresh schedule
type SchedulerConfig struct {
	RefreshCron     string
	TradingDaysOnly bool
	MaxRetries      int
	RetryDelay      time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	loadEnvFile()

	userAgent := getEnv("HTTP_USER_AGENT", "Mozilla/5.0")

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Universe: UniverseConfig{
			URL:       getEnv("UNIVERSE_URL", "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"),
			UserAgent: userAgent,
		},

		Yahoo: YahooConfig{
			ChartURL:     getEnv("YAHOO_CHART_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
			QuoteURL:     getEnv("YAHOO_QUOTE_URL", "https://query1.finance.yahoo.com/v7/finance/quote"),
			SummaryURL:   getEnv("YAHOO_SUMMARY_URL", "https://query1.finance.yahoo.com/v10/finance/quoteSummary"),
			UserAgent:    userAgent,
			Timeout:      getEnvAsDuration("HTTP_TIMEOUT", "15s"),
			HistoryRange: getEnv("HISTORY_RANGE", "1y"),
		},

		Snapshot: SnapshotConfig{
			Path: getEnv("SNAPSHOT_PATH", "data/sp500_data.json"),
		},

		Fetch: FetchConfig{
			BatchSize:      getEnvAsInt("FETCH_BATCH_SIZE", 10),
			Workers:        getEnvAsInt("FETCH_WORKERS", 2),
			MaxAttempts:    getEnvAsInt("FETCH_MAX_ATTEMPTS", 3),
			BackoffBase:    getEnvAsDuration("FETCH_BACKOFF_BASE", "1s"),
			BatchPause:     getEnvAsDuration("FETCH_BATCH_PAUSE", "1s"),
			RatePerSecond:  getEnvAsFloat("FETCH_RATE_PER_SEC", 4),
			FundamentalTTL: getEnvAsDuration("FUNDAMENTALS_CACHE_TTL", "6h"),
		},

		Scoring: ScoringConfig{
			FreezeDaysBefore: getEnvAsInt("EARNINGS_FREEZE_BEFORE", 1),
			FreezeDaysAfter:  getEnvAsInt("EARNINGS_FREEZE_AFTER", 7),
		},

		Scheduler: SchedulerConfig{
			RefreshCron:     getEnv("REFRESH_CRON", "0 0 */6 * * *"),
			TradingDaysOnly: getEnvAsBool("SCHEDULER_TRADING_DAYS_ONLY", true),
			MaxRetries:      getEnvAsInt("SCHEDULER_MAX_RETRIES", 1),
			RetryDelay:      getEnvAsDuration("SCHEDULER_RETRY_DELAY", "5m"),
		},

		PipelineConfigPath: getEnv("PIPELINE_CONFIG", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that would make the pipeline misbehave.
// It is exported so a YAML overlay can be re-checked after it is applied.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Snapshot.Path == "" {
		return fmt.Errorf("SNAPSHOT_PATH is required")
	}

	f := c.Fetch
	if f.Workers < 1 {
		return fmt.Errorf("FETCH_WORKERS must be >= 1, got %d", f.Workers)
	}
	if f.BatchSize <= f.Workers {
		return fmt.Errorf("FETCH_BATCH_SIZE (%d) must be greater than FETCH_WORKERS (%d)", f.BatchSize, f.Workers)
	}
	if f.MaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be >= 1, got %d", f.MaxAttempts)
	}
	if f.BackoffBase < 0 || f.BatchPause < 0 {
		return fmt.Errorf("FETCH_BACKOFF_BASE and FETCH_BATCH_PAUSE must not be negative")
	}
	if f.RatePerSecond < 0 {
		return fmt.Errorf("FETCH_RATE_PER_SEC must not be negative")
	}

	if c.Scoring.FreezeDaysBefore < 0 || c.Scoring.FreezeDaysAfter < 0 {
		return fmt.Errorf("earnings freeze window bounds must not be negative")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
