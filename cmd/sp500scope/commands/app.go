package commands

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/sp500scope/backend/internal/brain"
	"github.com/wonny/sp500scope/backend/internal/external/wikipedia"
	"github.com/wonny/sp500scope/backend/internal/external/yahoo"
	"github.com/wonny/sp500scope/backend/internal/s0_data/collector"
	"github.com/wonny/sp500scope/backend/internal/s0_data/snapshot"
	"github.com/wonny/sp500scope/backend/internal/s1_universe"
	"github.com/wonny/sp500scope/backend/internal/s2_signals"
	"github.com/wonny/sp500scope/backend/internal/scheduler"
	"github.com/wonny/sp500scope/backend/internal/scheduler/jobs"
	"github.com/wonny/sp500scope/backend/internal/sector"
	"github.com/wonny/sp500scope/backend/internal/selection"
	"github.com/wonny/sp500scope/backend/internal/strategyconfig"
	"github.com/wonny/sp500scope/backend/pkg/config"
	"github.com/wonny/sp500scope/backend/pkg/httputil"
	"github.com/wonny/sp500scope/backend/pkg/logger"
	"github.com/wonny/sp500scope/backend/pkg/metrics"
	"github.com/wonny/sp500scope/backend/pkg/redis"
)

const defaultTimezone = "America/New_York"

// app holds the wired pipeline shared by every command
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	redis       *redis.Client
	metrics     *metrics.Recorder // nil when disabled
	store       *snapshot.Store
	builder     *s2_signals.Builder
	aggregator  *sector.Aggregator
	engine      *selection.Engine
	coordinator *brain.Coordinator
	timezone    string
	now         func() time.Time // market-local clock
}

// newApp loads configuration and builds the pipeline.
// Order: config, overlay, logger, redis, upstream clients, pipeline stages.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	screener := selection.DefaultScreenerConfig()
	screener.FreezeDaysBefore = cfg.Scoring.FreezeDaysBefore
	screener.FreezeDaysAfter = cfg.Scoring.FreezeDaysAfter

	var overlay *strategyconfig.Config
	if cfg.PipelineConfigPath != "" {
		overlay, _, err = strategyconfig.Load(cfg.PipelineConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load pipeline config %s: %w", cfg.PipelineConfigPath, err)
		}
		if err := strategyconfig.Apply(overlay, cfg, &screener); err != nil {
			return nil, fmt.Errorf("apply pipeline config: %w", err)
		}
	}

	log := logger.New(cfg)

	timezone := defaultTimezone
	if overlay != nil {
		logOverlay(log, cfg.PipelineConfigPath, overlay)
		if overlay.Meta.Timezone != "" {
			timezone = overlay.Meta.Timezone
		}
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", timezone, err)
	}
	now := func() time.Time { return time.Now().In(loc) }

	rdb, err := redis.New(cfg)
	if err != nil {
		// cache and shared limiter are optional
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rdb = redis.Disabled()
	}

	var cache *redis.Cache
	if rdb.Enabled() {
		cache = redis.NewCache(rdb, "sp500scope")
	}

	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.New()
	}

	// Retries belong to the collector; the HTTP layer makes exactly one attempt.
	listingHTTP := httputil.New(cfg, log).
		DisableRetry().
		WithHeader("User-Agent", cfg.Universe.UserAgent)
	yahooHTTP := httputil.NewWithTimeout(cfg, log, cfg.Yahoo.Timeout).
		DisableRetry().
		WithHeader("User-Agent", cfg.Yahoo.UserAgent)
	if rdb.Enabled() && cfg.Fetch.RatePerSecond > 0 {
		yahooHTTP = yahooHTTP.WithRateLimiter(redis.NewRateLimiter(rdb, "sp500scope"), redis.RateLimitConfig{
			Key:    "yahoo",
			Limit:  int(math.Ceil(cfg.Fetch.RatePerSecond)),
			Window: time.Second,
		})
	}

	universe := s1_universe.NewProvider(
		wikipedia.NewClient(listingHTTP, cfg.Universe.URL, log),
		cache,
		log,
	).WithClock(now)

	yahooClient := yahoo.NewClient(yahooHTTP, cfg.Yahoo, log)
	builder := s2_signals.NewBuilder(yahooClient, yahooClient, cache, cfg.Fetch.FundamentalTTL, log).WithClock(now)

	store := snapshot.NewStore(cfg.Snapshot.Path, log)

	aggregator := sector.NewAggregator(log)
	engine := selection.NewEngine(screener, log).WithClock(now)

	coll := collector.NewCollector(builder, store, rec, collector.Config{
		BatchSize:      cfg.Fetch.BatchSize,
		Workers:        cfg.Fetch.Workers,
		BatchPause:     cfg.Fetch.BatchPause,
		RatePerSecond:  cfg.Fetch.RatePerSecond,
		AttemptTimeout: cfg.Yahoo.Timeout,
		Retry:          collector.DefaultRetryPolicy(cfg.Fetch.MaxAttempts, cfg.Fetch.BackoffBase),
		Now:            now,
		Score:          brain.Scorer(aggregator, engine),
	}, log)

	coordinator := brain.NewCoordinator(universe, coll, aggregator, engine, store, rec, log).WithClock(now)

	return &app{
		cfg:         cfg,
		log:         log,
		redis:       rdb,
		metrics:     rec,
		store:       store,
		builder:     builder,
		aggregator:  aggregator,
		engine:      engine,
		coordinator: coordinator,
		timezone:    timezone,
		now:         now,
	}, nil
}

// Close releases external connections
func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
}

// newScheduler registers the refresh job on a fresh scheduler
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(scheduler.Options{
		MaxRetries: a.cfg.Scheduler.MaxRetries,
		RetryDelay: a.cfg.Scheduler.RetryDelay,
	}, a.log)

	job := jobs.NewRefreshJob(
		a.coordinator,
		cronInZone(a.cfg.Scheduler.RefreshCron, a.timezone),
		a.cfg.Scheduler.TradingDaysOnly,
		jobs.NewNYSECalendar(),
		a.log,
	)
	if err := sched.AddJob(job); err != nil {
		return nil, fmt.Errorf("add refresh job: %w", err)
	}
	return sched, nil
}

func logOverlay(log *logger.Logger, path string, overlay *strategyconfig.Config) {
	hash, err := strategyconfig.Hash(overlay)
	if err != nil {
		log.WithError(err).Warn("Failed to hash pipeline config")
	}
	log.WithFields(map[string]interface{}{
		"path":        path,
		"strategy_id": overlay.Meta.StrategyID,
		"version":     overlay.Meta.Version,
		"hash":        hash,
	}).Info("Pipeline config applied")

	for _, w := range strategyconfig.Warn(overlay) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
}

// cronInZone pins a schedule to tz unless it already names one
func cronInZone(spec, tz string) string {
	if tz == "" || strings.HasPrefix(spec, "CRON_TZ=") || strings.HasPrefix(spec, "TZ=") {
		return spec
	}
	return "CRON_TZ=" + tz + " " + spec
}
