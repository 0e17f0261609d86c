package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/s0_data/snapshot"
	"github.com/wonny/sp500scope/backend/pkg/logger"
	"github.com/wonny/sp500scope/backend/pkg/metrics"
)

// Fetch stages, used for logging and metrics labels
const (
	stagePrices       = "prices"
	stageFundamentals = "fundamentals"
)

// Collector is the fetch orchestrator: it decides which symbols need
// fetching, runs the fetches on a bounded worker pool in batches, and
// checkpoints the snapshot after every batch.
type Collector struct {
	fetcher contracts.MetricFetcher
	store   contracts.SnapshotStore
	limiter *rate.Limiter
	metrics *metrics.Recorder
	logger  *logger.Logger
	cfg     Config
	now     func() time.Time
}

// Config holds collector configuration
type Config struct {
	BatchSize      int           // symbols per checkpoint
	Workers        int           // concurrent fetches within a batch
	BatchPause     time.Duration // pause between batches
	RatePerSecond  float64       // token-bucket floor on attempts; 0 disables it
	AttemptTimeout time.Duration // per-attempt network timeout; 0 disables it
	Retry          RetryPolicy
	Sleep          SleepFunc // inter-batch pause; defaults to a real timer
	Now            func() time.Time
	Score          ScoreFunc // rescores the working set before each checkpoint; may be nil
}

// ScoreFunc scores records in place
type ScoreFunc func(records []contracts.MetricRecord)

// ProgressFunc receives phase changes and finished/queued counts
type ProgressFunc func(phase contracts.Phase, current, total int)

// Result summarizes one collection pass
type Result struct {
	Records        []contracts.MetricRecord // universe members only, sorted by symbol
	Reused         int
	Fetched        int
	Partial        int
	CachedFallback int
	Dropped        []string
	Batches        int
}

// NewCollector creates a new Collector instance. rec may be nil.
func NewCollector(fetcher contracts.MetricFetcher, store contracts.SnapshotStore, rec *metrics.Recorder, cfg Config, log *logger.Logger) *Collector {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Workers >= cfg.BatchSize && cfg.BatchSize > 1 {
		cfg.Workers = cfg.BatchSize - 1
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Collector{
		fetcher: fetcher,
		store:   store,
		limiter: limiter,
		metrics: rec,
		logger:  log.WithField("module", "collector"),
		cfg:     cfg,
		now:     cfg.Now,
	}
}

// symbolResult is one worker's output for one symbol and stage
type symbolResult struct {
	meta         contracts.SymbolMeta
	record       *contracts.MetricRecord
	fundamentals *contracts.Fundamentals
	attempts     int
	err          error
}

// Collect brings the snapshot up to date for universe.
// A symbol is reused without fetching when its record is already dated
// today and force is false.
func (c *Collector) Collect(ctx context.Context, universe []contracts.SymbolMeta, force bool, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(contracts.Phase, int, int) {}
	}

	existing, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	today := contracts.DateOf(c.now())
	working := snapshot.Index(existing)
	result := &Result{}

	var queue []contracts.SymbolMeta
	for _, meta := range universe {
		if rec, ok := working[meta.Symbol]; ok && !force && rec.IsCurrent(today) {
			result.Reused++
			c.metrics.RecordSymbol("reused")
			continue
		}
		queue = append(queue, meta)
	}

	batches := chunk(queue, c.cfg.BatchSize)
	result.Batches = len(batches)

	c.logger.WithFields(map[string]interface{}{
		"universe": len(universe),
		"reused":   result.Reused,
		"queued":   len(queue),
		"batches":  len(batches),
		"workers":  c.cfg.Workers,
		"force":    force,
	}).Info("Starting collection")

	done := 0
	progress(contracts.PhaseFetchingPrices, done, len(queue))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// stage 1: price history
		progress(contracts.PhaseFetchingPrices, done, len(queue))
		var priced []symbolResult
		for _, res := range c.runPool(ctx, batch, c.fetchPrices) {
			if res.err == nil {
				priced = append(priced, res)
				continue
			}
			c.handleFailure(working, res, result)
			done++
			progress(contracts.PhaseFetchingPrices, done, len(queue))
		}

		// stage 2: fundamentals for the symbols that priced
		progress(contracts.PhaseFetchingFundamentals, done, len(queue))
		pricedBySymbol := make(map[string]*contracts.MetricRecord, len(priced))
		metas := make([]contracts.SymbolMeta, 0, len(priced))
		for _, res := range priced {
			pricedBySymbol[res.meta.Symbol] = res.record
			metas = append(metas, res.meta)
		}

		for _, res := range c.runPool(ctx, metas, c.fetchFundamentals) {
			rec := pricedBySymbol[res.meta.Symbol]
			if res.err != nil {
				result.Partial++
				c.metrics.RecordSymbol("partial")
				c.logger.WithFields(map[string]interface{}{
					"symbol":   res.meta.Symbol,
					"attempts": res.attempts,
					"error":    res.err.Error(),
				}).Warn("Fundamentals unavailable, keeping record with nulls")
				rec.ApplyFundamentals(nil)
			} else {
				rec.ApplyFundamentals(res.fundamentals)
			}

			if prev, ok := working[rec.Symbol]; ok {
				rec.Score, rec.Decision, rec.DecisionGate = prev.Score, prev.Decision, prev.DecisionGate
			}
			rec.LastUpdated = today
			working[rec.Symbol] = *rec
			result.Fetched++
			c.metrics.RecordSymbol("fetched")
			done++
			progress(contracts.PhaseFetchingFundamentals, done, len(queue))
		}

		c.checkpoint(working, i+1, len(batches))

		if i < len(batches)-1 && c.cfg.BatchPause > 0 {
			if err := c.cfg.Sleep(ctx, c.cfg.BatchPause); err != nil {
				return nil, err
			}
		}
	}

	for _, meta := range universe {
		if rec, ok := working[meta.Symbol]; ok {
			result.Records = append(result.Records, rec)
		}
	}
	sort.Slice(result.Records, func(i, j int) bool { return result.Records[i].Symbol < result.Records[j].Symbol })

	c.logger.WithFields(map[string]interface{}{
		"records":         len(result.Records),
		"fetched":         result.Fetched,
		"reused":          result.Reused,
		"partial":         result.Partial,
		"cached_fallback": result.CachedFallback,
		"dropped":         len(result.Dropped),
	}).Info("Collection completed")

	return result, nil
}

// handleFailure applies the fallback rules for a symbol whose prices could not be fetched.
// Insufficient history drops the symbol; any other failure falls back to the
// cached record when there is one.
func (c *Collector) handleFailure(working map[string]contracts.MetricRecord, res symbolResult, result *Result) {
	symbol := res.meta.Symbol
	fields := map[string]interface{}{
		"symbol":   symbol,
		"attempts": res.attempts,
		"error":    res.err.Error(),
	}

	if errors.Is(res.err, contracts.ErrInsufficientHistory) {
		delete(working, symbol)
		result.Dropped = append(result.Dropped, symbol)
		c.metrics.RecordSymbol("dropped")
		c.logger.WithFields(fields).Warn("Insufficient history, dropping symbol")
		return
	}

	if _, ok := working[symbol]; ok {
		result.CachedFallback++
		c.metrics.RecordSymbol("cached_fallback")
		c.logger.WithFields(fields).Warn("Fetch failed, keeping cached record")
		return
	}

	result.Dropped = append(result.Dropped, symbol)
	c.metrics.RecordSymbol("dropped")
	c.logger.WithFields(fields).Warn("Fetch failed with no cached record, dropping symbol")
}

// checkpoint persists everything known so far: the prior snapshot overlaid
// with this cycle's results, rescored when a ScoreFunc is set so no saved
// record is left without a decision. A failed checkpoint is logged, not fatal.
func (c *Collector) checkpoint(working map[string]contracts.MetricRecord, batch, total int) {
	records := make([]contracts.MetricRecord, 0, len(working))
	for _, rec := range working {
		records = append(records, rec)
	}

	if c.cfg.Score != nil {
		c.cfg.Score(records)
		for _, rec := range records {
			working[rec.Symbol] = rec
		}
	}

	if err := c.store.Save(records); err != nil {
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"batch": batch,
		}).Error("Checkpoint failed")
		return
	}

	c.metrics.RecordCheckpoint()
	c.logger.WithFields(map[string]interface{}{
		"batch":   batch,
		"batches": total,
		"records": len(records),
	}).Info("Batch checkpoint saved")
}

// runPool fans one batch out to the worker pool and gathers results in completion order
func (c *Collector) runPool(ctx context.Context, batch []contracts.SymbolMeta, task func(context.Context, contracts.SymbolMeta) symbolResult) []symbolResult {
	if len(batch) == 0 {
		return nil
	}

	workers := c.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}

	jobCh := make(chan contracts.SymbolMeta, len(batch))
	resultCh := make(chan symbolResult, len(batch))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for meta := range jobCh {
				resultCh <- task(ctx, meta)
			}
		}()
	}

	for _, meta := range batch {
		jobCh <- meta
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]symbolResult, 0, len(batch))
	for res := range resultCh {
		results = append(results, res)
	}
	return results
}

func (c *Collector) fetchPrices(ctx context.Context, meta contracts.SymbolMeta) symbolResult {
	res := symbolResult{meta: meta}
	res.attempts, res.err = c.cfg.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		return c.attempt(ctx, stagePrices, meta.Symbol, attempt, func(ctx context.Context) error {
			rec, err := c.fetcher.FetchPrices(ctx, meta)
			if err == nil {
				res.record = rec
			}
			return err
		})
	})
	return res
}

func (c *Collector) fetchFundamentals(ctx context.Context, meta contracts.SymbolMeta) symbolResult {
	res := symbolResult{meta: meta}
	res.attempts, res.err = c.cfg.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		return c.attempt(ctx, stageFundamentals, meta.Symbol, attempt, func(ctx context.Context) error {
			f, err := c.fetcher.FetchFundamentals(ctx, meta.Symbol)
			if err == nil {
				res.fundamentals = f
			}
			return err
		})
	})
	return res
}

// attempt runs one rate-limited, time-bounded call
func (c *Collector) attempt(ctx context.Context, stage, symbol string, n int, call func(ctx context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	attemptCtx := ctx
	if c.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()
	}

	err := call(attemptCtx)

	outcome := "ok"
	switch {
	case err == nil:
	case contracts.IsRetryable(err):
		outcome = "retryable"
	default:
		outcome = "failed"
	}
	c.metrics.RecordFetchAttempt(stage, outcome)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"stage":   stage,
			"symbol":  symbol,
			"attempt": n,
			"error":   err.Error(),
		}).Debug("Fetch attempt failed")
	}
	return err
}

func chunk(items []contracts.SymbolMeta, size int) [][]contracts.SymbolMeta {
	var out [][]contracts.SymbolMeta
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
