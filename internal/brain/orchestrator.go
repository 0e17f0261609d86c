package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/s0_data/collector"
	"github.com/wonny/sp500scope/backend/internal/sector"
	"github.com/wonny/sp500scope/backend/internal/selection"
	"github.com/wonny/sp500scope/backend/pkg/logger"
	"github.com/wonny/sp500scope/backend/pkg/metrics"
)

// Collector brings the snapshot up to date for a universe
type Collector interface {
	Collect(ctx context.Context, universe []contracts.SymbolMeta, force bool, progress collector.ProgressFunc) (*collector.Result, error)
}

// Store is the snapshot store plus its freshness check and cycle marker
type Store interface {
	contracts.SnapshotStore
	LatestUpdate() (string, error)
	BeginCycle(date string) error
	CompleteCycle(date string) error
	CompletedCycle() (string, error)
}

// Coordinator runs refresh cycles one at a time:
// universe -> collection -> sector medians -> scoring -> save
type Coordinator struct {
	universe   contracts.UniverseProvider
	collector  Collector
	aggregator *sector.Aggregator
	engine     *selection.Engine
	store      Store
	metrics    *metrics.Recorder

	state  *stateMachine
	logger *logger.Logger
	now    func() time.Time
}

// RunResult summarizes one finished cycle
type RunResult struct {
	Status     contracts.StartStatus
	StartedAt  time.Time
	Duration   time.Duration
	Universe   int
	Records    int
	Collection *collector.Result
	Decisions  map[string]int
}

// NewCoordinator creates a new coordinator. rec may be nil.
func NewCoordinator(
	universe contracts.UniverseProvider,
	coll Collector,
	aggregator *sector.Aggregator,
	engine *selection.Engine,
	store Store,
	rec *metrics.Recorder,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		universe:   universe,
		collector:  coll,
		aggregator: aggregator,
		engine:     engine,
		store:      store,
		metrics:    rec,
		state:      newStateMachine(),
		logger:     log.WithField("module", "brain"),
		now:        time.Now,
	}
}

// WithClock replaces the coordinator's clock
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Status returns the current refresh state without blocking on a running cycle
func (c *Coordinator) Status() contracts.RefreshState {
	return c.state.snapshot()
}

// OnStateChange registers fn to receive a copy of every state transition.
// fn runs on the refreshing goroutine and must not block.
func (c *Coordinator) OnStateChange(fn func(contracts.RefreshState)) {
	c.state.subscribe(fn)
}

// Scorer returns a collector.ScoreFunc that computes sector medians over the
// records and scores them in place
func Scorer(aggregator *sector.Aggregator, engine *selection.Engine) collector.ScoreFunc {
	return func(records []contracts.MetricRecord) {
		engine.ScoreAll(records, aggregator.Medians(records))
	}
}

// Start triggers a refresh in the background.
// It returns ErrAlreadyRunning when a cycle is active, and StatusAlreadyCurrent
// without starting anything when force is false and a cycle already completed
// today with the snapshot dated today.
func (c *Coordinator) Start(ctx context.Context, force bool) (contracts.StartStatus, error) {
	status, ok := c.begin(force)
	if !ok {
		if status == contracts.StatusAlreadyRunning {
			return status, contracts.ErrAlreadyRunning
		}
		return status, nil
	}

	// the cycle outlives the triggering request
	runCtx := context.WithoutCancel(ctx)
	go func() {
		_, _ = c.execute(runCtx, force)
	}()

	return status, nil
}

// Run is Start without the goroutine: it returns once the cycle ends
func (c *Coordinator) Run(ctx context.Context, force bool) (*RunResult, error) {
	status, ok := c.begin(force)
	if !ok {
		if status == contracts.StatusAlreadyRunning {
			return nil, contracts.ErrAlreadyRunning
		}
		return &RunResult{Status: status}, nil
	}
	return c.execute(ctx, force)
}

// Rescore re-runs medians and scoring over the persisted snapshot without fetching
func (c *Coordinator) Rescore(ctx context.Context) (map[string]int, error) {
	if _, ok := c.state.tryBegin(c.now(), "rescoring snapshot", nil); !ok {
		return nil, contracts.ErrAlreadyRunning
	}

	var err error
	defer func() { c.state.finish(c.now(), err, "rescore completed") }()

	c.state.setPhase(contracts.PhaseFetchingFundamentals, "rescoring snapshot")

	var records []contracts.MetricRecord
	records, err = c.store.Load()
	if err != nil {
		err = fmt.Errorf("load snapshot: %w", err)
		return nil, err
	}

	counts, serr := c.scoreAndSave(records)
	if serr != nil {
		err = serr
		return nil, err
	}
	return counts, nil
}

func (c *Coordinator) begin(force bool) (contracts.StartStatus, bool) {
	now := c.now()
	today := contracts.DateOf(now)

	return c.state.tryBegin(now, "resolving universe", func() (contracts.StartStatus, bool) {
		if force {
			return "", true
		}
		latest, err := c.store.LatestUpdate()
		if err != nil {
			// an unreadable snapshot is never current
			return "", true
		}
		// checkpoints date the snapshot before the cycle ends
		completed, err := c.store.CompletedCycle()
		if err != nil {
			return "", true
		}
		if latest == today && completed == today {
			return contracts.StatusAlreadyCurrent, false
		}
		return "", true
	})
}

// execute runs one cycle; the caller has already won the check-and-set
func (c *Coordinator) execute(ctx context.Context, force bool) (result *RunResult, err error) {
	startTime := c.now()
	result = &RunResult{Status: contracts.StatusStarted, StartedAt: startTime}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}

		outcome := "done"
		if err != nil {
			outcome = "failed"
			c.logger.WithError(err).Error("Refresh failed")
		}
		c.metrics.RecordRefresh(outcome, c.now().Sub(startTime))
		c.state.finish(c.now(), err, fmt.Sprintf("refreshed %d records", result.Records))
	}()

	c.logger.WithFields(map[string]interface{}{
		"force": force,
		"date":  contracts.DateOf(startTime),
	}).Info("Starting refresh")

	// universe
	c.state.setPhase(contracts.PhaseResolvingUniverse, "resolving universe")
	universe, err := c.universe.Resolve(ctx)
	if err != nil {
		// the persisted snapshot is left as it was
		return result, fmt.Errorf("resolve universe: %w", err)
	}
	result.Universe = len(universe)

	today := contracts.DateOf(startTime)
	if err := c.store.BeginCycle(today); err != nil {
		return result, fmt.Errorf("mark cycle start: %w", err)
	}

	// collection
	c.state.setPhase(contracts.PhaseFetchingPrices, fmt.Sprintf("fetching %d symbols", len(universe)))
	collected, err := c.collector.Collect(ctx, universe, force, c.state.setProgress)
	if err != nil {
		return result, fmt.Errorf("collect: %w", err)
	}
	result.Collection = collected

	// medians, scoring, save
	c.state.setPhase(contracts.PhaseFetchingFundamentals, "scoring snapshot")
	counts, err := c.scoreAndSave(collected.Records)
	if err != nil {
		return result, err
	}

	if err := c.store.CompleteCycle(today); err != nil {
		// the next non-forced start reruns the cycle, reusing today's records
		c.logger.WithError(err).Warn("Failed to mark cycle complete")
	}

	result.Records = len(collected.Records)
	result.Decisions = counts
	result.Duration = c.now().Sub(startTime)

	c.logger.WithFields(map[string]interface{}{
		"universe":        result.Universe,
		"records":         result.Records,
		"fetched":         collected.Fetched,
		"reused":          collected.Reused,
		"cached_fallback": collected.CachedFallback,
		"dropped":         len(collected.Dropped),
		"duration":        result.Duration.Seconds(),
	}).Info("Refresh completed")

	return result, nil
}

func (c *Coordinator) scoreAndSave(records []contracts.MetricRecord) (map[string]int, error) {
	medians := c.aggregator.Medians(records)
	counts := c.engine.ScoreAll(records, medians)

	if err := c.store.Save(records); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	c.metrics.SetDecisions(counts)
	return counts, nil
}
