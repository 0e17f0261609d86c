package brain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/s0_data/collector"
	"github.com/wonny/sp500scope/backend/internal/s0_data/snapshot"
	"github.com/wonny/sp500scope/backend/internal/sector"
	"github.com/wonny/sp500scope/backend/internal/selection"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

var testNow = time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)

type fakeUniverse struct {
	symbols []contracts.SymbolMeta
	err     error
}

func (u *fakeUniverse) Resolve(ctx context.Context) ([]contracts.SymbolMeta, error) {
	return u.symbols, u.err
}

// fakeFetcher returns a healthy uptrend record; gate, when set, blocks every price fetch
type fakeFetcher struct {
	calls int32
	gate  chan struct{}
}

func (f *fakeFetcher) FetchPrices(ctx context.Context, meta contracts.SymbolMeta) (*contracts.MetricRecord, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	return &contracts.MetricRecord{
		Symbol:         meta.Symbol,
		Name:           meta.Name,
		Sector:         meta.Sector,
		Price:          50,
		MA50:           48,
		MA200:          contracts.Float(40),
		TrendStrength:  contracts.Float(20),
		Return1D:       contracts.Float(1),
		Return5D:       contracts.Float(2),
		Return1M:       contracts.Float(5),
		Return6M:       contracts.Float(10),
		Volume:         contracts.Int64(2000000),
		VolumeChange1D: contracts.Float(60),
		VolumeChange5D: contracts.Float(30),
	}, nil
}

func (f *fakeFetcher) FetchFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	return &contracts.Fundamentals{MarketCap: contracts.Float(50e9)}, nil
}

type fixture struct {
	coordinator *Coordinator
	store       *snapshot.Store
	fetcher     *fakeFetcher
	universe    *fakeUniverse
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := snapshot.NewStore(filepath.Join(t.TempDir(), "sp500_data.json"), logger.Nop())
	fetcher := &fakeFetcher{}
	universe := &fakeUniverse{symbols: []contracts.SymbolMeta{
		{Symbol: "MSFT", Name: "Microsoft", Sector: "Information Technology"},
		{Symbol: "AAPL", Name: "Apple", Sector: "Information Technology"},
		{Symbol: "XOM", Name: "Exxon Mobil", Sector: "Energy"},
	}}

	c := newCoordinator(store, fetcher, universe, collector.Config{BatchSize: 10, Workers: 2})
	return &fixture{coordinator: c, store: store, fetcher: fetcher, universe: universe}
}

// newCoordinator wires a real collector, aggregator and engine around store on the test clock
func newCoordinator(store *snapshot.Store, fetcher *fakeFetcher, universe *fakeUniverse, cfg collector.Config) *Coordinator {
	log := logger.Nop()
	clock := func() time.Time { return testNow }

	aggregator := sector.NewAggregator(log)
	engine := selection.NewEngine(selection.DefaultScreenerConfig(), log).WithClock(clock)

	cfg.Retry = collector.DefaultRetryPolicy(1, 0)
	cfg.Now = clock
	cfg.Score = Scorer(aggregator, engine)
	coll := collector.NewCollector(fetcher, store, nil, cfg, log)

	return NewCoordinator(universe, coll, aggregator, engine, store, nil, log).WithClock(clock)
}

func TestRun_EndToEnd(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.coordinator.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusStarted, result.Status)
	assert.Equal(t, 3, result.Universe)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, 3, result.Decisions[string(contracts.DecisionStrongBuy)])

	records, err := fx.store.Load()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "AAPL", records[0].Symbol)
	assert.Equal(t, contracts.DecisionStrongBuy, records[0].Decision)
	assert.Equal(t, "2026-10-15", records[0].LastUpdated)

	status := fx.coordinator.Status()
	assert.False(t, status.Running)
	assert.Equal(t, contracts.PhaseDone, status.Phase)
	assert.NotNil(t, status.FinishedAt)
}

func TestRun_AlreadyCurrentIsNoOp(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.coordinator.Run(context.Background(), false)
	require.NoError(t, err)
	calls := atomic.LoadInt32(&fx.fetcher.calls)

	result, err := fx.coordinator.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusAlreadyCurrent, result.Status)
	assert.Equal(t, calls, atomic.LoadInt32(&fx.fetcher.calls))

	status, err := fx.coordinator.Start(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusAlreadyCurrent, status)

	// force refetches everything
	_, err = fx.coordinator.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, calls*2, atomic.LoadInt32(&fx.fetcher.calls))
}

func TestStart_AlreadyRunning(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.gate = make(chan struct{})

	status, err := fx.coordinator.Start(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusStarted, status)

	status, err = fx.coordinator.Start(context.Background(), true)
	assert.ErrorIs(t, err, contracts.ErrAlreadyRunning)
	assert.Equal(t, contracts.StatusAlreadyRunning, status)

	_, err = fx.coordinator.Rescore(context.Background())
	assert.ErrorIs(t, err, contracts.ErrAlreadyRunning)

	// status stays readable while fetches are blocked
	assert.True(t, fx.coordinator.Status().Running)

	close(fx.fetcher.gate)
	require.Eventually(t, func() bool {
		return !fx.coordinator.Status().Running
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, contracts.PhaseDone, fx.coordinator.Status().Phase)
}

func TestStart_ConcurrentCallersStartOnce(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.gate = make(chan struct{})

	var started, rejected int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := fx.coordinator.Start(context.Background(), true)
			switch {
			case err == nil && status == contracts.StatusStarted:
				atomic.AddInt32(&started, 1)
			case errors.Is(err, contracts.ErrAlreadyRunning):
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started)
	assert.Equal(t, int32(19), rejected)

	close(fx.fetcher.gate)
	require.Eventually(t, func() bool {
		return !fx.coordinator.Status().Running
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRun_UniverseFailureLeavesSnapshotUnchanged(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.Save([]contracts.MetricRecord{
		{Symbol: "OLD", Price: 12, LastUpdated: "2026-10-14"},
	}))
	before, err := os.ReadFile(fx.store.Path())
	require.NoError(t, err)

	fx.universe.err = contracts.ErrSourceUnavailable

	_, err = fx.coordinator.Run(context.Background(), false)
	assert.ErrorIs(t, err, contracts.ErrSourceUnavailable)

	after, err := os.ReadFile(fx.store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	status := fx.coordinator.Status()
	assert.False(t, status.Running)
	assert.Equal(t, contracts.PhaseFailed, status.Phase)
	assert.Contains(t, status.Message, "source unavailable")
	assert.Equal(t, int32(0), atomic.LoadInt32(&fx.fetcher.calls))
}

func TestRescore(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.Save([]contracts.MetricRecord{
		{Symbol: "TINY", Sector: "Energy", Price: 5, LastUpdated: "2026-10-14"},
	}))

	counts, err := fx.coordinator.Rescore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{string(contracts.DecisionRejected): 1}, counts)

	rec, ok, err := fx.store.Get("TINY")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, contracts.DecisionRejected, rec.Decision)
	assert.Equal(t, selection.GateUniversalFilter, rec.DecisionGate)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fx.fetcher.calls))
}

func TestOnStateChange(t *testing.T) {
	fx := newFixture(t)

	var mu sync.Mutex
	var phases []contracts.Phase
	fx.coordinator.OnStateChange(func(s contracts.RefreshState) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	})

	_, err := fx.coordinator.Run(context.Background(), false)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, phases)
	assert.Equal(t, contracts.PhaseResolvingUniverse, phases[0])
	assert.Contains(t, phases, contracts.PhaseFetchingPrices)
	assert.Equal(t, contracts.PhaseDone, phases[len(phases)-1])
}

func TestRun_ResumesAfterInterruptedCheckpoint(t *testing.T) {
	fx := newFixture(t)

	// yesterday's completed cycle
	prior := make([]contracts.MetricRecord, 0, len(fx.universe.symbols))
	for _, meta := range fx.universe.symbols {
		prior = append(prior, contracts.MetricRecord{
			Symbol:      meta.Symbol,
			Name:        meta.Name,
			Sector:      meta.Sector,
			Price:       30,
			MA50:        35,
			Score:       40,
			Decision:    contracts.DecisionHold,
			LastUpdated: "2026-10-14",
		})
	}
	require.NoError(t, fx.store.Save(prior))
	require.NoError(t, fx.store.BeginCycle("2026-10-14"))
	require.NoError(t, fx.store.CompleteCycle("2026-10-14"))

	// first run is killed in the pause after the first checkpoint (MSFT, AAPL)
	killed := errors.New("killed")
	interrupted := newCoordinator(fx.store, fx.fetcher, fx.universe, collector.Config{
		BatchSize:  2,
		Workers:    1,
		BatchPause: time.Second,
		Sleep:      func(ctx context.Context, d time.Duration) error { return killed },
	})
	_, err := interrupted.Run(context.Background(), false)
	require.ErrorIs(t, err, killed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fx.fetcher.calls))

	reopened := snapshot.NewStore(fx.store.Path(), logger.Nop())
	checkpointed, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, checkpointed, 3)
	for _, rec := range checkpointed {
		assert.NotEmpty(t, rec.Decision, "%s saved without a decision", rec.Symbol)
	}
	assert.Equal(t, "2026-10-15", checkpointed[0].LastUpdated) // AAPL
	assert.Equal(t, contracts.DecisionStrongBuy, checkpointed[0].Decision)
	assert.Equal(t, "2026-10-15", checkpointed[1].LastUpdated) // MSFT
	assert.Equal(t, "2026-10-14", checkpointed[2].LastUpdated) // XOM

	latest, err := reopened.LatestUpdate()
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", latest)
	completed, err := reopened.CompletedCycle()
	require.NoError(t, err)
	assert.Empty(t, completed)

	// a restarted process resumes without force and fetches only the stale symbol
	resumed := newCoordinator(reopened, fx.fetcher, fx.universe, collector.Config{BatchSize: 10, Workers: 2})
	result, err := resumed.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusStarted, result.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&fx.fetcher.calls))
	assert.Equal(t, 2, result.Collection.Reused)
	assert.Equal(t, 1, result.Collection.Fetched)

	records, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, "2026-10-15", rec.LastUpdated, rec.Symbol)
		assert.Equal(t, contracts.DecisionStrongBuy, rec.Decision, rec.Symbol)
	}

	completed, err = reopened.CompletedCycle()
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", completed)

	again, err := resumed.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusAlreadyCurrent, again.Status)
}
