package s2_signals

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/external/yahoo"
	"github.com/wonny/sp500scope/backend/pkg/logger"
	"github.com/wonny/sp500scope/backend/pkg/redis"
)

// HistorySource returns daily price history for one symbol
type HistorySource interface {
	FetchHistory(ctx context.Context, symbol string) (*yahoo.History, error)
}

// FundamentalsSource returns fundamentals for one symbol
type FundamentalsSource interface {
	FetchFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error)
}

// Builder turns upstream data into MetricRecords. It implements contracts.MetricFetcher.
type Builder struct {
	technical *TechnicalCalculator
	momentum  *MomentumCalculator
	volume    *VolumeCalculator

	history      HistorySource
	fundamentals FundamentalsSource
	cache        *redis.Cache
	cacheTTL     time.Duration

	logger *logger.Logger
	now    func() time.Time
}

// NewBuilder creates a new metric builder. cache may be nil.
func NewBuilder(history HistorySource, fundamentals FundamentalsSource, cache *redis.Cache, cacheTTL time.Duration, log *logger.Logger) *Builder {
	log = log.WithField("module", "s2_signals")
	return &Builder{
		technical:    NewTechnicalCalculator(log),
		momentum:     NewMomentumCalculator(log),
		volume:       NewVolumeCalculator(log),
		history:      history,
		fundamentals: fundamentals,
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock sets the clock that dates the fundamentals cache key
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// FetchPrices builds the price, return, volatility and volume state for one symbol
func (b *Builder) FetchPrices(ctx context.Context, meta contracts.SymbolMeta) (*contracts.MetricRecord, error) {
	history, err := b.history.FetchHistory(ctx, meta.Symbol)
	if err != nil {
		return nil, err
	}

	rec := &contracts.MetricRecord{
		Symbol:   meta.Symbol,
		Name:     meta.Name,
		Sector:   contracts.NormalizeSector(meta.Sector),
		Industry: meta.Industry,
	}

	if err := b.technical.Calculate(ctx, rec, history.Closes); err != nil {
		return nil, fmt.Errorf("%s: %d closes: %w", meta.Symbol, len(history.Closes), err)
	}
	b.momentum.Calculate(ctx, rec, history.Closes)
	b.volume.Calculate(ctx, rec, history.Volumes)

	return rec, nil
}

// FetchFundamentals returns fundamentals, going through the Redis cache when enabled
func (b *Builder) FetchFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	if b.cache == nil {
		return b.fundamentals.FetchFundamentals(ctx, symbol)
	}

	var f contracts.Fundamentals
	key := b.cacheKey(symbol)
	err := b.cache.GetOrSet(ctx, key, &f, b.cacheTTL, func() (interface{}, error) {
		return b.fundamentals.FetchFundamentals(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (b *Builder) cacheKey(symbol string) string {
	return redis.FundamentalsKey(symbol, contracts.DateOf(b.now()))
}

// Fetch runs both stages for one symbol without retries. A fundamentals
// failure still returns the record, with ErrPartialData.
func (b *Builder) Fetch(ctx context.Context, meta contracts.SymbolMeta) (*contracts.MetricRecord, error) {
	rec, err := b.FetchPrices(ctx, meta)
	if err != nil {
		return nil, err
	}

	f, err := b.FetchFundamentals(ctx, meta.Symbol)
	if err != nil {
		rec.ApplyFundamentals(nil)
		return rec, fmt.Errorf("%s fundamentals: %w: %w", meta.Symbol, contracts.ErrPartialData, err)
	}
	rec.ApplyFundamentals(f)
	return rec, nil
}
