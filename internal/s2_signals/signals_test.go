package s2_signals

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/external/yahoo"
	"github.com/wonny/sp500scope/backend/pkg/logger"
	"github.com/wonny/sp500scope/backend/pkg/redis"
)

// linear returns n closes 1, 2, ..., n
func linear(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestTechnicalCalculator(t *testing.T) {
	calc := NewTechnicalCalculator(logger.Nop())

	t.Run("insufficient history", func(t *testing.T) {
		rec := &contracts.MetricRecord{Symbol: "NEW"}
		err := calc.Calculate(context.Background(), rec, linear(49))
		assert.True(t, errors.Is(err, contracts.ErrInsufficientHistory))
	})

	t.Run("no 200-day average below 200 closes", func(t *testing.T) {
		rec := &contracts.MetricRecord{Symbol: "MID"}
		require.NoError(t, calc.Calculate(context.Background(), rec, linear(120)))

		assert.Equal(t, 120.0, rec.Price)
		assert.Equal(t, 95.5, rec.MA50) // mean of 71..120
		assert.Nil(t, rec.MA200)
		assert.Nil(t, rec.TrendStrength)
	})

	t.Run("full history", func(t *testing.T) {
		rec := &contracts.MetricRecord{Symbol: "OLD"}
		require.NoError(t, calc.Calculate(context.Background(), rec, linear(250)))

		assert.Equal(t, 225.5, rec.MA50) // mean of 201..250
		require.NotNil(t, rec.MA200)
		assert.Equal(t, 150.5, *rec.MA200) // mean of 51..250
		require.NotNil(t, rec.TrendStrength)
		assert.Equal(t, 49.83, *rec.TrendStrength)
	})
}

func TestMomentumCalculator(t *testing.T) {
	calc := NewMomentumCalculator(logger.Nop())

	rec := &contracts.MetricRecord{}
	calc.Calculate(context.Background(), rec, linear(60))

	require.NotNil(t, rec.Return1D)
	assert.Equal(t, contracts.Round2((60.0/59.0-1)*100), *rec.Return1D)
	assert.Equal(t, contracts.Round2((60.0/55.0-1)*100), *rec.Return5D)
	assert.Equal(t, contracts.Round2((60.0/39.0-1)*100), *rec.Return1M)
	assert.Nil(t, rec.Return6M)
	assert.Nil(t, rec.Volatility6M)
}

func TestAnnualizedVolatility(t *testing.T) {
	assert.Equal(t, 0.0, *annualizedVolatility(constant(127, 50), 126))
	assert.Nil(t, annualizedVolatility(constant(126, 50), 126))

	// alternating +10% / -10% daily moves
	closes := []float64{100}
	for i := 0; i < 126; i++ {
		last := closes[len(closes)-1]
		if i%2 == 0 {
			closes = append(closes, last*1.1)
		} else {
			closes = append(closes, last/1.1)
		}
	}
	vol := annualizedVolatility(closes, 126)
	require.NotNil(t, vol)
	assert.Greater(t, *vol, 100.0)
	assert.False(t, math.IsNaN(*vol))
}

func TestVolumeCalculator(t *testing.T) {
	calc := NewVolumeCalculator(logger.Nop())

	volumes := constant(20, 1_000_000)
	volumes[19] = 3_000_000 // latest spike

	rec := &contracts.MetricRecord{}
	calc.Calculate(context.Background(), rec, volumes)

	require.NotNil(t, rec.Volume)
	assert.Equal(t, int64(3_000_000), *rec.Volume)
	assert.Equal(t, 1_100_000.0, *rec.AvgVolume20D)
	assert.Equal(t, 172.73, *rec.VolumeChange1D)
	assert.Equal(t, 27.27, *rec.VolumeChange5D)

	// implied average recovers the 20-day average
	implied := float64(*rec.Volume) / (1 + *rec.VolumeChange1D/100)
	assert.InDelta(t, *rec.AvgVolume20D, implied, 50)

	short := &contracts.MetricRecord{}
	calc.Calculate(context.Background(), short, constant(10, 500))
	assert.NotNil(t, short.Volume)
	assert.Nil(t, short.AvgVolume20D)
	assert.Nil(t, short.VolumeChange1D)
}

type fakeSource struct {
	history         *yahoo.History
	historyErr      error
	fundamentals    *contracts.Fundamentals
	fundamentalsErr error
}

func (f *fakeSource) FetchHistory(ctx context.Context, symbol string) (*yahoo.History, error) {
	return f.history, f.historyErr
}

func (f *fakeSource) FetchFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	return f.fundamentals, f.fundamentalsErr
}

func TestBuilder_CacheKeyUsesMarketClock(t *testing.T) {
	ny := time.FixedZone("EDT", -4*60*60)
	utc := time.Date(2026, 10, 16, 3, 30, 0, 0, time.UTC)

	builder := NewBuilder(&fakeSource{}, &fakeSource{}, nil, 0, logger.Nop()).
		WithClock(func() time.Time { return utc.In(ny) })
	assert.Equal(t, "fundamentals:AAPL:2026-10-15", builder.cacheKey("AAPL"))
}

func TestBuilder_Fetch(t *testing.T) {
	meta := contracts.SymbolMeta{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Information Technology", Industry: "Hardware"}
	history := &yahoo.History{Symbol: "AAPL", Closes: linear(210), Volumes: constant(210, 1e6)}

	t.Run("complete record", func(t *testing.T) {
		src := &fakeSource{history: history, fundamentals: &contracts.Fundamentals{
			MarketCap: contracts.Float(3e12),
			PERatio:   contracts.Float(30),
		}}
		builder := NewBuilder(src, src, nil, 0, logger.Nop())

		rec, err := builder.Fetch(context.Background(), meta)
		require.NoError(t, err)
		assert.Equal(t, "Information Technology", rec.Sector)
		assert.Equal(t, 210.0, rec.Price)
		assert.Equal(t, 3e12, *rec.MarketCap)
		assert.NotNil(t, rec.Return6M)
	})

	t.Run("fundamentals failure is partial data", func(t *testing.T) {
		src := &fakeSource{history: history, fundamentalsErr: contracts.ErrSourceUnavailable}
		builder := NewBuilder(src, src, nil, 0, logger.Nop())

		rec, err := builder.Fetch(context.Background(), meta)
		require.Error(t, err)
		assert.True(t, errors.Is(err, contracts.ErrPartialData))
		require.NotNil(t, rec)
		assert.Nil(t, rec.MarketCap)
		assert.Nil(t, rec.PERatio)
	})

	t.Run("short history", func(t *testing.T) {
		src := &fakeSource{history: &yahoo.History{Closes: linear(30)}}
		builder := NewBuilder(src, src, nil, 0, logger.Nop())

		_, err := builder.FetchPrices(context.Background(), meta)
		assert.True(t, errors.Is(err, contracts.ErrInsufficientHistory))
	})

	t.Run("disabled cache passes through", func(t *testing.T) {
		src := &fakeSource{history: history, fundamentals: &contracts.Fundamentals{PERatio: contracts.Float(12)}}
		builder := NewBuilder(src, src, redis.NewCache(redis.Disabled(), "test"), redis.TTLLong, logger.Nop())

		f, err := builder.FetchFundamentals(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 12.0, *f.PERatio)
	})
}
