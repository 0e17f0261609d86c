package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BRK.B", "BRK-B"},
		{"BF.B", "BF-B"},
		{" aapl ", "AAPL"},
		{"MSFT", "MSFT"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSymbol(tt.in))
		})
	}
}

func TestNormalizeSector(t *testing.T) {
	assert.Equal(t, UnknownSector, NormalizeSector(""))
	assert.Equal(t, UnknownSector, NormalizeSector("N/A"))
	assert.Equal(t, "Information Technology", NormalizeSector(" Information Technology "))
	assert.True(t, IsUnknownSector("n/a"))
	assert.False(t, IsUnknownSector("Energy"))
}

func TestMetricRecord_NullsSurviveJSON(t *testing.T) {
	rec := MetricRecord{
		Symbol:      "NEWCO",
		Price:       12.5,
		MA50:        11,
		Return1D:    Float(0),
		LastUpdated: "2026-10-15",
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	// absent metric is null, a zero metric stays zero
	assert.Contains(t, raw, "ma_200")
	assert.Nil(t, raw["ma_200"])
	assert.Equal(t, 0.0, raw["return_1d"])

	var back MetricRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Nil(t, back.MA200)
	require.NotNil(t, back.Return1D)
	assert.Equal(t, 0.0, *back.Return1D)
}

func TestApplyFundamentals(t *testing.T) {
	rec := MetricRecord{Symbol: "AAPL"}
	rec.ApplyFundamentals(&Fundamentals{MarketCap: Float(3e12), EarningsDate: String("2026-10-30")})

	assert.Equal(t, 3e12, ValueOr(rec.MarketCap))
	assert.Nil(t, rec.PERatio)
	assert.Equal(t, "2026-10-30", *rec.EarningsDate)

	rec.ApplyFundamentals(nil)
	assert.Nil(t, rec.MarketCap)
	assert.Nil(t, rec.EarningsDate)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"source unavailable", fmt.Errorf("chart AAPL: %w", ErrSourceUnavailable), true},
		{"attempt timeout", fmt.Errorf("chart: %w", context.DeadlineExceeded), true},
		{"insufficient history", fmt.Errorf("chart: %w", ErrInsufficientHistory), false},
		{"cancelled", context.Canceled, false},
		{"partial", ErrPartialData, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 12.35, Round2(12.345678))
	assert.Equal(t, -3.1, Round2(-3.1))
}
