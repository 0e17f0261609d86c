package s2_signals

import (
	"context"
	"math"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// Return lookbacks in trading days
const (
	Lookback1D = 1
	Lookback5D = 5
	Lookback1M = 21
	Lookback6M = 126

	tradingDaysPerYear = 252
)

// MomentumCalculator computes trailing returns and 6-month volatility
type MomentumCalculator struct {
	logger *logger.Logger
}

// NewMomentumCalculator creates a new momentum calculator
func NewMomentumCalculator(log *logger.Logger) *MomentumCalculator {
	return &MomentumCalculator{
		logger: log,
	}
}

// Calculate fills the return and volatility fields of rec. Each field is
// independent: a horizon longer than the history is left nil.
func (c *MomentumCalculator) Calculate(ctx context.Context, rec *contracts.MetricRecord, closes []float64) {
	rec.Return1D = percentReturn(closes, Lookback1D)
	rec.Return5D = percentReturn(closes, Lookback5D)
	rec.Return1M = percentReturn(closes, Lookback1M)
	rec.Return6M = percentReturn(closes, Lookback6M)
	rec.Volatility6M = annualizedVolatility(closes, Lookback6M)

	c.logger.WithFields(map[string]interface{}{
		"symbol":    rec.Symbol,
		"return_1m": rec.Return1M,
		"return_6m": rec.Return6M,
	}).Debug("Calculated momentum")
}

// percentReturn is (c[-1] / c[-1-days] - 1) * 100
func percentReturn(closes []float64, days int) *float64 {
	if len(closes) < days+1 {
		return nil
	}
	base := closes[len(closes)-1-days]
	if base == 0 {
		return nil
	}
	return contracts.Float(contracts.Round2((closes[len(closes)-1]/base - 1) * 100))
}

// annualizedVolatility is the sample standard deviation of the last `days`
// daily simple returns, scaled by sqrt(252), in percent
func annualizedVolatility(closes []float64, days int) *float64 {
	if days < 2 || len(closes) < days+1 {
		return nil
	}

	window := closes[len(closes)-days-1:]
	returns := make([]float64, 0, days)
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			return nil
		}
		returns = append(returns, window[i]/window[i-1]-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return contracts.Float(contracts.Round2(math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear) * 100))
}
