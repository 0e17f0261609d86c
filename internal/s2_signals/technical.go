package s2_signals

import (
	"context"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// MinHistory is the number of closes needed for the 50-day average
const MinHistory = 50

// TechnicalCalculator computes price, moving averages and trend strength
type TechnicalCalculator struct {
	logger *logger.Logger
}

// NewTechnicalCalculator creates a new technical calculator
func NewTechnicalCalculator(log *logger.Logger) *TechnicalCalculator {
	return &TechnicalCalculator{
		logger: log,
	}
}

// Calculate fills the price state of rec from closes (oldest first).
// Fewer than MinHistory closes is ErrInsufficientHistory; the 200-day
// average and trend strength are left nil when history is too short.
func (c *TechnicalCalculator) Calculate(ctx context.Context, rec *contracts.MetricRecord, closes []float64) error {
	if len(closes) < MinHistory {
		return contracts.ErrInsufficientHistory
	}

	ma50, _ := movingAverage(closes, 50)
	rec.Price = contracts.Round2(closes[len(closes)-1])
	rec.MA50 = contracts.Round2(ma50)
	rec.MA200 = nil
	rec.TrendStrength = nil

	if ma200, ok := movingAverage(closes, 200); ok && ma200 > 0 {
		rec.MA200 = contracts.Float(contracts.Round2(ma200))
		rec.TrendStrength = contracts.Float(contracts.Round2((ma50/ma200 - 1) * 100))
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": rec.Symbol,
		"price":  rec.Price,
		"ma_50":  rec.MA50,
		"bars":   len(closes),
	}).Debug("Calculated technical state")

	return nil
}

// movingAverage is the mean of the last n values
func movingAverage(values []float64, n int) (float64, bool) {
	if n <= 0 || len(values) < n {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n), true
}
