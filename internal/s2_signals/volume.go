package s2_signals

import (
	"context"
	"math"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

const volumeAverageDays = 20

// VolumeCalculator computes volume state against the 20-day average
type VolumeCalculator struct {
	logger *logger.Logger
}

// NewVolumeCalculator creates a new volume calculator
func NewVolumeCalculator(log *logger.Logger) *VolumeCalculator {
	return &VolumeCalculator{
		logger: log,
	}
}

// Calculate fills the volume fields of rec. The 20-day average includes the
// latest session, so latest/avg-1 is the 1-day change and mean(last 5)/avg-1
// the 5-day change, both in percent.
func (c *VolumeCalculator) Calculate(ctx context.Context, rec *contracts.MetricRecord, volumes []float64) {
	rec.Volume, rec.AvgVolume20D, rec.VolumeChange1D, rec.VolumeChange5D = nil, nil, nil, nil
	if len(volumes) == 0 {
		return
	}

	latest := volumes[len(volumes)-1]
	rec.Volume = contracts.Int64(int64(math.Round(latest)))

	avg20, ok := movingAverage(volumes, volumeAverageDays)
	if !ok || avg20 <= 0 {
		return
	}
	avg5, _ := movingAverage(volumes, 5)

	rec.AvgVolume20D = contracts.Float(contracts.Round2(avg20))
	rec.VolumeChange1D = contracts.Float(contracts.Round2((latest/avg20 - 1) * 100))
	rec.VolumeChange5D = contracts.Float(contracts.Round2((avg5/avg20 - 1) * 100))
}
