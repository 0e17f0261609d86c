package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/sp500scope/backend/internal/brain"
	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/scheduler"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// Refresher runs one synchronous refresh cycle
type Refresher interface {
	Run(ctx context.Context, force bool) (*brain.RunResult, error)
}

// RefreshJob is the unattended snapshot refresh
type RefreshJob struct {
	refresher       Refresher
	schedule        string
	tradingDaysOnly bool
	calendar        TradingCalendar
	logger          *logger.Logger
	now             func() time.Time
}

// NewRefreshJob creates a new refresh job. cal may be nil when tradingDaysOnly is false.
func NewRefreshJob(refresher Refresher, schedule string, tradingDaysOnly bool, cal TradingCalendar, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		refresher:       refresher,
		schedule:        schedule,
		tradingDaysOnly: tradingDaysOnly,
		calendar:        cal,
		logger:          log.WithField("job", "snapshot_refresh"),
		now:             time.Now,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "snapshot_refresh"
}

// Schedule returns the cron schedule
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run refetches the whole universe. Non-trading days and an already
// running refresh are reported as skips.
func (j *RefreshJob) Run(ctx context.Context) error {
	if j.tradingDaysOnly && j.calendar != nil && !j.calendar.IsTradingDay(j.now()) {
		return fmt.Errorf("%w: not a trading day", scheduler.ErrSkipped)
	}

	j.logger.Info("Starting scheduled refresh")

	result, err := j.refresher.Run(ctx, true)
	if errors.Is(err, contracts.ErrAlreadyRunning) {
		return fmt.Errorf("%w: %w", scheduler.ErrSkipped, err)
	}
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"records":  result.Records,
		"duration": result.Duration.Seconds(),
	}).Info("Scheduled refresh completed")

	return nil
}
