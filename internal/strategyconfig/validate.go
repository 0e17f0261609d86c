package strategyconfig

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError is a hard failure; the overlay is rejected
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning is a recommended-range violation; it never blocks startup
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints.
// Zero values mean "not set" and are always accepted.
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
			return ValidationError{"meta.timezone", err.Error()}
		}
	}

	// === Fetch ===
	f := cfg.Fetch
	if f.BatchSize < 0 {
		return ValidationError{"fetch.batch_size", "must be >= 0"}
	}
	if f.Workers < 0 {
		return ValidationError{"fetch.workers", "must be >= 0"}
	}
	if f.BatchSize > 0 && f.Workers > 0 && f.Workers >= f.BatchSize {
		return ValidationError{"fetch.workers", "must be smaller than fetch.batch_size"}
	}
	if f.MaxAttempts < 0 || f.MaxAttempts > 10 {
		return ValidationError{"fetch.max_attempts", "must be in [0, 10]"}
	}
	if err := validateDuration(f.BackoffBase); err != nil {
		return ValidationError{"fetch.backoff_base", err.Error()}
	}
	if err := validateDuration(f.BatchPause); err != nil {
		return ValidationError{"fetch.batch_pause", err.Error()}
	}
	if f.RatePerSecond < 0 {
		return ValidationError{"fetch.rate_per_second", "must be >= 0"}
	}

	// === Screening ===
	s := cfg.Screening
	if s.MinMarketCap < 0 || s.MinAvgVolume20D < 0 || s.MinPrice < 0 {
		return ValidationError{"screening", "thresholds must be >= 0"}
	}

	// === Decision ===
	d := cfg.Decision
	for field, v := range map[string]int{
		"decision.sell_below_score":   d.SellBelowScore,
		"decision.reduce_below_score": d.ReduceBelowScore,
		"decision.strong_buy_score":   d.StrongBuyScore,
		"decision.buy_small_score":    d.BuySmallScore,
	} {
		if v < 0 || v > 100 {
			return ValidationError{field, "must be in [0, 100]"}
		}
	}
	if d.BuySmallScore > 0 && d.StrongBuyScore > 0 && d.BuySmallScore >= d.StrongBuyScore {
		return ValidationError{"decision.buy_small_score", "must be below decision.strong_buy_score"}
	}
	if d.SellBelowScore > 0 && d.ReduceBelowScore > 0 && d.SellBelowScore > d.ReduceBelowScore {
		return ValidationError{"decision.sell_below_score", "must not exceed decision.reduce_below_score"}
	}
	if ef := d.EarningsFreeze; (ef.DaysBefore != nil && *ef.DaysBefore < 0) || (ef.DaysAfter != nil && *ef.DaysAfter < 0) {
		return ValidationError{"decision.earnings_freeze", "days must be >= 0"}
	}

	// === Schedule ===
	if cfg.Schedule.RefreshCron != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(cfg.Schedule.RefreshCron); err != nil {
			return ValidationError{"schedule.refresh_cron", err.Error()}
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Fetch.RatePerSecond > 10 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_RATE",
			Message: "rate_per_second > 10: upstream throttling likely",
		})
	}

	if cfg.Fetch.Workers > 4 {
		warnings = append(warnings, Warning{
			Code:    "MANY_WORKERS",
			Message: "workers > 4: bursts may trip upstream rate limits",
		})
	}

	if cfg.Screening.MinAvgVolume20D > 0 && cfg.Screening.MinAvgVolume20D < 100000 {
		warnings = append(warnings, Warning{
			Code:    "LOW_LIQUIDITY",
			Message: "min_avg_volume_20d < 100k: illiquid names pass the filter",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateDuration(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}
