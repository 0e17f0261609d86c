package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/sp500scope/backend/internal/selection"
	"github.com/wonny/sp500scope/backend/pkg/config"
)

// Load reads a YAML overlay and returns it with its raw bytes.
// Unknown fields are an error so a typo never silently falls back to a default.
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates an overlay document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Hash generates SHA256 hash from Config (canonical JSON)
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Apply writes the overlay's non-zero settings onto the environment config
// and the screener thresholds, then re-validates the environment config.
func Apply(cfg *Config, base *config.Config, screener *selection.ScreenerConfig) error {
	f := cfg.Fetch
	setInt(&base.Fetch.BatchSize, f.BatchSize)
	setInt(&base.Fetch.Workers, f.Workers)
	setInt(&base.Fetch.MaxAttempts, f.MaxAttempts)
	setDuration(&base.Fetch.BackoffBase, f.BackoffBase)
	setDuration(&base.Fetch.BatchPause, f.BatchPause)
	setFloat(&base.Fetch.RatePerSecond, f.RatePerSecond)

	s := cfg.Screening
	setFloat(&screener.MinMarketCap, s.MinMarketCap)
	setFloat(&screener.MinAvgVolume20, s.MinAvgVolume20D)
	setFloat(&screener.MinPrice, s.MinPrice)

	d := cfg.Decision
	setInt(&screener.SellBelowScore, d.SellBelowScore)
	setInt(&screener.ReduceBelowScore, d.ReduceBelowScore)
	setInt(&screener.StrongBuyScore, d.StrongBuyScore)
	setInt(&screener.BuySmallScore, d.BuySmallScore)
	setFloat(&screener.MinVolume5DRatio, d.MinVolume5DRatio)
	if d.EarningsFreeze.DaysBefore != nil {
		base.Scoring.FreezeDaysBefore = *d.EarningsFreeze.DaysBefore
	}
	if d.EarningsFreeze.DaysAfter != nil {
		base.Scoring.FreezeDaysAfter = *d.EarningsFreeze.DaysAfter
	}
	screener.FreezeDaysBefore = base.Scoring.FreezeDaysBefore
	screener.FreezeDaysAfter = base.Scoring.FreezeDaysAfter

	if cfg.Schedule.RefreshCron != "" {
		base.Scheduler.RefreshCron = cfg.Schedule.RefreshCron
	}
	if cfg.Schedule.TradingDaysOnly != nil {
		base.Scheduler.TradingDaysOnly = *cfg.Schedule.TradingDaysOnly
	}

	return base.Validate()
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// setDuration expects a value Validate has already parsed once
func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
