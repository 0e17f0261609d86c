package contracts

import (
	"math"
	"time"
)

// DateLayout is the calendar-date format used for bookkeeping and earnings dates
const DateLayout = "2006-01-02"

// Decision is the categorical output of the scoring engine
type Decision string

const (
	DecisionRejected  Decision = "Rejected – Universal Filter"
	DecisionSell      Decision = "Sell"
	DecisionHold      Decision = "Hold"
	DecisionReduce    Decision = "Reduce"
	DecisionStrongBuy Decision = "Strong Buy"
	DecisionBuySmall  Decision = "Buy (Small)"
	DecisionError     Decision = "ERROR"
)

// MetricRecord is one symbol's row in the snapshot and the unit of incremental update.
// Optional metrics are pointers: nil means "not computed", which is not the same as zero.
type MetricRecord struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`

	// Price state
	Price         float64  `json:"price"`
	MA50          float64  `json:"ma_50"`
	MA200         *float64 `json:"ma_200"`
	TrendStrength *float64 `json:"trend_strength"` // (ma50/ma200 - 1) * 100

	// Returns, percent
	Return1D *float64 `json:"return_1d"`
	Return5D *float64 `json:"return_5d"`
	Return1M *float64 `json:"return_1m"`
	Return6M *float64 `json:"return_6m"`

	// Annualized, percent
	Volatility6M *float64 `json:"volatility_6m"`

	// Volume state; changes are percent vs the 20-day average
	Volume         *int64   `json:"volume"`
	AvgVolume20D   *float64 `json:"avg_volume_20d"`
	VolumeChange1D *float64 `json:"volume_change_1d"`
	VolumeChange5D *float64 `json:"volume_change_5d"`

	// Fundamentals, best-effort
	PERatio      *float64 `json:"pe_ratio"`
	MarketCap    *float64 `json:"market_cap"`
	EarningsDate *string  `json:"earnings_date"` // YYYY-MM-DD

	// Written by the scoring engine
	Score        int      `json:"score"`
	Decision     Decision `json:"decision"`
	DecisionGate string   `json:"decision_gate,omitempty"`

	LastUpdated string `json:"last_updated"` // YYYY-MM-DD
}

// Fundamentals is the secondary-source part of a record
type Fundamentals struct {
	MarketCap    *float64 `json:"market_cap"`
	PERatio      *float64 `json:"pe_ratio"`
	EarningsDate *string  `json:"earnings_date"`
}

// ApplyFundamentals copies fundamentals onto the record; nil clears them
func (r *MetricRecord) ApplyFundamentals(f *Fundamentals) {
	if f == nil {
		r.MarketCap, r.PERatio, r.EarningsDate = nil, nil, nil
		return
	}
	r.MarketCap = f.MarketCap
	r.PERatio = f.PERatio
	r.EarningsDate = f.EarningsDate
}

// IsCurrent reports whether the record was updated on the given calendar date
func (r *MetricRecord) IsCurrent(today string) bool {
	return r.LastUpdated == today
}

// DateOf formats t as a calendar date in t's location
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}

// String returns a pointer to v
func String(v string) *string {
	return &v
}

// ValueOr returns *p, or 0 when p is nil
func ValueOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Round2 rounds to two decimals
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
