package selection

import (
	"time"

	"github.com/wonny/sp500scope/backend/internal/contracts"
)

// Gate names recorded on each record next to its decision
const (
	GateUniversalFilter = "universal_filter"
	GateSell            = "sell"
	GateEarningsFreeze  = "earnings_freeze"
	GateReduce          = "reduce"
	GateStrongBuy       = "strong_buy"
	GateBuySmall        = "buy_small"
	GateDefault         = "default"
	GateError           = "error"
)

// ScreenerConfig holds the decision thresholds
type ScreenerConfig struct {
	// Universal filter
	MinMarketCap   float64 // 2e9
	MinAvgVolume20 float64 // 500k shares
	MinPrice       float64 // $10

	// Earnings freeze window, in days around today
	FreezeDaysBefore int
	FreezeDaysAfter  int

	SellBelowScore   int // 45
	ReduceBelowScore int // 65
	StrongBuyScore   int // 80
	BuySmallScore    int // 70
	MinVolume5DRatio float64
}

// DefaultScreenerConfig returns the standard thresholds
func DefaultScreenerConfig() ScreenerConfig {
	return ScreenerConfig{
		MinMarketCap:     2e9,
		MinAvgVolume20:   500000,
		MinPrice:         10,
		FreezeDaysBefore: 1,
		FreezeDaysAfter:  7,
		SellBelowScore:   45,
		ReduceBelowScore: 65,
		StrongBuyScore:   80,
		BuySmallScore:    70,
		MinVolume5DRatio: 1.2,
	}
}

// Screener runs the ordered decision gates. The first gate that matches wins.
type Screener struct {
	config ScreenerConfig
}

// NewScreener creates a new screener
func NewScreener(config ScreenerConfig) *Screener {
	return &Screener{config: config}
}

// Config returns the thresholds in use
func (s *Screener) Config() ScreenerConfig {
	return s.config
}

// Decide maps a scored record to its decision and the gate that produced it
func (s *Screener) Decide(in inputs, score int, today time.Time) (contracts.Decision, string) {
	c := s.config

	// 1. capital floor
	if in.marketCap < c.MinMarketCap || in.avgVolume20() < c.MinAvgVolume20 || in.price < c.MinPrice {
		return contracts.DecisionRejected, GateUniversalFilter
	}

	// 2. capital protection
	if in.price < in.ma200 || (in.ret1d < 0 && in.vol1dRatio >= 2) || in.trend < 0 || score < c.SellBelowScore {
		return contracts.DecisionSell, GateSell
	}

	days, hasEarnings := daysUntil(in.earningsDate, today)

	// 3. earnings freeze
	if hasEarnings && days >= -c.FreezeDaysBefore && days <= c.FreezeDaysAfter {
		return contracts.DecisionHold, GateEarningsFreeze
	}

	// 4. risk control
	if score < c.ReduceBelowScore || (in.ret5d < 0 && in.ret1m < 0) {
		return contracts.DecisionReduce, GateReduce
	}

	earningsClear := !hasEarnings || days > c.FreezeDaysAfter
	aboveAverages := in.price > in.ma50 && in.price > in.ma200

	// 5. add aggressively
	if score >= c.StrongBuyScore && aboveAverages && in.vol5dRatio >= c.MinVolume5DRatio && in.ret6m > 0 && earningsClear {
		return contracts.DecisionStrongBuy, GateStrongBuy
	}

	// 6. add cautiously
	if score >= c.BuySmallScore && score < c.StrongBuyScore && aboveAverages && in.ret6m > 0 && earningsClear {
		return contracts.DecisionBuySmall, GateBuySmall
	}

	return contracts.DecisionHold, GateDefault
}

// daysUntil counts calendar days from today to date. An empty or
// unparseable date reports false.
func daysUntil(date string, today time.Time) (int, bool) {
	if date == "" {
		return 0, false
	}
	d, err := time.Parse(contracts.DateLayout, date)
	if err != nil {
		return 0, false
	}
	t, _ := time.Parse(contracts.DateLayout, contracts.DateOf(today))
	return int(d.Sub(t).Hours() / 24), true
}
