package strategyconfig

// Config is the pipeline overlay. Every section is optional; a zero value
// leaves the environment setting in place.
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Fetch     Fetch     `yaml:"fetch" json:"fetch"`
	Screening Screening `yaml:"screening" json:"screening"`
	Decision  Decision  `yaml:"decision" json:"decision"`
	Schedule  Schedule  `yaml:"schedule" json:"schedule"`
}

// Meta identifies the rule set
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
}

// Fetch overrides the orchestrator tunables
type Fetch struct {
	BatchSize     int     `yaml:"batch_size" json:"batch_size"`
	Workers       int     `yaml:"workers" json:"workers"`
	MaxAttempts   int     `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase   string  `yaml:"backoff_base" json:"backoff_base"` // Go duration, e.g. "1s"
	BatchPause    string  `yaml:"batch_pause" json:"batch_pause"`
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`
}

// Screening is the universal filter
type Screening struct {
	MinMarketCap    float64 `yaml:"min_market_cap" json:"min_market_cap"`
	MinAvgVolume20D float64 `yaml:"min_avg_volume_20d" json:"min_avg_volume_20d"`
	MinPrice        float64 `yaml:"min_price" json:"min_price"`
}

// Decision holds the gate thresholds
type Decision struct {
	SellBelowScore   int            `yaml:"sell_below_score" json:"sell_below_score"`
	ReduceBelowScore int            `yaml:"reduce_below_score" json:"reduce_below_score"`
	StrongBuyScore   int            `yaml:"strong_buy_score" json:"strong_buy_score"`
	BuySmallScore    int            `yaml:"buy_small_score" json:"buy_small_score"`
	MinVolume5DRatio float64        `yaml:"min_volume_5d_ratio" json:"min_volume_5d_ratio"`
	EarningsFreeze   EarningsFreeze `yaml:"earnings_freeze" json:"earnings_freeze"`
}

// EarningsFreeze is the window around an earnings date; nil keeps the default
type EarningsFreeze struct {
	DaysBefore *int `yaml:"days_before" json:"days_before"`
	DaysAfter  *int `yaml:"days_after" json:"days_after"`
}

// Schedule overrides the unattended refresh
type Schedule struct {
	RefreshCron     string `yaml:"refresh_cron" json:"refresh_cron"`
	TradingDaysOnly *bool  `yaml:"trading_days_only" json:"trading_days_only"`
}
