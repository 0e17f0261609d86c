package contracts

// SectorSummary is a per-sector rollup, recomputed on every aggregation call
type SectorSummary struct {
	Sector         string   `json:"sector"`
	TotalMarketCap float64  `json:"total_market_cap"`
	WeightedPE     *float64 `json:"weighted_pe"`
	AvgMA50        *float64 `json:"avg_ma_50"`
	AvgMA200       *float64 `json:"avg_ma_200"`
	AvgReturn1D    *float64 `json:"avg_return_1d"`
	AvgReturn5D    *float64 `json:"avg_return_5d"`
	AvgReturn1M    *float64 `json:"avg_return_1m"`
	AvgReturn6M    *float64 `json:"avg_return_6m"`
	Count          int      `json:"count"`
}

// SectorMedians are the per-sector lookup tables the scoring engine compares against.
// A sector missing from a map has no median.
type SectorMedians struct {
	PERatio      map[string]float64
	Volatility6M map[string]float64
}
