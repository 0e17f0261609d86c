package sector

import (
	"sort"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// Aggregator reduces a snapshot into per-sector rollups and the
// median tables the scoring engine compares against.
// Rollups leave out the "unknown" sector; medians cover every sector.
type Aggregator struct {
	logger *logger.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(log *logger.Logger) *Aggregator {
	return &Aggregator{
		logger: log.WithField("module", "sector"),
	}
}

// Aggregate builds one summary per sector, largest total market cap first
func (a *Aggregator) Aggregate(records []contracts.MetricRecord) []contracts.SectorSummary {
	groups := groupBySector(records, true)

	summaries := make([]contracts.SectorSummary, 0, len(groups))
	for name, group := range groups {
		summaries = append(summaries, summarize(name, group))
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalMarketCap != summaries[j].TotalMarketCap {
			return summaries[i].TotalMarketCap > summaries[j].TotalMarketCap
		}
		return summaries[i].Sector < summaries[j].Sector
	})

	a.logger.WithFields(map[string]interface{}{
		"records": len(records),
		"sectors": len(summaries),
	}).Debug("Sector aggregation completed")

	return summaries
}

// Medians computes sector medians of P/E and 6-month volatility.
// Every sector gets a median, the unknown sentinel included, keyed by the
// record's sector as stored. Null and zero values are ignored; a sector with
// no usable values has no entry.
func (a *Aggregator) Medians(records []contracts.MetricRecord) contracts.SectorMedians {
	medians := contracts.SectorMedians{
		PERatio:      make(map[string]float64),
		Volatility6M: make(map[string]float64),
	}

	for name, group := range groupBySector(records, false) {
		if m, ok := median(collect(group, func(r *contracts.MetricRecord) *float64 { return r.PERatio })); ok {
			medians.PERatio[name] = m
		}
		if m, ok := median(collect(group, func(r *contracts.MetricRecord) *float64 { return r.Volatility6M })); ok {
			medians.Volatility6M[name] = m
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"pe_sectors":         len(medians.PERatio),
		"volatility_sectors": len(medians.Volatility6M),
	}).Debug("Sector medians computed")

	return medians
}

func summarize(name string, group []*contracts.MetricRecord) contracts.SectorSummary {
	summary := contracts.SectorSummary{
		Sector: name,
		Count:  len(group),
	}

	var peCap, peWeighted float64
	for _, r := range group {
		if r.MarketCap != nil {
			summary.TotalMarketCap += *r.MarketCap
		}
		if r.MarketCap != nil && r.PERatio != nil {
			peCap += *r.MarketCap
			peWeighted += *r.PERatio * *r.MarketCap
		}
	}
	if peCap > 0 {
		summary.WeightedPE = contracts.Float(contracts.Round2(peWeighted / peCap))
	}

	ma50 := make([]float64, 0, len(group))
	for _, r := range group {
		ma50 = append(ma50, r.MA50)
	}
	summary.AvgMA50 = mean(ma50)
	summary.AvgMA200 = mean(present(group, func(r *contracts.MetricRecord) *float64 { return r.MA200 }))
	summary.AvgReturn1D = mean(present(group, func(r *contracts.MetricRecord) *float64 { return r.Return1D }))
	summary.AvgReturn5D = mean(present(group, func(r *contracts.MetricRecord) *float64 { return r.Return5D }))
	summary.AvgReturn1M = mean(present(group, func(r *contracts.MetricRecord) *float64 { return r.Return1M }))
	summary.AvgReturn6M = mean(present(group, func(r *contracts.MetricRecord) *float64 { return r.Return6M }))

	return summary
}

// groupBySector groups records by sector, optionally skipping the unknown sentinel
func groupBySector(records []contracts.MetricRecord, skipUnknown bool) map[string][]*contracts.MetricRecord {
	groups := make(map[string][]*contracts.MetricRecord)
	for i := range records {
		r := &records[i]
		if skipUnknown && contracts.IsUnknownSector(r.Sector) {
			continue
		}
		groups[r.Sector] = append(groups[r.Sector], r)
	}
	return groups
}

// present returns the non-null values of a field
func present(group []*contracts.MetricRecord, field func(*contracts.MetricRecord) *float64) []float64 {
	values := make([]float64, 0, len(group))
	for _, r := range group {
		if v := field(r); v != nil {
			values = append(values, *v)
		}
	}
	return values
}

// collect is present without zeros, which upstream uses for "no value"
func collect(group []*contracts.MetricRecord, field func(*contracts.MetricRecord) *float64) []float64 {
	values := make([]float64, 0, len(group))
	for _, v := range present(group, field) {
		if v != 0 {
			values = append(values, v)
		}
	}
	return values
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return contracts.Float(contracts.Round2(sum / float64(len(values))))
}

// median averages the two middle values for an even count
func median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}
