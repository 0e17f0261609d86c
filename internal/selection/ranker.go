package selection

import (
	"sort"

	"github.com/wonny/sp500scope/backend/internal/contracts"
)

// Filter narrows a snapshot for listing
type Filter struct {
	Decision contracts.Decision // empty matches all
	Sector   string             // empty matches all
	MinScore int
	Limit    int // 0 means no limit
}

// Rank returns the records matching f, highest score first.
// Ties keep symbol order so output is stable.
func Rank(records []contracts.MetricRecord, f Filter) []contracts.MetricRecord {
	ranked := make([]contracts.MetricRecord, 0, len(records))
	for _, r := range records {
		if f.Decision != "" && r.Decision != f.Decision {
			continue
		}
		if f.Sector != "" && r.Sector != f.Sector {
			continue
		}
		if r.Score < f.MinScore {
			continue
		}
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})

	if f.Limit > 0 && len(ranked) > f.Limit {
		ranked = ranked[:f.Limit]
	}
	return ranked
}

// CountDecisions tallies decisions, keyed by their display string
func CountDecisions(records []contracts.MetricRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[string(r.Decision)]++
	}
	return counts
}
