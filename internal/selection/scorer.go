package selection

import (
	"fmt"
	"math"

	"github.com/wonny/sp500scope/backend/internal/contracts"
)

// Breakdown is the score split by block
type Breakdown struct {
	Trend    int `json:"trend"`
	Momentum int `json:"momentum"`
	Volume   int `json:"volume"`
	Risk     int `json:"risk"`
}

// Total is the clamped score
func (b Breakdown) Total() int {
	total := b.Trend + b.Momentum + b.Volume + b.Risk
	if total < 0 {
		return 0
	}
	return total
}

// inputs are the record fields the rules read, with nulls defaulted to 0
type inputs struct {
	sector string

	price, ma50, ma200, trend float64

	ret1d, ret5d, ret1m, ret6m float64

	volChange1d float64
	vol1dRatio  float64
	vol5dRatio  float64

	volume       float64
	hasVolume    bool
	hasChange1d  bool
	marketCap    float64
	pe           float64
	volatility6m float64

	earningsDate string
}

func newInputs(rec *contracts.MetricRecord) (inputs, error) {
	in := inputs{
		sector:       rec.Sector,
		price:        rec.Price,
		ma50:         rec.MA50,
		ma200:        contracts.ValueOr(rec.MA200),
		trend:        contracts.ValueOr(rec.TrendStrength),
		ret1d:        contracts.ValueOr(rec.Return1D),
		ret5d:        contracts.ValueOr(rec.Return5D),
		ret1m:        contracts.ValueOr(rec.Return1M),
		ret6m:        contracts.ValueOr(rec.Return6M),
		volChange1d:  contracts.ValueOr(rec.VolumeChange1D),
		hasChange1d:  rec.VolumeChange1D != nil,
		marketCap:    contracts.ValueOr(rec.MarketCap),
		pe:           contracts.ValueOr(rec.PERatio),
		volatility6m: contracts.ValueOr(rec.Volatility6M),
	}
	in.vol1dRatio = 1 + in.volChange1d/100
	in.vol5dRatio = 1 + contracts.ValueOr(rec.VolumeChange5D)/100

	if rec.Volume != nil && *rec.Volume != 0 {
		in.volume = float64(*rec.Volume)
		in.hasVolume = true
	}
	if rec.EarningsDate != nil {
		in.earningsDate = *rec.EarningsDate
	}

	for name, v := range map[string]float64{
		"price":            in.price,
		"ma_50":            in.ma50,
		"ma_200":           in.ma200,
		"trend_strength":   in.trend,
		"return_1d":        in.ret1d,
		"return_5d":        in.ret5d,
		"return_1m":        in.ret1m,
		"return_6m":        in.ret6m,
		"volume_change_1d": in.volChange1d,
		"volume_change_5d": in.vol5dRatio,
		"market_cap":       in.marketCap,
		"pe_ratio":         in.pe,
		"volatility_6m":    in.volatility6m,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return inputs{}, fmt.Errorf("%w: %s is not finite", contracts.ErrScoringFault, name)
		}
	}

	return in, nil
}

// avgVolume20 recovers the 20-day average from today's volume and its
// percent change; 0 when either is unknown
func (in inputs) avgVolume20() float64 {
	if !in.hasVolume || !in.hasChange1d || in.vol1dRatio <= 0 {
		return 0
	}
	return in.volume / in.vol1dRatio
}

// points accumulates the four blocks
func points(in inputs, medians contracts.SectorMedians) Breakdown {
	return Breakdown{
		Trend:    trendPoints(in),
		Momentum: momentumPoints(in),
		Volume:   volumePoints(in),
		Risk:     riskPoints(in, medians),
	}
}

// trendPoints only counts when price holds the 200-day average
func trendPoints(in inputs) int {
	if in.price < in.ma200 {
		return 0
	}

	p := 0
	if in.price > in.ma50 {
		p += 8
	}
	if in.ma50 > in.ma200 {
		p += 8
	}
	if in.price > in.ma200 {
		p += 8
	}
	if in.trend > 0 {
		p += 11
	}
	return p
}

func momentumPoints(in inputs) int {
	p := 0
	if in.ret6m > 0 {
		p += 5
	}
	if in.ret1m > 0 {
		p += 5
	}
	if in.ret5d > 0 {
		p += 5
	}
	if in.ret6m > in.ret1m && in.ret1m > in.ret5d {
		p += 10
	}
	if in.ret5d < 0 && in.ret1m > 0 {
		p -= 5
	}
	return p
}

func volumePoints(in inputs) int {
	p := 0
	if in.vol5dRatio >= 1.2 {
		p += 5
	}
	if in.vol1dRatio >= 1.5 {
		p += 10
	}
	if in.ret1d > 0 && in.volChange1d > 0 {
		p += 5
	}
	if in.ret1d < 0 && in.vol1dRatio >= 2 {
		p -= 10
	}
	return p
}

// riskPoints compares against sector medians; a missing or zero value on
// either side skips the comparison
func riskPoints(in inputs, medians contracts.SectorMedians) int {
	p := 0
	if in.marketCap > 10e9 {
		p += 5
	}

	if medianPE := medians.PERatio[in.sector]; in.pe != 0 && medianPE != 0 {
		switch {
		case in.pe < medianPE:
			p += 5
		case in.pe > medianPE && (in.ret1m > 0 || in.ret6m > 0):
			p += 3
		}
	}

	if medianVol := medians.Volatility6M[in.sector]; in.volatility6m != 0 && medianVol != 0 && in.volatility6m < medianVol {
		p += 7
	}
	return p
}
