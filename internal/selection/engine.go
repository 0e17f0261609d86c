package selection

import (
	"fmt"
	"time"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// Result is one record's scoring outcome
type Result struct {
	Score     int                `json:"score"`
	Decision  contracts.Decision `json:"decision"`
	Gate      string             `json:"decision_gate"`
	Breakdown Breakdown          `json:"breakdown"`
}

// Engine scores records against sector medians.
// Scoring one record is a pure function of the record, the medians and the date.
type Engine struct {
	screener *Screener
	logger   *logger.Logger
	now      func() time.Time
}

// NewEngine creates a new scoring engine
func NewEngine(config ScreenerConfig, log *logger.Logger) *Engine {
	return &Engine{
		screener: NewScreener(config),
		logger:   log.WithField("module", "selection"),
		now:      time.Now,
	}
}

// WithClock replaces the engine's clock
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Score evaluates one record as of today. A fault yields (0, ERROR) and an
// error wrapping contracts.ErrScoringFault.
func (e *Engine) Score(rec *contracts.MetricRecord, medians contracts.SectorMedians, today time.Time) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = errorResult()
			err = fmt.Errorf("%w: %v", contracts.ErrScoringFault, r)
		}
	}()

	in, err := newInputs(rec)
	if err != nil {
		return errorResult(), err
	}

	breakdown := points(in, medians)
	score := breakdown.Total()
	decision, gate := e.screener.Decide(in, score, today)

	return Result{
		Score:     score,
		Decision:  decision,
		Gate:      gate,
		Breakdown: breakdown,
	}, nil
}

// ScoreAll scores every record in place and returns the decision counts.
// A record that fails to score is marked ERROR; the rest still score.
func (e *Engine) ScoreAll(records []contracts.MetricRecord, medians contracts.SectorMedians) map[string]int {
	today := e.now()
	faults := 0

	for i := range records {
		rec := &records[i]
		res, err := e.Score(rec, medians, today)
		if err != nil {
			faults++
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol": rec.Symbol,
			}).Warn("Scoring failed")
		}

		rec.Score = res.Score
		rec.Decision = res.Decision
		rec.DecisionGate = res.Gate
	}

	counts := CountDecisions(records)

	e.logger.WithFields(map[string]interface{}{
		"records":   len(records),
		"faults":    faults,
		"decisions": counts,
	}).Info("Scoring completed")

	return counts
}

func errorResult() Result {
	return Result{Score: 0, Decision: contracts.DecisionError, Gate: GateError}
}
