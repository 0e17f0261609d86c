package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/sector"
	"github.com/wonny/sp500scope/backend/internal/selection"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// SnapshotReader is the read side of the snapshot store
type SnapshotReader interface {
	Records() ([]contracts.MetricRecord, error)
	Get(symbol string) (contracts.MetricRecord, bool, error)
}

// StockHandler serves the snapshot query surface
type StockHandler struct {
	store      SnapshotReader
	aggregator *sector.Aggregator
	logger     *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(store SnapshotReader, aggregator *sector.Aggregator, log *logger.Logger) *StockHandler {
	return &StockHandler{
		store:      store,
		aggregator: aggregator,
		logger:     log,
	}
}

// StockListResponse wraps a listing
type StockListResponse struct {
	Count  int                      `json:"count"`
	Stocks []contracts.MetricRecord `json:"stocks"`
}

// ListStocks returns the snapshot, optionally filtered
// GET /api/stocks?decision=Strong%20Buy&sector=Energy&min_score=70&limit=20&sort=score
func (h *StockHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.Records()
	if err != nil {
		h.logger.WithError(err).Error("Failed to read snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to read snapshot")
		return
	}

	q := r.URL.Query()
	filter := selection.Filter{
		Decision: contracts.Decision(q.Get("decision")),
		Sector:   q.Get("sector"),
		MinScore: queryInt(r, "min_score", 0),
		Limit:    queryInt(r, "limit", 0),
	}

	var stocks []contracts.MetricRecord
	if q.Get("sort") == "score" {
		stocks = selection.Rank(records, filter)
	} else {
		stocks = filterInOrder(records, filter)
	}

	respondJSON(w, http.StatusOK, StockListResponse{Count: len(stocks), Stocks: stocks})
}

// GetStock returns one symbol's record
// GET /api/stocks/{symbol}
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])

	rec, ok, err := h.store.Get(symbol)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to read snapshot")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "symbol not found")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// ListSectors returns the sector rollups, largest first
// GET /api/sectors
func (h *StockHandler) ListSectors(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.Records()
	if err != nil {
		h.logger.WithError(err).Error("Failed to read snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to read snapshot")
		return
	}

	respondJSON(w, http.StatusOK, h.aggregator.Aggregate(records))
}

// filterInOrder applies f but keeps snapshot (symbol) order
func filterInOrder(records []contracts.MetricRecord, f selection.Filter) []contracts.MetricRecord {
	out := make([]contracts.MetricRecord, 0, len(records))
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
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}
