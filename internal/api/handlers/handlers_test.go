package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/sector"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

type stubCoordinator struct {
	status contracts.StartStatus
	err    error
	force  bool
	state  contracts.RefreshState
}

func (s *stubCoordinator) Start(ctx context.Context, force bool) (contracts.StartStatus, error) {
	s.force = force
	return s.status, s.err
}

func (s *stubCoordinator) Status() contracts.RefreshState { return s.state }

type memReader struct {
	records []contracts.MetricRecord
	err     error
}

func (m *memReader) Records() ([]contracts.MetricRecord, error) { return m.records, m.err }

func (m *memReader) Get(symbol string) (contracts.MetricRecord, bool, error) {
	if m.err != nil {
		return contracts.MetricRecord{}, false, m.err
	}
	for _, r := range m.records {
		if r.Symbol == symbol {
			return r, true, nil
		}
	}
	return contracts.MetricRecord{}, false, nil
}

func sampleRecords() []contracts.MetricRecord {
	return []contracts.MetricRecord{
		{Symbol: "AAPL", Sector: "Information Technology", Score: 72, Decision: contracts.DecisionBuySmall, MarketCap: contracts.Float(3e12), PERatio: contracts.Float(30)},
		{Symbol: "BRK-B", Sector: "Financials", Score: 40, Decision: contracts.DecisionSell, MarketCap: contracts.Float(9e11), PERatio: contracts.Float(10)},
		{Symbol: "MSFT", Sector: "Information Technology", Score: 85, Decision: contracts.DecisionStrongBuy, MarketCap: contracts.Float(3.2e12), PERatio: contracts.Float(35)},
		{Symbol: "XOM", Sector: "Energy", Score: 60, Decision: contracts.DecisionReduce, MarketCap: contracts.Float(4e11), PERatio: contracts.Float(12)},
	}
}

func TestRefreshTrigger(t *testing.T) {
	tests := []struct {
		name     string
		status   contracts.StartStatus
		err      error
		query    string
		wantCode int
		wantBody string
		wantForc bool
	}{
		{"started", contracts.StatusStarted, nil, "", http.StatusAccepted, "started", false},
		{"forced", contracts.StatusStarted, nil, "?force=true", http.StatusAccepted, "started", true},
		{"already current", contracts.StatusAlreadyCurrent, nil, "", http.StatusOK, "already-current", false},
		{"already running", "", contracts.ErrAlreadyRunning, "", http.StatusConflict, "already-running", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &stubCoordinator{status: tt.status, err: tt.err}
			h := NewRefreshHandler(coord, logger.Nop())

			rec := httptest.NewRecorder()
			h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/refresh"+tt.query, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body RefreshResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, contracts.StartStatus(tt.wantBody), body.Status)
			assert.Equal(t, tt.wantForc, coord.force)
		})
	}
}

func TestRefreshTrigger_UnexpectedError(t *testing.T) {
	h := NewRefreshHandler(&stubCoordinator{err: errors.New("boom")}, logger.Nop())

	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRefreshStatus(t *testing.T) {
	state := contracts.RefreshState{
		Running:  true,
		Phase:    contracts.PhaseFetchingPrices,
		Progress: contracts.Progress{Current: 3, Total: 10},
	}
	h := NewRefreshHandler(&stubCoordinator{state: state}, logger.Nop())

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/refresh/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got contracts.RefreshState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, state, got)
}

func newStockHandler(reader SnapshotReader) *StockHandler {
	return NewStockHandler(reader, sector.NewAggregator(logger.Nop()), logger.Nop())
}

func listSymbols(t *testing.T, h *StockHandler, query string) []string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ListStocks(rec, httptest.NewRequest(http.MethodGet, "/api/stocks"+query, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body StockListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, len(body.Stocks), body.Count)

	out := make([]string, 0, len(body.Stocks))
	for _, s := range body.Stocks {
		out = append(out, s.Symbol)
	}
	return out
}

func TestListStocks(t *testing.T) {
	h := newStockHandler(&memReader{records: sampleRecords()})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all in snapshot order", "", []string{"AAPL", "BRK-B", "MSFT", "XOM"}},
		{"by score", "?sort=score", []string{"MSFT", "AAPL", "XOM", "BRK-B"}},
		{"sector", "?sector=Information%20Technology", []string{"AAPL", "MSFT"}},
		{"decision", "?decision=Strong%20Buy", []string{"MSFT"}},
		{"min score", "?min_score=60&sort=score", []string{"MSFT", "AAPL", "XOM"}},
		{"limit", "?sort=score&limit=2", []string{"MSFT", "AAPL"}},
		{"bad limit ignored", "?limit=abc", []string{"AAPL", "BRK-B", "MSFT", "XOM"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, listSymbols(t, h, tt.query))
		})
	}
}

func TestListStocks_StoreError(t *testing.T) {
	h := newStockHandler(&memReader{err: errors.New("corrupt")})

	rec := httptest.NewRecorder()
	h.ListStocks(rec, httptest.NewRequest(http.MethodGet, "/api/stocks", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func getStock(h *StockHandler, symbol string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/stocks/"+symbol, nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": symbol})
	rec := httptest.NewRecorder()
	h.GetStock(rec, req)
	return rec
}

func TestGetStock(t *testing.T) {
	h := newStockHandler(&memReader{records: sampleRecords()})

	rec := getStock(h, "brk.b")
	require.Equal(t, http.StatusOK, rec.Code)

	var got contracts.MetricRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "BRK-B", got.Symbol)
	assert.Equal(t, contracts.DecisionSell, got.Decision)
}

func TestGetStock_NotFound(t *testing.T) {
	h := newStockHandler(&memReader{records: sampleRecords()})

	rec := getStock(h, "ZZZZ")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "symbol not found")
}

func TestListSectors(t *testing.T) {
	h := newStockHandler(&memReader{records: sampleRecords()})

	rec := httptest.NewRecorder()
	h.ListSectors(rec, httptest.NewRequest(http.MethodGet, "/api/sectors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []contracts.SectorSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "Information Technology", got[0].Sector)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "Financials", got[1].Sector)
	assert.Equal(t, "Energy", got[2].Sector)
}
