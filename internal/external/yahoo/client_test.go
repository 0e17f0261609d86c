package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/config"
	"github.com/wonny/sp500scope/backend/pkg/httputil"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.YahooConfig{
		ChartURL:     server.URL + "/v8/finance/chart",
		QuoteURL:     server.URL + "/v7/finance/quote",
		SummaryURL:   server.URL + "/v10/finance/quoteSummary",
		Timeout:      5 * time.Second,
		HistoryRange: "1y",
	}
	httpClient := httputil.New(&config.Config{Yahoo: cfg}, logger.Nop()).DisableRetry()
	return NewClient(httpClient, cfg, logger.Nop())
}

func TestFetchHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/BRK-B", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"symbol":"BRK-B"},
			"timestamp":[1,2,3,4],
			"indicators":{"quote":[{"close":[10.5,null,11.0,12.25],"volume":[100,200,null,400]}]}}],"error":null}}`)
	})

	history, err := client.FetchHistory(context.Background(), "BRK-B")
	require.NoError(t, err)

	assert.Equal(t, []float64{10.5, 11.0, 12.25}, history.Closes)
	assert.Equal(t, []float64{400}, history.Volumes)
}

func TestFetchHistory_VolumesAlignWithLatestClose(t *testing.T) {
	tests := []struct {
		name    string
		closes  string
		volumes string
		want    []float64
	}{
		{"all present", "[1,2,3]", "[10,20,30]", []float64{10, 20, 30}},
		{"gap mid series", "[1,2,3,4]", "[10,null,30,40]", []float64{30, 40}},
		{"latest missing", "[1,2,3]", "[10,20,null]", []float64{}},
		{"short volume array", "[1,2,3]", "[10,20]", []float64{}},
		{"null close keeps run", "[1,null,3]", "[10,null,30]", []float64{10, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"chart":{"result":[{"indicators":{"quote":[{"close":%s,"volume":%s}]}}],"error":null}}`,
					tt.closes, tt.volumes)
			})

			history, err := client.FetchHistory(context.Background(), "AAPL")
			require.NoError(t, err)
			assert.Equal(t, tt.want, append([]float64{}, history.Volumes...))
		})
	}
}

func TestFetchHistory_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error is transient", http.StatusBadGateway, ``, contracts.ErrSourceUnavailable},
		{"throttled is transient", http.StatusTooManyRequests, ``, contracts.ErrSourceUnavailable},
		{"unknown symbol", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found"}}}`, contracts.ErrInsufficientHistory},
		{"chart error payload", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, contracts.ErrInsufficientHistory},
		{"garbled payload", http.StatusOK, `{"chart":`, contracts.ErrSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := client.FetchHistory(context.Background(), "ZZZZ")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestFetchFundamentals_QuoteTimestamps(t *testing.T) {
	summaryCalls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v7/finance/quote"):
			assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
			// 2026-10-29 20:30 UTC is 16:30 in New York
			fmt.Fprint(w, `{"quoteResponse":{"result":[{"symbol":"AAPL","marketCap":3.5e12,"trailingPE":31.456,
				"earningsTimestamp":1793305800,"earningsTimestampStart":1793000000}],"error":null}}`)
		default:
			summaryCalls++
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	f, err := client.FetchFundamentals(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 3.5e12, *f.MarketCap)
	assert.Equal(t, 31.46, *f.PERatio)
	require.NotNil(t, f.EarningsDate)
	assert.Equal(t, "2026-10-29", *f.EarningsDate)
	assert.Equal(t, 0, summaryCalls, "calendar fallback should not be consulted")
}

func TestFetchFundamentals_CalendarFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v7/finance/quote"):
			fmt.Fprint(w, `{"quoteResponse":{"result":[{"symbol":"MMM","marketCap":6.1e10}],"error":null}}`)
		case strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/MMM"):
			assert.Equal(t, "calendarEvents", r.URL.Query().Get("modules"))
			fmt.Fprint(w, `{"quoteSummary":{"result":[{"calendarEvents":{"earnings":{"earningsDate":[{"raw":1793305800,"fmt":"2026-10-29"}]}}}],"error":null}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f, err := client.FetchFundamentals(context.Background(), "MMM")
	require.NoError(t, err)

	assert.Nil(t, f.PERatio)
	require.NotNil(t, f.EarningsDate)
	assert.Equal(t, "2026-10-29", *f.EarningsDate)
}

func TestFetchFundamentals_QuoteFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FetchFundamentals(context.Background(), "MMM")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrSourceUnavailable))
}

func TestPickEarningsDate(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ts := func(v int64) *int64 { return &v }
	start := time.Date(2026, 11, 3, 12, 0, 0, 0, loc).Unix()
	primary := time.Date(2026, 11, 5, 16, 30, 0, 0, loc).Unix()
	calendar := []rawValue{{Raw: time.Date(2026, 11, 9, 9, 0, 0, 0, loc).Unix()}}

	tests := []struct {
		name     string
		quote    *quoteResult
		calendar []rawValue
		want     string
	}{
		{"explicit timestamp first", &quoteResult{EarningsTimestamp: ts(primary), EarningsTimestampStart: ts(start)}, calendar, "2026-11-05"},
		{"start timestamp second", &quoteResult{EarningsTimestampStart: ts(start)}, calendar, "2026-11-03"},
		{"calendar last", &quoteResult{}, calendar, "2026-11-09"},
		{"nothing", &quoteResult{}, nil, ""},
		{"zero timestamps ignored", &quoteResult{EarningsTimestamp: ts(0)}, calendar, "2026-11-09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickEarningsDate(tt.quote, tt.calendar, loc)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}
