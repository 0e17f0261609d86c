package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/config"
	"github.com/wonny/sp500scope/backend/pkg/httputil"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// Client talks to the Yahoo Finance chart, quote and quoteSummary endpoints.
// It does not retry; the fetch orchestrator owns the retry policy.
type Client struct {
	httpClient   *httputil.Client
	logger       *logger.Logger
	chartURL     string
	quoteURL     string
	summaryURL   string
	historyRange string
	loc          *time.Location
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, cfg config.YahooConfig, log *logger.Logger) *Client {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}

	historyRange := cfg.HistoryRange
	if historyRange == "" {
		historyRange = "1y"
	}

	return &Client{
		httpClient:   httpClient,
		logger:       log.WithField("module", "yahoo"),
		chartURL:     strings.TrimRight(cfg.ChartURL, "/"),
		quoteURL:     cfg.QuoteURL,
		summaryURL:   strings.TrimRight(cfg.SummaryURL, "/"),
		historyRange: historyRange,
		loc:          loc,
	}
}

// FetchHistory returns daily closes and volumes over the configured range
func (c *Client) FetchHistory(ctx context.Context, symbol string) (*History, error) {
	params := url.Values{}
	params.Set("range", c.historyRange)
	params.Set("interval", "1d")
	params.Set("includePrePost", "false")
	fullURL := fmt.Sprintf("%s/%s?%s", c.chartURL, url.PathEscape(symbol), params.Encode())

	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, classify("chart", symbol, err, true)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s: %w", symbol, resp.Chart.Error.Description, contracts.ErrInsufficientHistory)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart %s: empty result: %w", symbol, contracts.ErrInsufficientHistory)
	}

	quote := resp.Chart.Result[0].Indicators.Quote[0]
	history := &History{Symbol: symbol}

	for i, px := range quote.Close {
		if px == nil || math.IsNaN(*px) || *px <= 0 {
			continue
		}
		history.Closes = append(history.Closes, *px)

		// a missing volume restarts the series so it stays aligned with the tail of Closes
		if i >= len(quote.Volume) || quote.Volume[i] == nil {
			history.Volumes = history.Volumes[:0]
			continue
		}
		history.Volumes = append(history.Volumes, *quote.Volume[i])
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(history.Closes),
	}).Debug("Fetched price history")

	return history, nil
}

// FetchFundamentals returns market cap, trailing P/E and the next earnings date.
// The earnings date prefers the quote's explicit timestamps and falls back to
// the quoteSummary calendar; a calendar failure only leaves the date empty.
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	quote, err := c.fetchQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	f := &contracts.Fundamentals{}
	if quote.MarketCap != nil && *quote.MarketCap > 0 {
		f.MarketCap = contracts.Float(*quote.MarketCap)
	}
	if quote.TrailingPE != nil && !math.IsNaN(*quote.TrailingPE) && !math.IsInf(*quote.TrailingPE, 0) {
		f.PERatio = contracts.Float(contracts.Round2(*quote.TrailingPE))
	}

	var calendar []rawValue
	if quote.EarningsTimestamp == nil && quote.EarningsTimestampStart == nil {
		calendar, err = c.fetchEarningsCalendar(ctx, symbol)
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			}).Debug("Earnings calendar unavailable")
		}
	}
	f.EarningsDate = pickEarningsDate(quote, calendar, c.loc)

	return f, nil
}

func (c *Client) fetchQuote(ctx context.Context, symbol string) (*quoteResult, error) {
	fullURL := fmt.Sprintf("%s?symbols=%s", c.quoteURL, url.QueryEscape(symbol))

	var resp quoteResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, classify("quote", symbol, err, false)
	}

	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote %s: %s", symbol, resp.QuoteResponse.Error.Description)
	}
	for i := range resp.QuoteResponse.Result {
		if strings.EqualFold(resp.QuoteResponse.Result[i].Symbol, symbol) {
			return &resp.QuoteResponse.Result[i], nil
		}
	}
	return nil, fmt.Errorf("quote %s: no result", symbol)
}

func (c *Client) fetchEarningsCalendar(ctx context.Context, symbol string) ([]rawValue, error) {
	fullURL := fmt.Sprintf("%s/%s?modules=calendarEvents", c.summaryURL, url.PathEscape(symbol))

	var resp summaryResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, classify("quoteSummary", symbol, err, false)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("quoteSummary %s: no result", symbol)
	}
	return resp.QuoteSummary.Result[0].CalendarEvents.Earnings.EarningsDate, nil
}

// pickEarningsDate applies the candidate priority:
// earningsTimestamp, earningsTimestampStart, then the first calendar entry.
func pickEarningsDate(q *quoteResult, calendar []rawValue, loc *time.Location) *string {
	var candidates []int64
	if q != nil {
		if q.EarningsTimestamp != nil {
			candidates = append(candidates, *q.EarningsTimestamp)
		}
		if q.EarningsTimestampStart != nil {
			candidates = append(candidates, *q.EarningsTimestampStart)
		}
	}
	for _, v := range calendar {
		candidates = append(candidates, v.Raw)
	}

	for _, ts := range candidates {
		if ts <= 0 {
			continue
		}
		return contracts.String(contracts.DateOf(time.Unix(ts, 0).In(loc)))
	}
	return nil
}

// classify maps transport failures onto the fetch error taxonomy.
// For chart requests a 404 means the symbol has no history.
func classify(endpoint, symbol string, err error, history bool) error {
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Retryable():
			return fmt.Errorf("%s %s: %w: %w", endpoint, symbol, contracts.ErrSourceUnavailable, err)
		case history && statusErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s %s: %w: %w", endpoint, symbol, contracts.ErrInsufficientHistory, err)
		default:
			return fmt.Errorf("%s %s: %w", endpoint, symbol, err)
		}
	}
	return fmt.Errorf("%s %s: %w: %w", endpoint, symbol, contracts.ErrSourceUnavailable, err)
}
