package wikipedia

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/sp500scope/backend/pkg/httputil"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// Column headers of the constituents table
const (
	colSymbol      = "Symbol"
	colSecurity    = "Security"
	colSector      = "GICS Sector"
	colSubIndustry = "GICS Sub-Industry"
)

var footnotePattern = regexp.MustCompile(`\[[^\]]*\]`)

// Constituent is one raw row of the listing table, untouched except for trimming
type Constituent struct {
	Symbol      string
	Security    string
	Sector      string
	SubIndustry string
}

// Client fetches the S&P 500 constituents page
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	url        string
}

// NewClient creates a new listing client
func NewClient(httpClient *httputil.Client, url string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "wikipedia"),
		url:        url,
	}
}

// FetchConstituents downloads and parses the listing
func (c *Client) FetchConstituents(ctx context.Context) ([]Constituent, error) {
	body, err := c.httpClient.GetBody(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	rows, skipped, err := ParseConstituents(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"rows":    len(rows),
		"skipped": skipped,
	}).Debug("Parsed constituents table")

	return rows, nil
}

// ParseConstituents reads the constituents table out of the page HTML.
// Rows without a symbol cell are skipped and counted; only a missing
// table or a missing Symbol column is an error.
func ParseConstituents(r io.Reader) ([]Constituent, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("parse listing html: %w", err)
	}

	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	if table.Length() == 0 {
		return nil, 0, fmt.Errorf("constituents table not found")
	}

	columns := make(map[string]int)
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		columns[cellText(th)] = i
	})

	symbolIdx, ok := columns[colSymbol]
	if !ok {
		return nil, 0, fmt.Errorf("constituents table has no %q column", colSymbol)
	}

	var rows []Constituent
	skipped := 0

	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return // header
		}

		symbol := cellAt(cells, symbolIdx, true)
		if symbol == "" {
			skipped++
			return
		}

		rows = append(rows, Constituent{
			Symbol:      symbol,
			Security:    cellAt(cells, lookup(columns, colSecurity), false),
			Sector:      cellAt(cells, lookup(columns, colSector), false),
			SubIndustry: cellAt(cells, lookup(columns, colSubIndustry), false),
		})
	})

	return rows, skipped, nil
}

func lookup(columns map[string]int, name string) int {
	if idx, ok := columns[name]; ok {
		return idx
	}
	return -1
}

func cellAt(cells *goquery.Selection, idx int, required bool) string {
	if idx < 0 || idx >= cells.Length() {
		return ""
	}
	text := cellText(cells.Eq(idx))
	if required && strings.ContainsAny(text, " \t") {
		// a symbol cell never contains whitespace; treat it as a malformed row
		return ""
	}
	return text
}

func cellText(s *goquery.Selection) string {
	text := footnotePattern.ReplaceAllString(s.Text(), "")
	return strings.TrimSpace(text)
}
