package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sp500scope/backend/pkg/config"
	"github.com/wonny/sp500scope/backend/pkg/httputil"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

const samplePage = `
<html><body>
<table class="wikitable sortable" id="constituents">
<tbody>
<tr>
  <th>Symbol</th><th>Security</th><th>GICS Sector</th><th>GICS Sub-Industry</th><th>Headquarters Location</th>
</tr>
<tr>
  <td><a href="#">MMM</a></td><td>3M</td><td>Industrials</td><td>Industrial Conglomerates</td><td>Saint Paul, Minnesota</td>
</tr>
<tr>
  <td><a href="#">BRK.B</a></td><td>Berkshire Hathaway</td><td>Financials</td><td>Multi-Sector Holdings</td><td>Omaha, Nebraska</td>
</tr>
<tr>
  <td></td><td>Blank Symbol Inc</td><td>Energy</td><td>Oil &amp; Gas</td><td>Houston, Texas</td>
</tr>
<tr>
  <td>XYZ</td><td>Short Row Corp[3]</td>
</tr>
</tbody>
</table>
</body></html>`

func TestParseConstituents(t *testing.T) {
	rows, skipped, err := ParseConstituents(strings.NewReader(samplePage))
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, Constituent{
		Symbol:      "MMM",
		Security:    "3M",
		Sector:      "Industrials",
		SubIndustry: "Industrial Conglomerates",
	}, rows[0])

	// raw ticker is kept; normalization is the provider's job
	assert.Equal(t, "BRK.B", rows[1].Symbol)

	// short row keeps what it has, footnote stripped
	assert.Equal(t, "XYZ", rows[2].Symbol)
	assert.Equal(t, "Short Row Corp", rows[2].Security)
	assert.Equal(t, "", rows[2].Sector)
}

func TestParseConstituents_Errors(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no table", `<html><body><p>nothing</p></body></html>`},
		{"no symbol column", `<table class="wikitable"><tr><th>Ticker</th></tr><tr><td>A</td></tr></table>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseConstituents(strings.NewReader(tt.html))
			assert.Error(t, err)
		})
	}
}

func TestParseConstituents_FallsBackToFirstWikitable(t *testing.T) {
	html := `<table class="wikitable"><tr><th>Symbol</th><th>GICS Sector</th></tr><tr><td>AAPL</td><td>Information Technology</td></tr></table>`

	rows, _, err := ParseConstituents(strings.NewReader(html))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Information Technology", rows[0].Sector)
}

func TestClient_FetchConstituents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	cfg := &config.Config{Yahoo: config.YahooConfig{Timeout: 5 * time.Second}}
	httpClient := httputil.New(cfg, logger.Nop()).DisableRetry().WithHeader("User-Agent", "Mozilla/5.0")
	client := NewClient(httpClient, server.URL, logger.Nop())

	rows, err := client.FetchConstituents(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
