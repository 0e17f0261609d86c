package yahoo

// chartResponse is the v8 chart payload, trimmed to what history needs
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Timezone string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

// quoteResponse is the v7 quote payload
type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol                 string   `json:"symbol"`
	MarketCap              *float64 `json:"marketCap"`
	TrailingPE             *float64 `json:"trailingPE"`
	EarningsTimestamp      *int64   `json:"earningsTimestamp"`
	EarningsTimestampStart *int64   `json:"earningsTimestampStart"`
}

// summaryResponse is the v10 quoteSummary payload for the calendarEvents module
type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			CalendarEvents struct {
				Earnings struct {
					EarningsDate []rawValue `json:"earningsDate"`
				} `json:"earnings"`
			} `json:"calendarEvents"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

type rawValue struct {
	Raw int64  `json:"raw"`
	Fmt string `json:"fmt"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// History is a symbol's daily closes and volumes, oldest first.
// Bars with a null close are dropped. Volumes is the trailing run of kept bars
// that carry a volume, so Volumes[len-1] is always the latest close's volume.
type History struct {
	Symbol  string
	Closes  []float64
	Volumes []float64
}
