package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sp500scope/backend/internal/contracts"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [symbol]",
	Short: "Fetch and print one symbol without saving",
	Long: `Fetch prices and fundamentals for a single symbol and print the
computed metrics and score. The snapshot is not modified.

Example:
  go run ./cmd/sp500scope fetch AAPL
  go run ./cmd/sp500scope fetch BRK.B`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	symbol := contracts.NormalizeSymbol(args[0])
	meta := contracts.SymbolMeta{Symbol: symbol, Sector: contracts.UnknownSector}
	if cached, ok, err := a.store.Get(symbol); err == nil && ok {
		meta.Name, meta.Sector, meta.Industry = cached.Name, cached.Sector, cached.Industry
	}

	rec, err := a.builder.Fetch(ctx, meta)
	switch {
	case errors.Is(err, contracts.ErrPartialData):
		PrintWarning(err.Error())
	case err != nil:
		return fmt.Errorf("fetch %s: %w", symbol, err)
	}

	// score against the saved snapshot's sector medians
	records, err := a.store.Records()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	res, err := a.engine.Score(rec, a.aggregator.Medians(records), a.now())
	if err != nil {
		PrintWarning(err.Error())
	}

	PrintHeader(symbol)
	PrintKeyValue("Name", rec.Name, 16)
	PrintKeyValue("Sector", rec.Sector, 16)
	PrintKeyValue("Price", fmt.Sprintf("%.2f", rec.Price), 16)
	PrintKeyValue("MA50", fmt.Sprintf("%.2f", rec.MA50), 16)
	PrintKeyValue("MA200", formatFloat(rec.MA200, 2), 16)
	PrintKeyValue("Trend strength", formatFloat(rec.TrendStrength, 2), 16)
	PrintKeyValue("Return 1D %", formatFloat(rec.Return1D, 2), 16)
	PrintKeyValue("Return 5D %", formatFloat(rec.Return5D, 2), 16)
	PrintKeyValue("Return 1M %", formatFloat(rec.Return1M, 2), 16)
	PrintKeyValue("Return 6M %", formatFloat(rec.Return6M, 2), 16)
	PrintKeyValue("Volatility 6M %", formatFloat(rec.Volatility6M, 2), 16)
	PrintKeyValue("Vol chg 5D %", formatFloat(rec.VolumeChange5D, 2), 16)
	PrintKeyValue("P/E", formatFloat(rec.PERatio, 2), 16)
	PrintKeyValue("Market cap", formatFloat(rec.MarketCap, 0), 16)
	earnings := "-"
	if rec.EarningsDate != nil {
		earnings = *rec.EarningsDate
	}
	PrintKeyValue("Earnings", earnings, 16)
	PrintSeparator()
	PrintKeyValue("Score", fmt.Sprintf("%d (trend %d, momentum %d, volume %d, risk %d)",
		res.Score, res.Breakdown.Trend, res.Breakdown.Momentum, res.Breakdown.Volume, res.Breakdown.Risk), 16)
	PrintKeyValue("Decision", fmt.Sprintf("%s [%s]", res.Decision, res.Gate), 16)
	return nil
}
