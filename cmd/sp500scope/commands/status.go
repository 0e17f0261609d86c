package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/selection"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the saved snapshot",
	RunE:  runStatus,
}

var sectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "Print sector summaries, largest first",
	RunE:  runSectors,
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the highest-scoring symbols",
	Long: `List snapshot records by score, highest first.

Example:
  go run ./cmd/sp500scope top --limit 20
  go run ./cmd/sp500scope top --decision "Strong Buy"`,
	RunE: runTop,
}

var (
	topLimit    int
	topDecision string
	topSector   string
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sectorsCmd)
	rootCmd.AddCommand(topCmd)

	topCmd.Flags().IntVar(&topLimit, "limit", 20, "rows to print")
	topCmd.Flags().StringVar(&topDecision, "decision", "", "only this decision")
	topCmd.Flags().StringVar(&topSector, "sector", "", "only this sector")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.store.Records()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	latest, err := a.store.LatestUpdate()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if latest == "" {
		latest = "never"
	}

	PrintHeader("Snapshot Status")
	PrintKeyValue("Path", a.store.Path(), 14)
	PrintKeyValue("Records", fmt.Sprintf("%d", len(records)), 14)
	PrintKeyValue("Last update", latest, 14)
	PrintSeparator()
	PrintDecisions(selection.CountDecisions(records))
	return nil
}

func runSectors(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.store.Records()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	columns := []string{"Sector", "Count", "Market Cap", "Wtd P/E", "1D %", "5D %", "1M %", "6M %"}
	widths := []int{26, 5, 11, 8, 7, 7, 7, 7}

	PrintHeader("Sectors")
	PrintTableHeader(columns, widths)
	for _, s := range a.aggregator.Aggregate(records) {
		PrintTableRow([]string{
			s.Sector,
			fmt.Sprintf("%d", s.Count),
			formatCap(s.TotalMarketCap),
			formatFloat(s.WeightedPE, 2),
			formatFloat(s.AvgReturn1D, 2),
			formatFloat(s.AvgReturn5D, 2),
			formatFloat(s.AvgReturn1M, 2),
			formatFloat(s.AvgReturn6M, 2),
		}, widths)
	}
	return nil
}

func runTop(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.store.Records()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	ranked := selection.Rank(records, selection.Filter{
		Decision: contracts.Decision(topDecision),
		Sector:   topSector,
		Limit:    topLimit,
	})

	columns := []string{"Symbol", "Score", "Decision", "Price", "6M %", "Sector"}
	widths := []int{7, 5, 28, 9, 8, 26}

	PrintHeader("Top Symbols")
	PrintTableHeader(columns, widths)
	for _, r := range ranked {
		PrintTableRow([]string{
			r.Symbol,
			fmt.Sprintf("%d", r.Score),
			string(r.Decision),
			fmt.Sprintf("%.2f", r.Price),
			formatFloat(r.Return6M, 1),
			r.Sector,
		}, widths)
	}
	return nil
}
