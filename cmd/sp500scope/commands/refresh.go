package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sp500scope/backend/internal/contracts"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle",
	Long: `Resolve the universe, fetch every symbol not updated today, score the
snapshot and save it. Progress is checkpointed, so an interrupted run
resumes where it stopped.

Example:
  go run ./cmd/sp500scope refresh
  go run ./cmd/sp500scope refresh --force`,
	RunE: runRefresh,
}

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Re-score the saved snapshot without fetching",
	RunE:  runRescore,
}

var refreshForce bool

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(rescoreCmd)

	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "refetch symbols already updated today")
}

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	PrintHeader("Snapshot Refresh")
	PrintKeyValue("Snapshot", a.cfg.Snapshot.Path, 10)
	PrintKeyValue("Force", fmt.Sprintf("%t", refreshForce), 10)
	PrintSeparator()

	a.coordinator.OnStateChange(printProgress())

	result, err := a.coordinator.Run(ctx, refreshForce)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	if result.Status == contracts.StatusAlreadyCurrent {
		PrintInfo("Snapshot is already current for today; use --force to refetch")
		return nil
	}

	c := result.Collection
	PrintHeader("Summary")
	PrintKeyValue("Universe", fmt.Sprintf("%d", result.Universe), 16)
	PrintKeyValue("Records", fmt.Sprintf("%d", result.Records), 16)
	PrintKeyValue("Fetched", fmt.Sprintf("%d", c.Fetched), 16)
	PrintKeyValue("Reused", fmt.Sprintf("%d", c.Reused), 16)
	PrintKeyValue("Partial", fmt.Sprintf("%d", c.Partial), 16)
	PrintKeyValue("Cached fallback", fmt.Sprintf("%d", c.CachedFallback), 16)
	PrintKeyValue("Dropped", fmt.Sprintf("%d", len(c.Dropped)), 16)
	PrintKeyValue("Duration", result.Duration.Round(time.Millisecond).String(), 16)
	if len(c.Dropped) > 0 {
		PrintWarning("Dropped: " + strings.Join(c.Dropped, ", "))
	}

	PrintSeparator()
	PrintDecisions(result.Decisions)
	fmt.Println()
	PrintSuccess("Refresh complete")
	return nil
}

// printProgress renders state changes on one terminal line
func printProgress() func(contracts.RefreshState) {
	return func(s contracts.RefreshState) {
		if s.Progress.Total > 0 {
			fmt.Printf("\r[%s] %d/%d %-30s", s.Phase, s.Progress.Current, s.Progress.Total, s.Message)
			return
		}
		fmt.Printf("\r[%s] %-40s", s.Phase, s.Message)
	}
}

func runRescore(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	counts, err := a.coordinator.Rescore(ctx)
	if err != nil {
		return fmt.Errorf("rescore: %w", err)
	}

	PrintHeader("Rescore")
	PrintDecisions(counts)
	fmt.Println()
	PrintSuccess("Snapshot re-scored")
	return nil
}
