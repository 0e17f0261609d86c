package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sp500scope/backend/internal/api"
	"github.com/wonny/sp500scope/backend/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the REST API server.

Endpoints:
  GET       /health               - Health check
  POST|GET  /api/refresh          - Trigger a refresh (?force=true)
  GET       /api/refresh/status   - Refresh state
  GET       /api/stocks           - Snapshot (?decision= &sector= &min_score= &limit= &sort=score)
  GET       /api/stocks/{symbol}  - One record
  GET       /api/sectors          - Sector summaries
  GET       /ws/refresh           - Refresh state stream
  GET       /metrics              - Prometheus metrics

Example:
  go run ./cmd/sp500scope api
  go run ./cmd/sp500scope api --port 9090 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default $PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "also run the scheduled refresh")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := handlers.NewStatusHub(a.coordinator.Status, a.log)
	a.coordinator.OnStateChange(hub.Publish)
	go hub.Run(ctx)

	routes := api.Routes{
		Refresh: handlers.NewRefreshHandler(a.coordinator, a.log),
		Stocks:  handlers.NewStockHandler(a.store, a.aggregator, a.log),
		Hub:     hub,
	}
	if a.metrics != nil {
		routes.Metrics = a.metrics.Handler()
	}

	server := api.New(a.cfg, a.log, api.NewRouter(routes, a.log))

	if apiWithScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		a.log.WithField("jobs", sched.GetAllJobs()).Info("Scheduler started")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	PrintSuccess(fmt.Sprintf("Server running on http://localhost:%s", a.cfg.Port))
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-quit:
	}

	a.log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
