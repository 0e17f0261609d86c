package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sp500scope/backend/internal/api/handlers"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// Routes bundles everything the router mounts
type Routes struct {
	Refresh *handlers.RefreshHandler
	Stocks  *handlers.StockHandler
	Hub     *handlers.StatusHub // optional
	Metrics http.Handler        // optional
}

// NewRouter creates and configures the HTTP router
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics).Methods("GET")
	}
	if routes.Hub != nil {
		r.HandleFunc("/ws/refresh", routes.Hub.ServeWS).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Refresh
	api.HandleFunc("/refresh", routes.Refresh.Trigger).Methods("POST", "GET")
	api.HandleFunc("/refresh/status", routes.Refresh.GetStatus).Methods("GET")

	// Snapshot queries
	api.HandleFunc("/stocks", routes.Stocks.ListStocks).Methods("GET")
	api.HandleFunc("/stocks/{symbol}", routes.Stocks.GetStock).Methods("GET")
	api.HandleFunc("/sectors", routes.Stocks.ListSectors).Methods("GET")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "sp500scope-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
