// Package httpapi exposes the REST surface: station listing, latest
// readings, history queries, manual refresh and station-code validation.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"radiation_exporter/internal/history"
	"radiation_exporter/internal/types"
)

// StationService is the slice of the scheduler the API needs.
type StationService interface {
	Stations() []types.StationConfig
	Latest(code string) (*types.Reading, bool)
	ForceRefresh(ctx context.Context, code string) (*types.Reading, error)
}

// Validator sanity-checks a station code against the remote API.
type Validator interface {
	ValidateStation(ctx context.Context, code string) (bool, error)
}

// HistoryReader queries persisted readings.
type HistoryReader interface {
	Readings(stationCode string, from, to time.Time, limit int) ([]history.StoredReading, error)
}

// NewRouter builds the HTTP handler tree with request logging.
func NewRouter(svc StationService, validator Validator, hist HistoryReader, logger *slog.Logger) http.Handler {
	h := &apiHandlers{svc: svc, validator: validator, hist: hist, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stations", h.listStations).Methods("GET")
	api.HandleFunc("/stations/{code}/reading", h.getReading).Methods("GET")
	api.HandleFunc("/stations/{code}/history", h.getHistory).Methods("GET")
	api.HandleFunc("/stations/{code}/refresh", h.forceRefresh).Methods("POST")
	api.HandleFunc("/validate/{code}", h.validateStation).Methods("GET")

	return handlers.LoggingHandler(os.Stdout, r)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
