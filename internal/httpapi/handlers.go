package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"radiation_exporter/internal/history"
)

const (
	defaultHistoryHours = 24
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type apiHandlers struct {
	svc       StationService
	validator Validator
	hist      HistoryReader
	logger    *slog.Logger
}

func (h *apiHandlers) listStations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stations())
}

func (h *apiHandlers) getReading(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	reading, ok := h.svc.Latest(code)
	if !ok {
		writeError(w, http.StatusNotFound, "no reading available for station "+code)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (h *apiHandlers) getHistory(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	hours := defaultHistoryHours
	if s := r.URL.Query().Get("hours"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be in [1, 1000]")
			return
		}
		limit = n
	}

	to := time.Now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)

	readings, err := h.hist.Readings(code, from, to, limit)
	if err != nil {
		h.logger.Error("History query failed", "station", code, "error", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if readings == nil {
		readings = []history.StoredReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func (h *apiHandlers) forceRefresh(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	reading, err := h.svc.ForceRefresh(r.Context(), code)
	if err != nil {
		h.logger.Warn("Forced refresh failed", "station", code, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (h *apiHandlers) validateStation(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	ok, err := h.validator.ValidateStation(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"station_code": code,
		"valid":        ok,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
