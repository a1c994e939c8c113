package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"radiation_exporter/internal/history"
	"radiation_exporter/internal/types"
)

type stubService struct {
	stations   []types.StationConfig
	latest     map[string]*types.Reading
	refreshErr error
}

func (s *stubService) Stations() []types.StationConfig {
	return s.stations
}

func (s *stubService) Latest(code string) (*types.Reading, bool) {
	r, ok := s.latest[code]
	return r, ok
}

func (s *stubService) ForceRefresh(_ context.Context, code string) (*types.Reading, error) {
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.latest[code], nil
}

type stubValidator struct{ ok bool }

func (v *stubValidator) ValidateStation(context.Context, string) (bool, error) {
	return v.ok, nil
}

type stubHistory struct {
	readings []history.StoredReading
	err      error
}

func (h *stubHistory) Readings(string, time.Time, time.Time, int) ([]history.StoredReading, error) {
	return h.readings, h.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(svc StationService, hist HistoryReader) *httptest.Server {
	return httptest.NewServer(NewRouter(svc, &stubValidator{ok: true}, hist, testLogger()))
}

func defaultService() *stubService {
	return &stubService{
		stations: []types.StationConfig{{Code: "DE1234", Name: "Freiburg", ScanInterval: time.Hour}},
		latest: map[string]*types.Reading{
			"DE1234": {
				Value:       0.09,
				RawValue:    45.2,
				Timestamp:   "2024-01-15T10:00:00Z",
				StationCode: "DE1234",
				Stamp:       500,
				Divisor:     501,
			},
		},
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(defaultService(), &stubHistory{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestListStations(t *testing.T) {
	srv := newTestServer(defaultService(), &stubHistory{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stations")
	if err != nil {
		t.Fatalf("GET /api/stations error = %v", err)
	}
	defer resp.Body.Close()

	var stations []types.StationConfig
	if err := json.NewDecoder(resp.Body).Decode(&stations); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stations) != 1 || stations[0].Code != "DE1234" {
		t.Errorf("stations = %+v, want one DE1234", stations)
	}
}

func TestGetReading(t *testing.T) {
	srv := newTestServer(defaultService(), &stubHistory{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stations/DE1234/reading")
	if err != nil {
		t.Fatalf("GET reading error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var reading types.Reading
	if err := json.NewDecoder(resp.Body).Decode(&reading); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reading.Value != 0.09 || reading.Stamp != 500 {
		t.Errorf("reading = %+v", reading)
	}
}

func TestGetReading_NotPrimed(t *testing.T) {
	svc := defaultService()
	delete(svc.latest, "DE1234")
	srv := newTestServer(svc, &stubHistory{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stations/DE1234/reading")
	if err != nil {
		t.Fatalf("GET reading error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before first successful refresh", resp.StatusCode)
	}
}

func TestForceRefresh(t *testing.T) {
	srv := newTestServer(defaultService(), &stubHistory{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/stations/DE1234/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST refresh error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestForceRefresh_Error(t *testing.T) {
	svc := defaultService()
	svc.refreshErr = errors.New("communicating with API: connection refused")
	srv := newTestServer(svc, &stubHistory{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/stations/DE1234/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST refresh error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestGetHistory(t *testing.T) {
	hist := &stubHistory{readings: []history.StoredReading{
		{Reading: types.Reading{Value: 0.09, StationCode: "DE1234"}, RecordedAt: time.Now()},
	}}
	srv := newTestServer(defaultService(), hist)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stations/DE1234/history?hours=6&limit=10")
	if err != nil {
		t.Fatalf("GET history error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got []history.StoredReading
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("rows = %d, want 1", len(got))
	}
}

func TestGetHistory_BadParams(t *testing.T) {
	srv := newTestServer(defaultService(), &stubHistory{})
	defer srv.Close()

	for _, q := range []string{"hours=0", "hours=abc", "limit=0", "limit=9999"} {
		resp, err := http.Get(srv.URL + "/api/stations/DE1234/history?" + q)
		if err != nil {
			t.Fatalf("GET history error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestValidateStation(t *testing.T) {
	srv := newTestServer(defaultService(), &stubHistory{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/validate/DE1234")
	if err != nil {
		t.Fatalf("GET validate error = %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["valid"] != true {
		t.Errorf("valid = %v, want true", body["valid"])
	}
}
