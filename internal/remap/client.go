// Package remap provides a client for the EU REMAP radiation-monitoring API.
package remap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/text/encoding/charmap"
)

const defaultBaseURL = "https://remap.jrc.ec.europa.eu/api/timeseries/v1"

// timestampLayout is the compact UTC format the timeseries endpoint expects
// in its path segments.
const timestampLayout = "20060102150405"

// validationWindow is the shortened query window used when sanity-checking
// a station code at configuration time.
const validationWindow = time.Hour

// Client handles HTTP requests to the REMAP timeseries API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new REMAP API client. An empty baseURL selects the
// public endpoint; tests point it at a local server.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// FetchTimeseries retrieves the samples for a station over the given window
// ending now. The stamp is sent as a request header; the API uses it to pick
// the scaling regime applied to the returned values.
//
// Error kinds: transport failures come back wrapped (retryable), non-2xx
// statuses as *StatusError, undecodable bodies as *DecodeError.
func (c *Client) FetchTimeseries(ctx context.Context, code string, stamp int, window time.Duration) ([]Sample, error) {
	now := time.Now().UTC()
	start := now.Add(-window)

	reqURL := fmt.Sprintf("%s/stations/timeseries/%s/%s?codes=%s",
		c.baseURL,
		start.Format(timestampLayout),
		now.Format(timestampLayout),
		url.QueryEscape(code),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("stamp", strconv.Itoa(stamp))
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("REMAP request", "station", code, "window", window)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Non-2xx status from REMAP", "station", code, "status", resp.StatusCode)
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 200)}
	}

	samples, err := decodeSamples(data)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("REMAP response", "station", code, "samples", len(samples))

	return samples, nil
}

// decodeSamples decodes the response body, retrying once with a permissive
// Latin-1 re-decode when the body is not valid UTF-8 JSON. The API is known
// to emit station names in legacy encodings.
func decodeSamples(data []byte) ([]Sample, error) {
	var samples []Sample
	err := json.Unmarshal(data, &samples)
	if err == nil {
		return samples, nil
	}

	redecoded, encErr := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if encErr == nil {
		var retried []Sample
		if err2 := json.Unmarshal(redecoded, &retried); err2 == nil {
			return retried, nil
		}
	}

	return nil, &DecodeError{Err: err}
}

// ValidateStation performs one shortened-window fetch with a fresh random
// stamp to sanity-check reachability of a station code. It is deliberately
// lenient: the API's behavior for unknown vs. known codes is not reliably
// distinguishable, so any response from the server counts as accepted. Only
// a request that cannot be issued at all is rejected.
func (c *Client) ValidateStation(ctx context.Context, code string) (bool, error) {
	stamp := 20 + rand.Intn(980)

	samples, err := c.FetchTimeseries(ctx, code, stamp, validationWindow)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Errors, empty bodies and malformed JSON all still mean the code
		// may be valid; the station might just have no recent data.
		c.logger.Warn("Station validation got an error, accepting anyway", "station", code, "error", err)
		return true, nil
	}

	if len(samples) == 0 {
		c.logger.Warn("No data for station during validation, accepting anyway", "station", code)
	}

	return true, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
