// Package coordinator implements the per-station update coordinator: the
// scheduled fetch/parse/retry/fallback logic behind every published reading.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"radiation_exporter/internal/remap"
	"radiation_exporter/internal/types"
)

const (
	// queryWindow is how far back each refresh looks for samples. Stations
	// can lag by days, so the window is generous.
	queryWindow = 72 * time.Hour

	// maxAttempts bounds the retry loop for transient failures.
	maxAttempts = 3

	// defaultRetryWait is the fixed pause between attempts.
	defaultRetryWait = 2 * time.Second

	// noDataStatus marks the synthetic placeholder reading.
	noDataStatus = "No data available"
)

// ErrMissingValue indicates the most recent sample lacked the required value
// field. Shape errors are not retried.
var ErrMissingValue = errors.New("sample missing value field")

// Fetcher retrieves a time-series slice for a station. *remap.Client is the
// production implementation.
type Fetcher interface {
	FetchTimeseries(ctx context.Context, code string, stamp int, window time.Duration) ([]remap.Sample, error)
}

// Coordinator fetches, de-scales and caches the latest reading for one
// station. Failures never surface once a prior successful reading exists:
// staleness masks them (availability over freshness).
type Coordinator struct {
	station   types.StationConfig
	obf       types.Obfuscation
	fetcher   Fetcher
	logger    *slog.Logger
	retryWait time.Duration

	// refreshMu serializes fetches; mu guards last and is held only for
	// reads and replacements, so readers never wait on an in-flight fetch.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	last      *types.Reading
}

// New creates a coordinator for a station. The obfuscation parameters are
// fixed for the coordinator's lifetime.
func New(station types.StationConfig, obf types.Obfuscation, fetcher Fetcher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		station:   station,
		obf:       obf,
		fetcher:   fetcher,
		logger:    logger.With("station", station.Code),
		retryWait: defaultRetryWait,
	}
}

// Station returns the station configuration.
func (c *Coordinator) Station() types.StationConfig {
	return c.station
}

// Obfuscation returns the fixed stamp/divisor pair.
func (c *Coordinator) Obfuscation() types.Obfuscation {
	return c.obf
}

// Latest returns the most recent reading, or nil before the first successful
// refresh. Readings are replaced wholesale, never mutated, so the returned
// pointer is safe to share.
func (c *Coordinator) Latest() *types.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Coordinator) setLast(reading *types.Reading) {
	c.mu.Lock()
	c.last = reading
	c.mu.Unlock()
}

// Refresh fetches the latest sample and returns the resulting reading. The
// refresh mutex serializes a manually triggered refresh racing the scheduled
// one; readers of Latest are never blocked by an in-flight fetch.
//
// Transport failures and non-2xx statuses are transient: retried up to the
// attempt budget with a fixed wait between attempts, except that a non-2xx
// with a prior reading is masked immediately without consuming the budget.
// Decode failures and shape errors are not retried. Every failure falls back
// to the previous reading when one exists; only a first-ever refresh can
// surface an error.
func (c *Coordinator) Refresh(ctx context.Context) (*types.Reading, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	for attempt := 1; ; attempt++ {
		reading, err := c.fetchOnce(ctx)
		if err == nil {
			c.setLast(reading)
			return reading, nil
		}

		last := c.Latest()

		var statusErr *remap.StatusError
		var decodeErr *remap.DecodeError
		switch {
		case errors.As(err, &decodeErr):
			if last != nil {
				c.logger.Warn("Undecodable response, keeping stale reading", "error", err)
				return last, nil
			}
			return nil, fmt.Errorf("parsing response: %w", err)

		case errors.Is(err, ErrMissingValue):
			if last != nil {
				c.logger.Warn("Malformed sample, keeping stale reading")
				return last, nil
			}
			return nil, fmt.Errorf("invalid data format: %w", err)

		case ctx.Err() != nil:
			if last != nil {
				return last, nil
			}
			return nil, ctx.Err()

		default:
			// Transport, non-2xx or any otherwise-unhandled failure:
			// transient. Stale data masks a non-2xx without costing an
			// attempt; without it the full budget applies before surfacing.
			isStatus := errors.As(err, &statusErr)
			if isStatus && last != nil {
				c.logger.Warn("API error, keeping stale reading", "status", statusErr.Code)
				return last, nil
			}
			if attempt >= maxAttempts {
				if last != nil {
					c.logger.Warn("Retries exhausted, keeping stale reading", "error", err)
					return last, nil
				}
				if isStatus {
					return nil, fmt.Errorf("fetching data: %w", err)
				}
				return nil, fmt.Errorf("communicating with API: %w", err)
			}
			c.logger.Warn("Transient error, retrying", "attempt", attempt, "max", maxAttempts, "error", err)
			select {
			case <-ctx.Done():
				if last != nil {
					return last, nil
				}
				return nil, ctx.Err()
			case <-time.After(c.retryWait):
			}
		}
	}
}

// fetchOnce performs a single fetch attempt and assembles the reading.
// Caller holds the refresh mutex.
func (c *Coordinator) fetchOnce(ctx context.Context) (*types.Reading, error) {
	samples, err := c.fetcher.FetchTimeseries(ctx, c.station.Code, c.obf.Stamp, queryWindow)
	if err != nil {
		return nil, err
	}

	if len(samples) == 0 {
		if last := c.Latest(); last != nil {
			c.logger.Warn("No data returned, keeping stale reading")
			return last, nil
		}
		c.logger.Warn("No data returned and no prior reading, publishing placeholder")
		return c.placeholder(), nil
	}

	// The last array element is the most recent sample.
	sample := samples[len(samples)-1]
	if sample.Value == nil {
		return nil, ErrMissingValue
	}

	raw := *sample.Value

	timestamp := sample.Date
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	returnedCode := sample.Code
	if returnedCode == "" {
		returnedCode = "unknown"
	}

	return &types.Reading{
		Value:        scale(raw, c.obf.Divisor),
		RawValue:     raw,
		Timestamp:    timestamp,
		StationCode:  c.station.Code,
		ReturnedCode: returnedCode,
		Stamp:        c.obf.Stamp,
		Divisor:      c.obf.Divisor,
	}, nil
}

// placeholder synthesizes the "no data" reading returned when the API has
// nothing for the station and no prior reading exists.
func (c *Coordinator) placeholder() *types.Reading {
	return &types.Reading{
		Value:        0,
		RawValue:     0,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		StationCode:  c.station.Code,
		ReturnedCode: "unknown",
		Stamp:        c.obf.Stamp,
		Divisor:      c.obf.Divisor,
		Status:       noDataStatus,
	}
}

// scale de-obfuscates a raw API value, rounded to 3 decimal digits.
func scale(raw float64, divisor int) float64 {
	return math.Round(raw/float64(divisor)*1000) / 1000
}
