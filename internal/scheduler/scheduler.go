// Package scheduler drives periodic refreshes for every configured station
// and fans successful readings out to sinks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"radiation_exporter/internal/coordinator"
	"radiation_exporter/internal/types"
)

// Sink receives each new reading after a successful refresh. Sink errors are
// logged and never fail the refresh.
type Sink interface {
	Publish(ctx context.Context, reading *types.Reading) error
	Name() string
}

// Observer records refresh outcomes, typically for metrics.
type Observer interface {
	ObserveRefresh(code string, duration time.Duration, err error)
}

// Runner owns one coordinator per configured station and schedules their
// refreshes. There is no ambient registry: whoever needs a coordinator gets
// it from here.
type Runner struct {
	coordinators map[string]*coordinator.Coordinator
	order        []string
	sinks        []Sink
	observer     Observer
	logger       *slog.Logger

	wg sync.WaitGroup

	mu            sync.Mutex
	lastPublished map[string]*types.Reading
}

// NewRunner creates a runner over the given coordinators. observer may be nil.
func NewRunner(coordinators []*coordinator.Coordinator, sinks []Sink, observer Observer, logger *slog.Logger) *Runner {
	r := &Runner{
		coordinators:  make(map[string]*coordinator.Coordinator, len(coordinators)),
		sinks:         sinks,
		observer:      observer,
		logger:        logger,
		lastPublished: make(map[string]*types.Reading),
	}
	for _, c := range coordinators {
		code := c.Station().Code
		r.coordinators[code] = c
		r.order = append(r.order, code)
	}
	return r
}

// Start launches one refresh loop per station. Each loop performs an initial
// refresh immediately, then ticks at the station's scan interval until the
// context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for _, code := range r.order {
		c := r.coordinators[code]
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.runStation(ctx, c)
		}()
	}
}

// Wait blocks until all station loops have stopped.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) runStation(ctx context.Context, c *coordinator.Coordinator) {
	station := c.Station()
	r.logger.Info("Starting station refresh loop",
		"station", station.Code, "interval", station.ScanInterval)

	// Initial refresh. A failure here is the host's "integration not ready"
	// signal; the next tick is the retry.
	if _, err := r.refreshAndPublish(ctx, c); err != nil {
		r.logger.Error("Initial refresh failed, will retry on schedule",
			"station", station.Code, "error", err)
	}

	ticker := time.NewTicker(station.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping station refresh loop", "station", station.Code)
			return
		case <-ticker.C:
			if _, err := r.refreshAndPublish(ctx, c); err != nil {
				r.logger.Error("Scheduled refresh failed", "station", station.Code, "error", err)
			}
		}
	}
}

// ForceRefresh triggers an immediate out-of-band refresh for a station,
// independent of its timer. The coordinator's own lock prevents it from
// overlapping a scheduled refresh.
func (r *Runner) ForceRefresh(ctx context.Context, code string) (*types.Reading, error) {
	c, ok := r.coordinators[code]
	if !ok {
		return nil, fmt.Errorf("unknown station %q", code)
	}
	return r.refreshAndPublish(ctx, c)
}

// Stations lists the configured stations in configuration order.
func (r *Runner) Stations() []types.StationConfig {
	out := make([]types.StationConfig, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.coordinators[code].Station())
	}
	return out
}

// Latest returns the most recent reading for a station, if any.
func (r *Runner) Latest(code string) (*types.Reading, bool) {
	c, ok := r.coordinators[code]
	if !ok {
		return nil, false
	}
	reading := c.Latest()
	return reading, reading != nil
}

// Coordinators exposes the coordinator set, for the metrics collector.
func (r *Runner) Coordinators() []*coordinator.Coordinator {
	out := make([]*coordinator.Coordinator, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.coordinators[code])
	}
	return out
}

func (r *Runner) refreshAndPublish(ctx context.Context, c *coordinator.Coordinator) (*types.Reading, error) {
	code := c.Station().Code

	start := time.Now()
	reading, err := c.Refresh(ctx)
	if r.observer != nil {
		r.observer.ObserveRefresh(code, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	// A stale fallback returns the previous reading instance; publishing it
	// again would duplicate history rows and MQTT state.
	r.mu.Lock()
	fresh := r.lastPublished[code] != reading
	if fresh {
		r.lastPublished[code] = reading
	}
	r.mu.Unlock()

	if fresh {
		for _, sink := range r.sinks {
			if err := sink.Publish(ctx, reading); err != nil {
				r.logger.Warn("Sink publish failed",
					"sink", sink.Name(), "station", code, "error", err)
			}
		}
	}

	return reading, nil
}
