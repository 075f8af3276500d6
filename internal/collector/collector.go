package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/httpdwatch/httpdwatch/internal/scraper"
	"github.com/httpdwatch/httpdwatch/internal/sink"
)

// Collector states, reported via State().
const (
	StateRunning      = "running"
	StateShuttingDown = "shutting_down"
)

// BatchObserver is notified once per target per tick with the full scrape
// result, failures included. Observers feed the status API and the stream
// hub; the metric-by-metric output still goes through the Sink.
type BatchObserver interface {
	ObserveBatch(res *scraper.Result)
}

// Collector drives the scrape schedule: one timer tick fans out to every
// target concurrently and forwards all resulting metrics into the output
// sink. Ticks are independent — a slow target from a previous tick never
// delays the next one.
type Collector struct {
	scrapers  []*scraper.Scraper
	interval  time.Duration
	out       sink.Sink
	observers []BatchObserver

	shuttingDown atomic.Bool
}

// New creates a Collector over the given scrapers.
func New(scrapers []*scraper.Scraper, interval time.Duration, out sink.Sink, observers ...BatchObserver) *Collector {
	return &Collector{
		scrapers:  scrapers,
		interval:  interval,
		out:       out,
		observers: observers,
	}
}

// State returns the collector's current lifecycle state.
func (c *Collector) State() string {
	if c.shuttingDown.Load() {
		return StateShuttingDown
	}
	return StateRunning
}

// Run executes the scrape loop until ctx is cancelled.
//
// Cancellation is observed at the tick boundary only: no further ticks are
// scheduled, but scrapes already in flight complete and their metrics are
// still forwarded before Run returns.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// In-flight work is detached from the shutdown signal so it can finish
	// and deliver its metrics.
	work := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			c.shuttingDown.Store(true)
			slog.Info("collector: shutting down, draining in-flight scrapes")
			wg.Wait()
			return
		case <-ticker.C:
			for _, s := range c.scrapers {
				wg.Add(1)
				go func(s *scraper.Scraper) {
					defer wg.Done()
					c.scrapeOne(work, s)
				}(s)
			}
		}
	}
}

// scrapeOne runs a single target's scrape and forwards its output.
func (c *Collector) scrapeOne(ctx context.Context, s *scraper.Scraper) {
	res := s.Scrape(ctx)

	for _, obs := range c.observers {
		obs.ObserveBatch(res)
	}
	if res.Err != nil {
		// Already reported through the events recorder; this tick simply
		// contributes nothing for the target and the next tick retries.
		return
	}

	for _, m := range res.Metrics {
		if err := c.out.Push(ctx, m); err != nil {
			slog.Error("collector: sink rejected metric",
				"target", s.ID(), "metric", m.Name, "err", err)
			return
		}
	}
}
