package export

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/httpdwatch/httpdwatch/internal/metric"
	"github.com/httpdwatch/httpdwatch/internal/scraper"
)

// uptimeWindow is the number of recent scrape outcomes tracked per target.
const uptimeWindow = 20

// series is one exported time series together with its last update time.
type series struct {
	metric    metric.Metric
	updatedAt time.Time
}

// TargetStatus is the status-API view of one scrape target.
type TargetStatus struct {
	ID          string    `json:"id"`
	Endpoint    string    `json:"endpoint"`
	LastScrape  time.Time `json:"last_scrape"`
	LastError   string    `json:"last_error,omitempty"`
	UpPct       float64   `json:"up_pct"`
	MetricCount int       `json:"metric_count"`
	ParseErrs   int       `json:"parse_errors"`
}

// Store is a thread-safe in-memory view of the collector's output: the
// last-observed value of every series, plus per-target scrape health.
// A background goroutine (Run) evicts series not updated within the TTL so
// dead targets age off /metrics.
type Store struct {
	mu      sync.RWMutex
	series  map[string]*series
	targets map[string]*targetState
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
}

// targetState tracks scrape health per target.
type targetState struct {
	endpoint    string
	lastScrape  time.Time
	lastError   string
	metricCount int
	parseErrs   int
	history     []bool // recent scrape outcomes, newest last
}

// NewStore creates a Store with the given series TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		series:  make(map[string]*series),
		targets: make(map[string]*targetState),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Record stores or replaces the series the metric belongs to.
func (s *Store) Record(m metric.Metric) {
	key := seriesKey(m)
	s.mu.Lock()
	s.series[key] = &series{metric: m, updatedAt: s.now()}
	s.mu.Unlock()
}

// ObserveBatch updates the target's health from one scrape result.
// It implements collector.BatchObserver.
func (s *Store) ObserveBatch(res *scraper.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.targets[res.TargetID]
	if !ok {
		st = &targetState{}
		s.targets[res.TargetID] = st
	}

	st.lastScrape = res.ScrapedAt
	st.metricCount = len(res.Metrics)
	st.parseErrs = res.ParseErrs
	if res.Err != nil {
		st.lastError = res.Err.Error()
	} else {
		st.lastError = ""
	}

	if len(st.history) >= uptimeWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, res.Err == nil)
}

// SetEndpoint records the endpoint shown for a target in the status API.
func (s *Store) SetEndpoint(id, endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.targets[id]
	if !ok {
		st = &targetState{}
		s.targets[id] = st
	}
	st.endpoint = endpoint
}

// Series returns the current value of every live series, sorted by key so
// the exposition output is stable.
func (s *Store) Series() []metric.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.ttl)
	keys := make([]string, 0, len(s.series))
	for k, e := range s.series {
		if e.updatedAt.After(cutoff) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]metric.Metric, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.series[k].metric)
	}
	return out
}

// Targets returns the status of every known target, sorted by ID.
func (s *Store) Targets() []TargetStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TargetStatus, 0, len(s.targets))
	for id, st := range s.targets {
		out = append(out, TargetStatus{
			ID:          id,
			Endpoint:    st.endpoint,
			LastScrape:  st.lastScrape,
			LastError:   st.lastError,
			UpPct:       st.upPct(),
			MetricCount: st.metricCount,
			ParseErrs:   st.parseErrs,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Evict removes series whose last update is older than now minus TTL.
// It returns the number of series removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for k, e := range s.series {
		if !e.updatedAt.After(cutoff) {
			delete(s.series, k)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("export: evicted stale series", "count", n)
			}
		}
	}
}

func (st *targetState) upPct() float64 {
	if len(st.history) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, b := range st.history {
		if b {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}

// seriesKey builds a stable identity for a metric from its name and tags.
func seriesKey(m metric.Metric) string {
	if len(m.Tags) == 0 {
		return m.Name
	}
	keys := make([]string, 0, len(m.Tags))
	for k := range m.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m.Tags[k])
	}
	b.WriteByte('}')
	return b.String()
}
