package export

import (
	"errors"
	"testing"
	"time"

	"github.com/httpdwatch/httpdwatch/internal/metric"
	"github.com/httpdwatch/httpdwatch/internal/scraper"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// newTestStore returns a Store with a controllable clock.
func newTestStore(ttl time.Duration) (*Store, *time.Time) {
	s := NewStore(ttl)
	now := base
	s.now = func() time.Time { return now }
	return s, &now
}

func gauge(name string, tags map[string]string, value float64) metric.Metric {
	return metric.Metric{Name: name, Tags: tags, Type: metric.Gauge, Value: value, Timestamp: base}
}

func TestStore_RecordReplacesSeries(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	s.Record(gauge("apache_cpu_load", nil, 1))
	s.Record(gauge("apache_cpu_load", nil, 2))

	series := s.Series()
	if len(series) != 1 {
		t.Fatalf("got %d series, want 1", len(series))
	}
	if series[0].Value != 2 {
		t.Errorf("value: got %v, want 2", series[0].Value)
	}
}

func TestStore_TagsDistinguishSeries(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	s.Record(gauge("apache_workers", map[string]string{"state": "busy"}, 2))
	s.Record(gauge("apache_workers", map[string]string{"state": "idle"}, 8))

	if got := len(s.Series()); got != 2 {
		t.Errorf("got %d series, want 2", got)
	}
}

func TestStore_SeriesExpire(t *testing.T) {
	s, now := newTestStore(time.Minute)

	s.Record(gauge("apache_up", nil, 1))
	*now = base.Add(2 * time.Minute)

	if got := len(s.Series()); got != 0 {
		t.Errorf("stale series still visible: %d", got)
	}
	if removed := s.Evict(*now); removed != 1 {
		t.Errorf("Evict removed %d, want 1", removed)
	}
}

func TestStore_FreshSeriesSurviveEviction(t *testing.T) {
	s, now := newTestStore(time.Minute)

	s.Record(gauge("apache_up", nil, 1))
	*now = base.Add(30 * time.Second)
	s.Record(gauge("apache_cpu_load", nil, 0.5))

	*now = base.Add(80 * time.Second)
	if removed := s.Evict(*now); removed != 1 {
		t.Errorf("Evict removed %d, want 1", removed)
	}
	series := s.Series()
	if len(series) != 1 || series[0].Name != "apache_cpu_load" {
		t.Errorf("surviving series: %v", series)
	}
}

func TestStore_ObserveBatch_TargetStatus(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	s.SetEndpoint("web-1", "http://web-1/server-status?auto")

	s.ObserveBatch(&scraper.Result{
		TargetID:  "web-1",
		ScrapedAt: base,
		Metrics:   []metric.Metric{gauge("apache_up", nil, 1)},
	})
	s.ObserveBatch(&scraper.Result{
		TargetID:  "web-1",
		ScrapedAt: base.Add(15 * time.Second),
		Err:       errors.New("connection refused"),
	})

	targets := s.Targets()
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	ts := targets[0]
	if ts.ID != "web-1" || ts.Endpoint != "http://web-1/server-status?auto" {
		t.Errorf("identity: %+v", ts)
	}
	if ts.LastError != "connection refused" {
		t.Errorf("last error: got %q", ts.LastError)
	}
	if ts.UpPct != 50 {
		t.Errorf("up pct: got %v, want 50", ts.UpPct)
	}
}

func TestStore_ObserveBatch_SuccessClearsError(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	s.ObserveBatch(&scraper.Result{TargetID: "web-1", Err: errors.New("boom")})
	s.ObserveBatch(&scraper.Result{TargetID: "web-1", ScrapedAt: base})

	if got := s.Targets()[0].LastError; got != "" {
		t.Errorf("last error after success: got %q, want empty", got)
	}
}

func TestStore_UptimeWindowSlides(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	// Fill the window with failures, then exactly one window of successes.
	for i := 0; i < uptimeWindow; i++ {
		s.ObserveBatch(&scraper.Result{TargetID: "web-1", Err: errors.New("down")})
	}
	for i := 0; i < uptimeWindow; i++ {
		s.ObserveBatch(&scraper.Result{TargetID: "web-1"})
	}

	if got := s.Targets()[0].UpPct; got != 100 {
		t.Errorf("up pct after full recovery window: got %v, want 100", got)
	}
}

func TestSeriesKey_Stable(t *testing.T) {
	a := gauge("apache_workers", map[string]string{"state": "busy", "host": "w1"}, 1)
	b := gauge("apache_workers", map[string]string{"host": "w1", "state": "busy"}, 2)
	if seriesKey(a) != seriesKey(b) {
		t.Errorf("key order dependence: %q vs %q", seriesKey(a), seriesKey(b))
	}
}
