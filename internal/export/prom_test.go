package export

import (
	"strings"
	"testing"
	"time"

	"github.com/httpdwatch/httpdwatch/internal/metric"
)

func TestWriteExposition(t *testing.T) {
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	metrics := []metric.Metric{
		{Name: "apache_access_total", Type: metric.Counter, Value: 100, Timestamp: ts},
		{Name: "apache_workers", Type: metric.Gauge, Value: 2, Timestamp: ts,
			Tags: map[string]string{"state": "busy"}},
		{Name: "apache_workers", Type: metric.Gauge, Value: 8, Timestamp: ts,
			Tags: map[string]string{"state": "idle"}},
	}

	var b strings.Builder
	if err := WriteExposition(&b, metrics); err != nil {
		t.Fatalf("WriteExposition: %v", err)
	}
	out := b.String()

	for _, want := range []string{
		"# TYPE apache_access_total counter",
		"apache_access_total 100",
		"# TYPE apache_workers gauge",
		`apache_workers{state="busy"} 2`,
		`apache_workers{state="idle"} 8`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q:\n%s", want, out)
		}
	}

	// Families are emitted in sorted name order.
	if strings.Index(out, "apache_access_total") > strings.Index(out, "apache_workers") {
		t.Errorf("families not sorted:\n%s", out)
	}
}

func TestWriteExposition_Empty(t *testing.T) {
	var b strings.Builder
	if err := WriteExposition(&b, nil); err != nil {
		t.Fatalf("WriteExposition: %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("empty store produced output: %q", b.String())
	}
}
