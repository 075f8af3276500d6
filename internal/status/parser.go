package status

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/httpdwatch/httpdwatch/internal/metric"
)

// ParseError records a single status line whose value could not be converted.
// It is informational only; the rest of the report is unaffected.
type ParseError struct {
	// Key is the status-line key being parsed, e.g. "Uptime".
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse value for %s: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// lineSpec describes how one recognized status key maps to a metric series.
type lineSpec struct {
	suffix string
	typ    metric.Type

	// tagKey/tagValue add one fixed tag on top of the base set when tagKey
	// is non-empty.
	tagKey   string
	tagValue string

	// transform converts the parsed number into the emitted value.
	// Nil means identity.
	transform func(float64) float64

	// unsigned parses the value as a base-10 unsigned integer before
	// converting to float64, rejecting fractional and negative input.
	unsigned bool
}

// lineSpecs is the mapping from mod_status keys to output series.
// "Uptime" and "Scoreboard" need more than one output metric and are handled
// separately in ParseLine.
var lineSpecs = map[string]lineSpec{
	"Total Accesses": {suffix: "access_total", typ: metric.Counter},
	"Total kBytes": {
		suffix:    "sent_bytes_total",
		typ:       metric.Counter,
		transform: func(v float64) float64 { return v * 1024 },
		unsigned:  true,
	},
	// The upstream report does not document the unit of Total Duration;
	// the value is passed through without conversion.
	"Total Duration":      {suffix: "duration_seconds_total", typ: metric.Counter},
	"CPUUser":             {suffix: "cpu_seconds_total", typ: metric.Gauge, tagKey: "type", tagValue: "user"},
	"CPUSystem":           {suffix: "cpu_seconds_total", typ: metric.Gauge, tagKey: "type", tagValue: "system"},
	"CPUChildrenUser":     {suffix: "cpu_seconds_total", typ: metric.Gauge, tagKey: "type", tagValue: "children_user"},
	"CPUChildrenSystem":   {suffix: "cpu_seconds_total", typ: metric.Gauge, tagKey: "type", tagValue: "children_system"},
	"CPULoad":             {suffix: "cpu_load", typ: metric.Gauge},
	"IdleWorkers":         {suffix: "workers", typ: metric.Gauge, tagKey: "state", tagValue: "idle"},
	"BusyWorkers":         {suffix: "workers", typ: metric.Gauge, tagKey: "state", tagValue: "busy"},
	"ConnsTotal":          {suffix: "connections", typ: metric.Gauge, tagKey: "state", tagValue: "total"},
	"ConnsAsyncWriting":   {suffix: "connections", typ: metric.Gauge, tagKey: "state", tagValue: "writing"},
	"ConnsAsyncClosing":   {suffix: "connections", typ: metric.Gauge, tagKey: "state", tagValue: "closing"},
	"ConnsAsyncKeepAlive": {suffix: "connections", typ: metric.Gauge, tagKey: "state", tagValue: "keepalive"},
}

// scoreboardStates maps each worker-slot character of the Scoreboard line to
// its state name. Characters outside this set are ignored.
var scoreboardStates = map[rune]string{
	'_': "waiting",
	'S': "starting",
	'R': "reading",
	'W': "sending",
	'K': "keepalive",
	'D': "dnslookup",
	'C': "closing",
	'L': "logging",
	'G': "finishing",
	'I': "idle_cleanup",
	'.': "open",
}

// ParseLine maps one "key: value" pair from a status report to its metrics.
//
// It returns (metrics, nil) for a recognized key with a parseable value,
// (nil, *ParseError) for a recognized key with a malformed value, and
// (nil, nil) for an unrecognized key, which is not an error.
func ParseLine(key, value, namespace string, now time.Time, baseTags map[string]string) ([]metric.Metric, *ParseError) {
	switch key {
	case "Uptime":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, &ParseError{Key: key, Err: err}
		}
		return []metric.Metric{
			{
				Name:      metric.EncodeName(namespace, "uptime_seconds_total"),
				Timestamp: now,
				Tags:      metric.CloneTags(baseTags),
				Kind:      metric.Absolute,
				Type:      metric.Counter,
				Value:     v,
			},
			{
				Name:      metric.EncodeName(namespace, "up"),
				Timestamp: now,
				Tags:      metric.CloneTags(baseTags),
				Kind:      metric.Absolute,
				Type:      metric.Counter,
				Value:     1,
			},
		}, nil

	case "Scoreboard":
		return scoreboardMetrics(value, namespace, now, baseTags), nil
	}

	spec, ok := lineSpecs[key]
	if !ok {
		return nil, nil
	}

	var v float64
	if spec.unsigned {
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, &ParseError{Key: key, Err: err}
		}
		v = float64(u)
	} else {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, &ParseError{Key: key, Err: err}
		}
		v = f
	}
	if spec.transform != nil {
		v = spec.transform(v)
	}

	tags := metric.CloneTags(baseTags)
	if spec.tagKey != "" {
		tags = metric.WithTag(baseTags, spec.tagKey, spec.tagValue)
	}

	return []metric.Metric{{
		Name:      metric.EncodeName(namespace, spec.suffix),
		Timestamp: now,
		Tags:      tags,
		Kind:      metric.Absolute,
		Type:      spec.typ,
		Value:     v,
	}}, nil
}

// scoreboardMetrics expands a scoreboard string into exactly one gauge per
// known worker state, counting occurrences of each state character.
// States absent from the string are emitted with value 0.
func scoreboardMetrics(value, namespace string, now time.Time, baseTags map[string]string) []metric.Metric {
	counts := make(map[rune]int, len(scoreboardStates))
	for _, c := range value {
		if _, known := scoreboardStates[c]; known {
			counts[c]++
		}
	}

	out := make([]metric.Metric, 0, len(scoreboardStates))
	for c, state := range scoreboardStates {
		out = append(out, metric.Metric{
			Name:      metric.EncodeName(namespace, "scoreboard"),
			Timestamp: now,
			Tags:      metric.WithTag(baseTags, "state", state),
			Kind:      metric.Absolute,
			Type:      metric.Gauge,
			Value:     float64(counts[c]),
		})
	}
	return out
}

// Parse converts a full mod_status report body into metrics.
//
// Each line is split at the first colon into key and value, with the value
// trimmed of surrounding whitespace; lines without a colon are skipped.
// A malformed value fails only its own line — every other line still
// contributes, so the caller always receives all parseable metrics together
// with the per-line errors.
func Parse(body, namespace string, now time.Time, baseTags map[string]string) ([]metric.Metric, []*ParseError) {
	var (
		metrics []metric.Metric
		errs    []*ParseError
	)
	for _, line := range strings.Split(body, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		ms, err := ParseLine(key, strings.TrimSpace(value), namespace, now, baseTags)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		metrics = append(metrics, ms...)
	}
	return metrics, errs
}
