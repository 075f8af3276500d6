package metric

import "time"

// Kind describes how a sample relates to previous samples of the same series.
type Kind int

const (
	// Absolute samples are point-in-time observations; each one replaces the
	// previous value of the series.
	Absolute Kind = iota

	// Incremental samples are deltas to be accumulated by the consumer.
	// The httpd status source never emits these, but downstream sinks accept
	// both so the model carries the distinction.
	Incremental
)

// Type is the numeric semantics of a sample's value.
type Type int

const (
	// Counter values are monotonic server-reported totals.
	Counter Type = iota

	// Gauge values are current states (workers, connections, load).
	Gauge
)

func (t Type) String() string {
	if t == Counter {
		return "counter"
	}
	return "gauge"
}

// Metric is one timestamped, tagged sample ready for a downstream sink.
// A Metric is never mutated after construction.
type Metric struct {
	// Name is the namespace-prefixed series name, e.g. "apache_workers".
	Name string

	// Timestamp is the capture time of the scrape the sample came from,
	// not of the individual status line.
	Timestamp time.Time

	// Tags holds the base tag set of the scrape plus at most one
	// series-specific tag. May be nil.
	Tags map[string]string

	Kind  Kind
	Type  Type
	Value float64
}

// EncodeName joins namespace and suffix with an underscore, or returns the
// bare suffix when namespace is empty.
func EncodeName(namespace, suffix string) string {
	if namespace == "" {
		return suffix
	}
	return namespace + "_" + suffix
}

// WithTag returns a copy of base with one extra key/value pair set.
// base is never modified; a nil base yields a single-entry map.
func WithTag(base map[string]string, key, value string) map[string]string {
	tags := make(map[string]string, len(base)+1)
	for k, v := range base {
		tags[k] = v
	}
	tags[key] = value
	return tags
}

// CloneTags returns a copy of base, or nil for an empty base.
// Each metric owns its tag map so later samples cannot alias earlier ones.
func CloneTags(base map[string]string) map[string]string {
	if len(base) == 0 {
		return nil
	}
	tags := make(map[string]string, len(base))
	for k, v := range base {
		tags[k] = v
	}
	return tags
}
