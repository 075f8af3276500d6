// Package export is the downstream end of the pipeline: it keeps the
// last-observed value of every series in a TTL store, serves them in
// Prometheus text exposition format on /metrics, and exposes a small JSON
// status API describing per-target scrape health.
package export
