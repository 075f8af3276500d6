// Package status parses the plain-text report produced by Apache httpd's
// mod_status (?auto format) into metric samples.
//
// The mapping from report keys to series is table-driven (lineSpecs): each
// recognized key yields one namespaced Counter or Gauge, optionally with a
// fixed extra tag. Two keys need special handling — "Uptime" also emits a
// constant "up" counter, and "Scoreboard" fans out into eleven per-state
// gauges. Unrecognized keys are skipped silently so new httpd versions do not
// break the scrape; a recognized key with a malformed value fails only that
// line.
package status
