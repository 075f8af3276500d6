// Package metric defines the canonical in-memory sample type produced by the
// status parser and consumed by every sink. It is deliberately free of
// dependencies so both sides of the pipeline can share it.
package metric
