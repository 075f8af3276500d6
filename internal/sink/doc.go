// Package sink defines the output contract of the collector: a stream of
// metrics pushed one at a time into anything that implements Sink. The
// Pipeline implementation is the default in-process transport between the
// scrape loop and the exporters.
package sink
