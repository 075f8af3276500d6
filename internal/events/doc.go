// Package events is the agent's own observability layer: every notable
// occurrence in the scrape pipeline (scrape completed, HTTP failure, parse
// failure) is reported here exactly once. The Recorder logs each event and
// counts it, and the counters feed the /api/v1/status endpoint.
package events
