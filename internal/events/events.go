package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// bodyDumpInterval limits how often a failed report body is written to the
// debug log per target.
const bodyDumpInterval = 10 * time.Second

// Counters is a point-in-time copy of the recorder's self-telemetry.
type Counters struct {
	EventsProcessed   uint64 `json:"events_processed"`
	BytesProcessed    uint64 `json:"bytes_processed"`
	RequestsCompleted uint64 `json:"requests_completed"`
	HTTPErrorResponse uint64 `json:"http_error_response"`
	HTTPRequestErrors uint64 `json:"http_request_errors"`
	ParseErrors       uint64 `json:"parse_errors"`
}

// Recorder receives one call per notable occurrence in the scrape pipeline,
// logs it, and keeps running counters for the status API.
//
// All methods are safe for concurrent use; scrapes for different targets run
// in parallel.
type Recorder struct {
	eventsProcessed   atomic.Uint64
	bytesProcessed    atomic.Uint64
	requestsCompleted atomic.Uint64
	httpErrorResponse atomic.Uint64
	httpRequestErrors atomic.Uint64
	parseErrors       atomic.Uint64

	mu       sync.Mutex
	lastDump map[string]time.Time
	now      func() time.Time // injectable for deterministic tests
}

// NewRecorder returns a ready-to-use Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		lastDump: make(map[string]time.Time),
		now:      time.Now,
	}
}

// EventsReceived records a successful scrape-and-parse: count metrics were
// produced from byteSize bytes of report body.
func (r *Recorder) EventsReceived(url string, count, byteSize int) {
	r.eventsProcessed.Add(uint64(count))
	r.bytesProcessed.Add(uint64(byteSize))
	slog.Debug("scrape: events received", "url", url, "count", count, "byte_size", byteSize)
}

// RequestCompleted records any 2xx response with its request duration.
func (r *Recorder) RequestCompleted(url string, start, end time.Time) {
	r.requestsCompleted.Add(1)
	slog.Debug("scrape: request completed", "url", url, "duration", end.Sub(start))
}

// ErrorResponse records a non-2xx HTTP status from a target.
func (r *Recorder) ErrorResponse(url string, code int) {
	r.httpErrorResponse.Add(1)
	slog.Error("scrape: HTTP error response", "url", url, "code", code)
}

// HTTPError records a transport-level request failure.
func (r *Recorder) HTTPError(url string, err error) {
	r.httpRequestErrors.Add(1)
	slog.Error("scrape: HTTP request error", "url", url, "err", err)
}

// ParseError records one line-level parse failure. The error itself is always
// logged; the raw body is dumped at debug level at most once per
// bodyDumpInterval per target to keep a persistently broken target from
// flooding the log.
func (r *Recorder) ParseError(url string, err error, body string) {
	r.parseErrors.Add(1)
	slog.Error("scrape: parse error", "url", url, "err", err)

	if r.shouldDump(url) {
		slog.Debug("scrape: failed to parse response body", "url", url, "body", body)
	}
}

// Snapshot returns a copy of the current counter values.
func (r *Recorder) Snapshot() Counters {
	return Counters{
		EventsProcessed:   r.eventsProcessed.Load(),
		BytesProcessed:    r.bytesProcessed.Load(),
		RequestsCompleted: r.requestsCompleted.Load(),
		HTTPErrorResponse: r.httpErrorResponse.Load(),
		HTTPRequestErrors: r.httpRequestErrors.Load(),
		ParseErrors:       r.parseErrors.Load(),
	}
}

func (r *Recorder) shouldDump(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if last, ok := r.lastDump[url]; ok && now.Sub(last) < bodyDumpInterval {
		return false
	}
	r.lastDump[url] = now
	return true
}
