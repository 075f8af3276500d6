package scraper

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/httpdwatch/httpdwatch/internal/config"
	"github.com/httpdwatch/httpdwatch/internal/events"
	"github.com/httpdwatch/httpdwatch/internal/metric"
	"github.com/httpdwatch/httpdwatch/internal/status"
)

// Result is the outcome of one scrape of one target.
//
// On success Metrics holds everything the report yielded and ParseErrs the
// number of lines that failed; a report can produce both. Err is non-nil only
// when the scrape as a whole failed (connection error or non-2xx status), in
// which case Metrics is empty.
type Result struct {
	TargetID  string
	ScrapedAt time.Time
	Metrics   []metric.Metric
	ParseErrs int
	Err       error
}

// Scraper polls a single httpd mod_status endpoint.
// The HTTP client is built once at construction and reused across scrapes.
type Scraper struct {
	target    config.Target
	namespace string
	baseTags  map[string]string
	client    *http.Client
	rec       *events.Recorder
}

// New builds a Scraper for the given target. The target's endpoint has
// already been validated by the config layer.
func New(target config.Target, namespace string, baseTags map[string]string, rec *events.Recorder) (*Scraper, error) {
	client, err := buildHTTPClient(target)
	if err != nil {
		return nil, fmt.Errorf("scraper %q: build http client: %w", target.ID, err)
	}
	return &Scraper{
		target:    target,
		namespace: namespace,
		baseTags:  baseTags,
		client:    client,
		rec:       rec,
	}, nil
}

// ID returns the target's configured identifier.
func (s *Scraper) ID() string { return s.target.ID }

// Endpoint returns the target's status page URL.
func (s *Scraper) Endpoint() string { return s.target.Endpoint }

// Scrape issues one GET against the target's status page and converts the
// report into metrics.
//
// A transport failure or non-2xx response yields a Result with Err set and no
// metrics; line-level parse failures are counted but never fail the scrape.
// Cancellation comes from ctx — no request timeout is enforced beyond it, so
// a slow target can overlap the next tick rather than being cut off.
func (s *Scraper) Scrape(ctx context.Context) *Result {
	res := &Result{TargetID: s.target.ID}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.target.Endpoint, nil)
	if err != nil {
		res.ScrapedAt = time.Now().UTC()
		res.Err = fmt.Errorf("scrape %q: build request: %w", s.target.ID, err)
		return res
	}

	start := time.Now().UTC()
	resp, err := s.client.Do(req)
	if err != nil {
		res.ScrapedAt = start
		res.Err = fmt.Errorf("scrape %q: %w", s.target.ID, err)
		s.rec.HTTPError(s.target.Endpoint, err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.ScrapedAt = start
		res.Err = fmt.Errorf("scrape %q: unexpected status %d", s.target.ID, resp.StatusCode)
		s.rec.ErrorResponse(s.target.Endpoint, resp.StatusCode)
		return res
	}

	raw, err := io.ReadAll(resp.Body)
	end := time.Now().UTC()
	if err != nil {
		res.ScrapedAt = start
		res.Err = fmt.Errorf("scrape %q: read body: %w", s.target.ID, err)
		s.rec.HTTPError(s.target.Endpoint, err)
		return res
	}
	s.rec.RequestCompleted(s.target.Endpoint, start, end)

	// Replace invalid UTF-8 rather than rejecting the body; a partially
	// garbled report still carries usable lines.
	body := strings.ToValidUTF8(string(raw), "�")

	res.ScrapedAt = end
	metrics, parseErrs := status.Parse(body, s.namespace, end, s.baseTags)
	res.Metrics = metrics
	res.ParseErrs = len(parseErrs)

	for _, perr := range parseErrs {
		s.rec.ParseError(s.target.Endpoint, perr, body)
	}
	s.rec.EventsReceived(s.target.Endpoint, len(metrics), len(raw))
	return res
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base   http.RoundTripper
	target config.Target
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.target.Auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.target.Auth.Header, t.target.Auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.target.Auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.target.Auth.Username, t.target.Auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the target's auth and TLS
// settings. The client carries no timeout of its own; each scrape is bounded
// by its context.
func buildHTTPClient(target config.Target) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: target.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	transport := &authRoundTripper{
		base:   &http.Transport{TLSClientConfig: tlsCfg},
		target: target,
	}
	return &http.Client{Transport: transport}, nil
}
