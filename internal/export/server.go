package export

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/httpdwatch/httpdwatch/internal/config"
	"github.com/httpdwatch/httpdwatch/internal/events"
	"github.com/httpdwatch/httpdwatch/internal/security"
)

// StateFunc reports the collector's current lifecycle state.
type StateFunc func() string

// Server is the agent's local HTTP surface: the Prometheus exposition
// endpoint, a small JSON status API, and the WebSocket stream.
type Server struct {
	store   *Store
	rec     *events.Recorder
	state   StateFunc
	targets []config.Target
	mux     *http.ServeMux
}

// NewServer wires all routes. ws may be nil, in which case /ws is not served.
func NewServer(store *Store, rec *events.Recorder, state StateFunc, targets []config.Target, ws http.Handler) *Server {
	s := &Server{
		store:   store,
		rec:     rec,
		state:   state,
		targets: targets,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/metrics", s.metrics)
	s.mux.HandleFunc("/healthz", s.healthz)
	s.mux.HandleFunc("/api/v1/targets", s.listTargets)
	s.mux.HandleFunc("/api/v1/status", s.status)
	s.mux.HandleFunc("/api/v1/certs", s.certs)
	if ws != nil {
		s.mux.Handle("/ws", ws)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Listen serves the HTTP surface on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("export: http server listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- route handlers ---------------------------------------------------------

// metrics serves GET /metrics — the last-observed value of every live series
// in Prometheus text exposition format.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err := WriteExposition(w, s.store.Series()); err != nil {
		slog.Error("export: encode exposition", "err", err)
	}
}

// healthz serves GET /healthz — liveness plus a one-line summary.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{
		"state":   s.state(),
		"targets": len(s.targets),
	})
}

// listTargets serves GET /api/v1/targets — per-target scrape health.
func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, s.store.Targets())
}

// status serves GET /api/v1/status — collector state and event counters.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, struct {
		State    string          `json:"state"`
		Counters events.Counters `json:"counters"`
	}{
		State:    s.state(),
		Counters: s.rec.Snapshot(),
	})
}

// certs serves GET /api/v1/certs — TLS certificate status of HTTPS targets.
// Each request probes the targets live, bounded by the checker's dial timeout.
func (s *Server) certs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	out := make([]*security.CertStatus, 0)
	for _, t := range s.targets {
		if cs := security.Check(r.Context(), t); cs != nil {
			out = append(out, cs)
		}
	}
	jsonResp(w, http.StatusOK, out)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("export: encode json response", "err", err)
	}
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, map[string]string{"error": msg})
}
