package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/httpdwatch/httpdwatch/internal/metric"
	"github.com/httpdwatch/httpdwatch/internal/scraper"
	"github.com/httpdwatch/httpdwatch/internal/stream"
)

// --- helpers ----------------------------------------------------------------

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
// Returns the ws:// URL, the hub, and a cancel function.
func startHub(t *testing.T) (wsURL string, hub *stream.Hub, cancel func()) {
	t.Helper()

	hub = stream.New()
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one text message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return msg
}

// waitCount polls hub.Count until it equals want or the deadline passes.
func waitCount(t *testing.T, hub *stream.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Count: got %d, want %d", hub.Count(), want)
}

func result(target string, ms ...metric.Metric) *scraper.Result {
	return &scraper.Result{
		TargetID:  target,
		ScrapedAt: time.Now(),
		Metrics:   ms,
	}
}

func sample(name string, value float64) metric.Metric {
	return metric.Metric{
		Name:  name,
		Type:  metric.Gauge,
		Value: value,
		Tags:  map[string]string{"host": "web-1"},
	}
}

// --- tests ------------------------------------------------------------------

func TestHub_BroadcastsBatch(t *testing.T) {
	wsURL, hub, _ := startHub(t)

	conn := dial(t, wsURL)
	waitCount(t, hub, 1)

	hub.ObserveBatch(result("web-1", sample("apache_workers", 2)))
	msg := readMessage(t, conn)

	var m stream.Message
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Event != "batch" {
		t.Errorf("event: got %q, want batch", m.Event)
	}
	if m.Data.Target != "web-1" {
		t.Errorf("target: got %q", m.Data.Target)
	}
	if len(m.Data.Samples) != 1 {
		t.Fatalf("samples: got %d, want 1", len(m.Data.Samples))
	}
	s := m.Data.Samples[0]
	if s.Name != "apache_workers" || s.Value != 2 || s.Type != "gauge" {
		t.Errorf("sample: %+v", s)
	}
	if s.Tags["host"] != "web-1" {
		t.Errorf("tags: %v", s.Tags)
	}
}

func TestHub_BroadcastsScrapeError(t *testing.T) {
	wsURL, hub, _ := startHub(t)

	conn := dial(t, wsURL)
	waitCount(t, hub, 1)

	res := result("web-2")
	res.Err = errors.New("connection refused")
	hub.ObserveBatch(res)

	var m stream.Message
	if err := json.Unmarshal(readMessage(t, conn), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Data.Error != "connection refused" {
		t.Errorf("error: got %q", m.Data.Error)
	}
	if len(m.Data.Samples) != 0 {
		t.Errorf("samples: got %d, want 0", len(m.Data.Samples))
	}
}

func TestHub_AllClientsReceiveBroadcast(t *testing.T) {
	wsURL, hub, _ := startHub(t)

	conns := make([]*websocket.Conn, 3)
	for i := 0; i < 3; i++ {
		conns[i] = dial(t, wsURL)
	}
	waitCount(t, hub, 3)

	hub.ObserveBatch(result("web-1", sample("apache_up", 1)))

	for i, conn := range conns {
		var m stream.Message
		if err := json.Unmarshal(readMessage(t, conn), &m); err != nil {
			t.Errorf("client %d: unmarshal: %v", i, err)
			continue
		}
		if m.Event != "batch" {
			t.Errorf("client %d: event: got %q, want batch", i, m.Event)
		}
	}
}

func TestHub_CountDecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t)

	conn := dial(t, wsURL)
	waitCount(t, hub, 1)

	conn.Close()
	waitCount(t, hub, 0)
}

func TestHub_ObserveBatchWithoutClients(t *testing.T) {
	_, hub, _ := startHub(t)

	// Must not panic or block.
	hub.ObserveBatch(result("web-1", sample("apache_up", 1)))

	if n := hub.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t)

	conn := dial(t, wsURL)
	waitCount(t, hub, 1)
	_ = conn

	cancel()
	waitCount(t, hub, 0)
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := stream.New()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
