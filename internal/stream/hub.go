package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/httpdwatch/httpdwatch/internal/metric"
	"github.com/httpdwatch/httpdwatch/internal/scraper"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the hub sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients for every scrape batch.
type Message struct {
	Event string `json:"event"`
	Data  Batch  `json:"data"`
}

// Batch is the wire form of one target's scrape output.
type Batch struct {
	Target    string    `json:"target"`
	ScrapedAt time.Time `json:"scraped_at"`
	Error     string    `json:"error,omitempty"`
	Samples   []Sample  `json:"samples"`
}

// Sample is the wire form of one metric.
type Sample struct {
	Name  string            `json:"name"`
	Tags  map[string]string `json:"tags,omitempty"`
	Type  string            `json:"type"`
	Value float64           `json:"value"`
}

// Hub manages WebSocket client connections and broadcasts every scrape batch
// to all connected clients as it arrives.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// ObserveBatch serializes the scrape result and fans it out to every
// connected client. It implements collector.BatchObserver and must not
// block the scrape path: a client whose buffer is full is disconnected.
func (h *Hub) ObserveBatch(res *scraper.Result) {
	if h.Count() == 0 {
		return
	}

	data, err := json.Marshal(Message{Event: "batch", Data: toBatch(res)})
	if err != nil {
		return
	}

	// Sends and closes both happen under the lock so a concurrent batch can
	// never write to a channel another batch just closed.
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client
// until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump() // blocks until the connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func toBatch(res *scraper.Result) Batch {
	b := Batch{
		Target:    res.TargetID,
		ScrapedAt: res.ScrapedAt,
		Samples:   make([]Sample, 0, len(res.Metrics)),
	}
	if res.Err != nil {
		b.Error = res.Err.Error()
	}
	for _, m := range res.Metrics {
		b.Samples = append(b.Samples, toSample(m))
	}
	return b
}

func toSample(m metric.Metric) Sample {
	return Sample{
		Name:  m.Name,
		Tags:  m.Tags,
		Type:  m.Type.String(),
		Value: m.Value,
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages
// (pong, close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
