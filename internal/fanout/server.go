package fanout

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

const (
	clientSendBuf = 256
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// forwarded lists the bus events pushed to subscribers.
var forwarded = []events.EventType{
	events.EventIndexRebuilt,
	events.EventIndexRebuildFailed,
	events.EventIndexInvalidated,
	events.EventAliasesReloaded,
	events.EventMatchResolved,
}

type subscriber struct {
	sport events.Sport // empty means every sport
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
}

func (c *subscriber) wants(evt events.Event) bool {
	return c.sport == "" || evt.Sport == "" || evt.Sport == c.sport
}

func (c *subscriber) label() string {
	if c.sport == "" {
		return "all"
	}
	return string(c.sport)
}

// Server fans out bus events to connected WebSocket subscribers.
type Server struct {
	mu      sync.Mutex
	clients map[*subscriber]struct{}
}

func NewServer(bus *events.Bus) *Server {
	s := &Server{
		clients: make(map[*subscriber]struct{}),
	}
	for _, t := range forwarded {
		bus.Subscribe(t, s.forward)
	}
	return s
}

// forward is called on the publisher's goroutine. It serializes the event
// and enqueues it to matching clients' send channels (non-blocking).
func (s *Server) forward(evt events.Event) error {
	data, err := MarshalEvent(evt)
	if err != nil {
		telemetry.Warnf("fanout: marshal error: %v", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		if !c.wants(evt) {
			continue
		}
		select {
		case c.send <- data:
		default:
			telemetry.Warnf("fanout: dropping %s for slow client sport=%s", evt.Type, c.label())
		}
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// HandleWS upgrades the request. ?sport=nfl restricts the stream to one
// sport; without it every event is delivered.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var sport events.Sport
	if q := r.URL.Query().Get("sport"); q != "" {
		sp, err := events.ParseSport(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sport = sp
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("fanout: upgrade failed: %v", err)
		return
	}

	c := &subscriber{
		sport: sport,
		conn:  conn,
		send:  make(chan []byte, clientSendBuf),
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	telemetry.Metrics.FanoutClients.Inc()

	telemetry.Infof("fanout: client connected sport=%s remote=%s", c.label(), r.RemoteAddr)

	go s.writePump(c)
	go s.readPump(c)
}

// writePump drains the client's send channel and writes to the WS connection.
// It owns the client lifecycle: on exit it removes the client from the map
// (so forward never sends to a stale channel) and closes the connection.
func (s *Server) writePump(c *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("fanout: write error sport=%s: %v", c.label(), err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the connection alive by reading pongs / close frames.
// On exit it signals writePump via c.done (never closes c.send).
func (s *Server) readPump(c *subscriber) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *subscriber) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		telemetry.Metrics.FanoutClients.Dec()
		telemetry.Infof("fanout: client disconnected sport=%s", c.label())
	}
}
