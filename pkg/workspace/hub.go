package workspace

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"annobox/pkg/box"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	sendBuffer   = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub fans box events out to connected websocket listeners. A listener
// that falls behind is dropped rather than allowed to block a box.
type Hub struct {
	mu      sync.Mutex
	clients map[*listener]struct{}
	closed  bool
	logger  *slog.Logger
}

type listener struct {
	conn *websocket.Conn
	send chan box.Event
	once sync.Once
}

func (l *listener) close() {
	l.once.Do(func() { close(l.send) })
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*listener]struct{}),
		logger:  logger,
	}
}

// Broadcast queues ev for every listener. It never blocks.
func (h *Hub) Broadcast(ev box.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.clients {
		select {
		case l.send <- ev:
		default:
			h.logger.Warn("dropping slow event listener")
			delete(h.clients, l)
			l.close()
		}
	}
}

// Listeners returns the number of connected listeners.
func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every listener.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for l := range h.clients {
		delete(h.clients, l)
		l.close()
	}
}

// ServeHTTP upgrades the request and streams events until the client goes
// away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	l := &listener{conn: conn, send: make(chan box.Event, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[l] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(l)
	h.readLoop(l)
}

// readLoop only exists to notice disconnects and answer pings.
func (h *Hub) readLoop(l *listener) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[l]; ok {
			delete(h.clients, l)
			l.close()
		}
		h.mu.Unlock()
	}()

	l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(l *listener) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		l.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-l.send:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := l.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
