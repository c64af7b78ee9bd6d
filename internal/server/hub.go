package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GenAmed/pointage/internal/tracker"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 1024,
	// The API listens on loopback only; the mobile UI shell connects
	// through it, so origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans tracker events out to connected UI clients over websockets. It
// implements tracker.Notifier: Notify only enqueues, the actual writes run
// on the hub's own goroutine, so a slow or dead client never delays a punch.
// A slow client is dropped rather than waited on.
type Hub struct {
	log *zap.Logger

	events chan tracker.Event
	done   chan struct{}
	stop   sync.Once

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewHub creates a hub and starts its broadcast loop.
func NewHub(log *zap.Logger) *Hub {
	h := &Hub{
		log:    log,
		events: make(chan tracker.Event, 64),
		done:   make(chan struct{}),
		conns:  map[*websocket.Conn]bool{},
	}
	go h.run()
	return h
}

// Notify queues the event for broadcast. It never blocks: with the queue
// full or the hub closed the event is dropped.
func (h *Hub) Notify(e tracker.Event) {
	select {
	case <-h.done:
	case h.events <- e:
	default:
		h.log.Debug("event feed backlogged, dropping event")
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case e := <-h.events:
			h.broadcast(e)
		}
	}
}

// broadcast writes the event to every connected client.
func (h *Hub) broadcast(e tracker.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(e); err != nil {
			h.log.Debug("dropping event client", zap.Error(err))
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	// Drain control frames until the client goes away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				if h.conns[conn] {
					conn.Close()
					delete(h.conns, conn)
				}
				h.mu.Unlock()
				return
			}
		}
	}()
}

// Close stops the broadcast loop and disconnects every client.
func (h *Hub) Close() {
	h.stop.Do(func() { close(h.done) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
