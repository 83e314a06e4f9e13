package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
)

const maxFeedConnections = 200

// Hub fans appended feed events out to websocket clients. Single broadcaster
// goroutine; clients only receive.
type Hub struct {
	logger     *zap.Logger
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	events     chan HubEvent
	mu         sync.RWMutex

	upgrader websocket.Upgrader
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		events:     make(chan HubEvent, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Notify implements Subscriber. Drops the event if the broadcast channel is
// full rather than blocking the feed writer.
func (h *Hub) Notify(event HubEvent) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn("feed hub broadcast channel full, dropping event",
			zap.String("event_id", event.ID))
	}
}

// Run drives registration and broadcast until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxFeedConnections {
				h.mu.Unlock()
				conn.Close()
				h.logger.Warn("feed websocket rejected: max connections reached",
					zap.Int("max", maxFeedConnections))
				continue
			}
			h.clients[conn] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedFeedClients.Set(float64(total))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedFeedClients.Set(float64(total))

		case event := <-h.events:
			h.broadcast(event)
		}
	}
}

func (h *Hub) broadcast(event HubEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug("feed websocket write error", zap.Error(err))
			go func(c *websocket.Conn) { h.unregister <- c }(conn)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
	observability.ConnectedFeedClients.Set(0)
}

// ServeHTTP upgrades the request and registers the client. The read pump only
// watches for close frames.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("feed websocket upgrade failed", zap.Error(err))
		return
	}
	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
