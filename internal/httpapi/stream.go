package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/chainarb/core/internal/types"
)

// StreamHub broadcasts every terminal ExecutionResult to connected
// websocket clients. It satisfies internal/notify.Sink so it can be
// registered on the same Hub as the log/Telegram/NATS sinks — the live
// feed is just one more subscriber, not a special case, per spec.md §9's
// Design Notes on replacing ad hoc fan-out with a uniform subscriber
// registry.
type StreamHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewStreamHub builds an empty StreamHub. Origin checking is left to the
// caller's reverse proxy / CORS layer rather than duplicated here in Go.
func NewStreamHub() *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]chan []byte),
	}
}

// Name satisfies notify.Sink.
func (h *StreamHub) Name() string { return "websocket_feed" }

// Send satisfies notify.Sink: marshal the result and fan it out to every
// connected client's buffered channel, dropping the message for any
// client whose channel is currently full rather than blocking the
// Coordinator's notification goroutine.
func (h *StreamHub) Send(ctx context.Context, result types.ExecutionResult, opp types.Opportunity) error {
	payload, err := json.Marshal(toDTO(result))
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// ServeWS upgrades the request to a websocket connection and streams
// every subsequent Send call's payload to it until the client disconnects.
func (h *StreamHub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		close(ch)
		_ = conn.Close()
	}()

	// Drain client reads (required by gorilla/websocket to process
	// control frames/pings) in a goroutine; the connection is considered
	// dead the moment a read fails.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
