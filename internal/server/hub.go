package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/notifier"
)

const writeTimeout = 2 * time.Second

// Hub tracks connected foreground apps and fans scheduler events out to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]string
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]string)}
}

func (h *Hub) add(conn *websocket.Conn, remote string) {
	h.mu.Lock()
	h.clients[conn] = remote
	n := len(h.clients)
	h.mu.Unlock()
	connectedClients.Set(float64(n))
	logger.Info("Foreground connected", "remote", remote, "clients", n)
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	remote := h.clients[conn]
	delete(h.clients, conn)
	n := len(h.clients)
	h.mu.Unlock()
	connectedClients.Set(float64(n))
	logger.Info("Foreground disconnected", "remote", remote, "clients", n)
}

// Len reports how many foregrounds are connected.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dispatch writes env to every connected foreground and returns how many
// accepted it.
func (h *Hub) Dispatch(ctx context.Context, env notifier.Envelope) (int, error) {
	data, err := env.Marshal()
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	delivered := 0
	var errs []error
	for _, c := range conns {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

var _ notifier.Dispatcher = (*Hub)(nil)
