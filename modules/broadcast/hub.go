package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/go-monolith/mono/pkg/types"
)

// ErrHubClosed is returned by Register once the hub has shut down.
var ErrHubClosed = errors.New("hub closed")

// Hub tracks live WebSocket clients and routes encoded frames to their send
// queues. Room membership lives in the chat registry, not here.
type Hub struct {
	clients map[string]*Client // connectionID -> Client
	closed  bool
	done    chan struct{}
	logger  types.Logger
	mu      sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.logger.Info("Hub shutting down", "clients", h.ClientCount())
	h.closeAllClients()
	close(h.done)
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// closeAllClients closes all connected clients and waits for their write
// pumps to flush.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[string]*Client)
	h.closed = true
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
	for _, client := range clients {
		<-client.Done()
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	h.clients[client.ID] = client
	h.logger.Debug("Client registered", "connectionID", client.ID, "clients", len(h.clients))
	return nil
}

// Unregister removes a client and closes its send queue.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
	}
	h.mu.Unlock()

	if ok {
		client.Close()
		h.logger.Debug("Client unregistered", "connectionID", connID)
	}
}

// Send enqueues data for one connection without blocking.
func (h *Hub) Send(connID string, data []byte) error {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()

	if !ok {
		return ErrConnectionClosed
	}
	return client.Enqueue(data)
}

// ConnectionIDs returns the ids of every registered client.
func (h *Hub) ConnectionIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
