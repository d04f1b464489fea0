package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/types"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// socket is the part of *websocket.Conn the hub writes through.
type socket interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Client is one accepted socket. A user may hold several, one per device.
type Client struct {
	ID       string
	UserID   string
	DeviceID string
	conn     socket
	mu       sync.Mutex
	closed   bool
}

// HubConfig contains configuration options for the Hub.
type HubConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// DefaultHubConfig returns sensible defaults for Hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Hub keeps the sockets accepted by this process, keyed by connection id. It
// implements services.FrameSender for the embedded transport.
type Hub struct {
	log          *zap.SugaredLogger
	clients      map[string]*Client
	mu           sync.RWMutex
	shutdownOnce sync.Once
	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg ...HubConfig) *Hub {
	config := DefaultHubConfig()
	if len(cfg) > 0 {
		config = cfg[0]
	}

	return &Hub{
		log:          logger.GetLogger().Named("websocket_hub"),
		clients:      make(map[string]*Client),
		pingInterval: config.PingInterval,
		writeTimeout: config.WriteTimeout,
	}
}

// Register adds an accepted socket under connectionID.
func (h *Hub) Register(connectionID, userID, deviceID string, conn socket) *Client {
	client := &Client{ID: connectionID, UserID: userID, DeviceID: deviceID, conn: conn}

	h.mu.Lock()
	h.clients[connectionID] = client
	h.mu.Unlock()

	h.log.Infow("WebSocket connection registered",
		"userID", userID,
		"deviceID", deviceID,
		"connectionID", connectionID)
	return client
}

// Unregister removes and closes a connection.
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	client, ok := h.clients[connectionID]
	if ok {
		delete(h.clients, connectionID)
	}
	h.mu.Unlock()

	if ok {
		h.closeClient(client, websocket.StatusNormalClosure, "unregistered")
	}
}

func (h *Hub) closeClient(client *Client, code websocket.StatusCode, reason string) {
	client.mu.Lock()
	if client.closed {
		client.mu.Unlock()
		return
	}
	client.closed = true
	client.mu.Unlock()

	_ = client.conn.Close(code, reason)

	h.log.Infow("WebSocket connection closed",
		"userID", client.UserID,
		"connectionID", client.ID,
		"reason", reason)
}

// SendFrame writes frame as a text message. Connections this process does not
// hold are reported as types.ErrConnectionNotHeld; only a socket that reports a
// close status is types.ErrConnectionGone.
func (h *Hub) SendFrame(ctx context.Context, connectionID string, frame []byte) error {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return types.ErrConnectionNotHeld
	}

	client.mu.Lock()
	closed := client.closed
	client.mu.Unlock()
	if closed {
		// the handler that closed it clears the directory row itself
		return types.ErrConnectionNotHeld
	}

	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	if err := client.conn.Write(writeCtx, websocket.MessageText, frame); err != nil {
		if websocket.CloseStatus(err) != -1 {
			return fmt.Errorf("%w: %v", types.ErrConnectionGone, err)
		}
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ConnectionCount returns the number of sockets held by this process.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection with StatusGoingAway.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.mu.Lock()
		clients := make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			clients = append(clients, c)
		}
		h.clients = make(map[string]*Client)
		h.mu.Unlock()

		for _, c := range clients {
			h.closeClient(c, websocket.StatusGoingAway, "server shutdown")
		}
	})

	h.log.Info("WebSocket hub shutdown complete")
	return nil
}
