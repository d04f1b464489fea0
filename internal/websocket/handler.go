package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/NomadCrew/timer-sync-backend/config"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/middleware"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// DeviceIDHeader carries the client's stable device identifier.
const DeviceIDHeader = "X-Device-ID"

// disconnectTimeout bounds the directory write made after a socket closes.
const disconnectTimeout = 5 * time.Second

// Handler upgrades authenticated requests and runs the socket loops.
type Handler struct {
	log            *zap.SugaredLogger
	hub            *Hub
	protocol       *Protocol
	pingInterval   time.Duration
	writeTimeout   time.Duration
	allowedOrigins []string
	isDevelopment  bool
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, protocol *Protocol, serverCfg *config.ServerConfig) *Handler {
	return &Handler{
		log:            logger.GetLogger().Named("websocket_handler"),
		hub:            hub,
		protocol:       protocol,
		pingInterval:   hub.pingInterval,
		writeTimeout:   hub.writeTimeout,
		allowedOrigins: serverCfg.AllowedOrigins,
		isDevelopment:  serverCfg.Environment == config.EnvDevelopment,
	}
}

// getAcceptOptions allows every origin in development or when "*" is
// configured, otherwise only the configured origins.
func (h *Handler) getAcceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	}
	if h.isDevelopment || config.ContainsWildcard(h.allowedOrigins) {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.allowedOrigins
	}
	return opts
}

// DeviceID reads the device id header, falling back to the deviceId query
// parameter for browsers that cannot set headers on upgrade.
func DeviceID(c *gin.Context) string {
	if id := c.GetHeader(DeviceIDHeader); id != "" {
		return id
	}
	return c.Query("deviceId")
}

// HandleWebSocket registers the device, upgrades the request and serves the
// socket until either side closes it.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString(string(middleware.UserIDKey))
	deviceID := DeviceID(c)
	connectionID := uuid.NewString()

	// Register before upgrading so failures surface as plain HTTP errors.
	resp := h.protocol.Connect(c.Request.Context(), types.ConnectEvent{
		ConnectionID: connectionID,
		UserID:       userID,
		DeviceID:     deviceID,
	})
	if resp.StatusCode != http.StatusOK {
		c.Data(resp.StatusCode, "application/json", []byte(resp.Body))
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, h.getAcceptOptions())
	if err != nil {
		h.log.Errorw("Failed to accept WebSocket connection",
			"userID", userID,
			"error", err)
		h.disconnect(connectionID, userID, deviceID)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	client := h.hub.Register(connectionID, userID, deviceID, conn)
	defer func() {
		h.hub.Unregister(connectionID)
		h.disconnect(connectionID, userID, deviceID)
	}()

	if err := h.sendJSON(ctx, conn, gin.H{
		"type":         "connected",
		"connectionId": connectionID,
		"deviceId":     deviceID,
	}); err != nil {
		h.log.Errorw("Failed to send connected message", "userID", userID, "error", err)
		return
	}

	errCh := make(chan error, 2)
	go func() { errCh <- h.readLoop(ctx, conn, client) }()
	go func() { errCh <- h.pingLoop(ctx, conn) }()

	err = <-errCh
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure && websocket.CloseStatus(err) != websocket.StatusGoingAway {
		h.log.Warnw("WebSocket connection error",
			"userID", userID,
			"connectionID", connectionID,
			"error", err)
	}
}

func (h *Handler) disconnect(connectionID, userID, deviceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	h.protocol.Disconnect(ctx, types.DisconnectEvent{
		ConnectionID: connectionID,
		UserID:       userID,
		DeviceID:     deviceID,
	})
}

// readLoop hands every inbound frame to the protocol and writes back its
// response body, if any.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		resp := h.protocol.Message(ctx, types.MessageEvent{
			ConnectionID: client.ID,
			UserID:       client.UserID,
			Body:         data,
		})
		if resp.Body == "" {
			continue
		}

		writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		err = conn.Write(writeCtx, websocket.MessageText, []byte(resp.Body))
		cancel()
		if err != nil {
			return err
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (h *Handler) sendJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, v)
}
