// Package websocket implements the socket lifecycle protocol and the two
// transports that carry it: an embedded nhooyr hub and API Gateway callbacks.
package websocket

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"runtime/debug"
	"strings"

	apperrors "github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/services"
	"github.com/NomadCrew/timer-sync-backend/types"
	"go.uber.org/zap"
)

// TimerFanout is the subset of services.FanoutService the protocol drives.
type TimerFanout interface {
	StopTimer(ctx context.Context, timerID, actingUserID string, timerData *types.Timer) (*services.FanoutResult, error)
	UpdateTimer(ctx context.Context, timer *types.Timer, actingUserID string, shareWith []string) (*services.FanoutResult, error)
	SyncActiveTimers(ctx context.Context, actingUserID, originConnectionID string, data []byte) *services.FanoutResult
}

const (
	errInvalidMessage = "Invalid message format"
	errInternal       = "Internal server error"
)

var successBody = mustJSON(map[string]string{"status": "success"})

// Protocol turns connect, disconnect and message events into directory
// updates and fanout calls. It is transport agnostic.
type Protocol struct {
	connections store.ConnectionDirectory
	fanout      TimerFanout
	log         *zap.SugaredLogger
}

func NewProtocol(connections store.ConnectionDirectory, fanout TimerFanout) *Protocol {
	return &Protocol{
		connections: connections,
		fanout:      fanout,
		log:         logger.GetLogger().Named("websocket_protocol"),
	}
}

// Connect records the connection as the device's live handle.
func (p *Protocol) Connect(ctx context.Context, ev types.ConnectEvent) types.ProtocolResponse {
	if ev.UserID == "" {
		return errorResponse(http.StatusUnauthorized, "Unauthorized")
	}
	if strings.TrimSpace(ev.DeviceID) == "" {
		return errorResponse(http.StatusBadRequest, "Device ID is required")
	}
	if ev.ConnectionID == "" {
		return errorResponse(http.StatusBadRequest, "Connection ID is required")
	}

	if err := p.connections.SaveConnection(ctx, ev.UserID, ev.DeviceID, ev.ConnectionID); err != nil {
		p.log.Errorw("Failed to save connection",
			"userID", ev.UserID,
			"deviceID", ev.DeviceID,
			"connectionID", ev.ConnectionID,
			"error", err)
		return errorResponse(http.StatusInternalServerError, "Failed to connect")
	}

	p.log.Infow("Connection established",
		"userID", ev.UserID,
		"deviceID", ev.DeviceID,
		"connectionID", ev.ConnectionID)
	return types.ProtocolResponse{StatusCode: http.StatusOK, Body: successBody}
}

// Disconnect clears the device's handle if it is still this connection.
// Events without user and device are resolved from the connection id; an
// unknown connection is a no-op.
func (p *Protocol) Disconnect(ctx context.Context, ev types.DisconnectEvent) types.ProtocolResponse {
	userID, deviceID := ev.UserID, ev.DeviceID
	if userID == "" || deviceID == "" {
		conn, err := p.connections.LookupConnection(ctx, ev.ConnectionID)
		if err != nil {
			if !stderrors.Is(err, store.ErrNotFound) {
				p.log.Warnw("Failed to resolve disconnecting connection", "connectionID", ev.ConnectionID, "error", err)
			}
			return types.ProtocolResponse{StatusCode: http.StatusOK, Body: successBody}
		}
		userID, deviceID = conn.UserID, conn.DeviceID
	}

	if err := p.connections.ClearConnection(ctx, userID, deviceID, ev.ConnectionID); err != nil {
		p.log.Errorw("Failed to clear connection",
			"userID", userID,
			"deviceID", deviceID,
			"connectionID", ev.ConnectionID,
			"error", err)
		return errorResponse(http.StatusInternalServerError, "Failed to disconnect")
	}

	p.log.Infow("Connection closed", "userID", userID, "deviceID", deviceID, "connectionID", ev.ConnectionID)
	return types.ProtocolResponse{StatusCode: http.StatusOK, Body: successBody}
}

// Message parses an inbound envelope and dispatches on data.type. Unknown
// types succeed without doing anything. A panic while handling the message
// is answered with a generic 500 and the connection stays open.
func (p *Protocol) Message(ctx context.Context, ev types.MessageEvent) (resp types.ProtocolResponse) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("Panic while handling message recovered",
				"recover", r,
				"connectionID", ev.ConnectionID,
				"stack", string(debug.Stack()))
			resp = errorResponse(http.StatusInternalServerError, errInternal)
		}
	}()

	userID := ev.UserID
	if userID == "" {
		conn, err := p.connections.LookupConnection(ctx, ev.ConnectionID)
		if err != nil {
			if !stderrors.Is(err, store.ErrNotFound) {
				p.log.Warnw("Failed to resolve message sender", "connectionID", ev.ConnectionID, "error", err)
			}
			return errorResponse(http.StatusUnauthorized, "Unauthorized")
		}
		userID = conn.UserID
	}

	var envelope types.Envelope
	if err := json.Unmarshal(ev.Body, &envelope); err != nil || len(envelope.Data) == 0 {
		return errorResponse(http.StatusBadRequest, errInvalidMessage)
	}
	var header types.MessageHeader
	if err := json.Unmarshal(envelope.Data, &header); err != nil {
		return errorResponse(http.StatusBadRequest, errInvalidMessage)
	}

	switch header.Type {
	case types.MessageTypePing:
		return p.pong(envelope.Data)

	case types.MessageTypeAcknowledge:
		return types.ProtocolResponse{StatusCode: http.StatusOK}

	case types.MessageTypeActiveTimerList:
		p.fanout.SyncActiveTimers(ctx, userID, ev.ConnectionID, envelope.Data)
		return types.ProtocolResponse{StatusCode: http.StatusOK, Body: successBody}

	case types.MessageTypeStopTimer:
		var data types.StopTimerData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return errorResponse(http.StatusBadRequest, errInvalidMessage)
		}
		_, err := p.fanout.StopTimer(ctx, data.TimerID, userID, data.Timer)
		return p.fanoutResponse(header.Type, userID, err)

	case types.MessageTypeUpdateTimer:
		var data types.UpdateTimerData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return errorResponse(http.StatusBadRequest, errInvalidMessage)
		}
		_, err := p.fanout.UpdateTimer(ctx, data.Timer, userID, data.ShareWith)
		return p.fanoutResponse(header.Type, userID, err)

	default:
		p.log.Debugw("Ignoring unrecognized message type", "userID", userID, "type", header.Type)
		return types.ProtocolResponse{StatusCode: http.StatusOK, Body: successBody}
	}
}

// pong echoes the ping payload with its type switched.
func (p *Protocol) pong(data json.RawMessage) types.ProtocolResponse {
	var echo map[string]any
	if err := json.Unmarshal(data, &echo); err != nil {
		return errorResponse(http.StatusBadRequest, errInvalidMessage)
	}
	echo["type"] = types.MessageTypePong
	return types.ProtocolResponse{StatusCode: http.StatusOK, Body: mustJSON(echo)}
}

func (p *Protocol) fanoutResponse(messageType, userID string, err error) types.ProtocolResponse {
	if err == nil {
		return types.ProtocolResponse{StatusCode: http.StatusOK, Body: successBody}
	}

	appErr, ok := apperrors.As(err)
	switch {
	case ok && appErr.Type == apperrors.ValidationError:
		return errorResponse(http.StatusBadRequest, appErr.Message+": "+appErr.Detail)
	case ok && appErr.Type == apperrors.DependencyError:
		// already logged where it happened; the fanout itself went out
		p.log.Warnw("Message handled with a failed write", "type", messageType, "userID", userID, "error", err)
		return types.ProtocolResponse{StatusCode: http.StatusOK, Body: successBody}
	default:
		p.log.Errorw("Failed to handle message", "type", messageType, "userID", userID, "error", err)
		return errorResponse(http.StatusInternalServerError, errInternal)
	}
}

func errorResponse(status int, message string) types.ProtocolResponse {
	return types.ProtocolResponse{StatusCode: status, Body: mustJSON(map[string]string{"error": message})}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
