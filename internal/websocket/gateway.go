package websocket

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/middleware"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	gwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConnectionIDHeader is the header API Gateway integrations map the
// connection id into.
const ConnectionIDHeader = "connectionId"

// maxMessageBytes matches the API Gateway WebSocket frame limit.
const maxMessageBytes = 128 << 10

// ConnectionPoster is the subset of the API Gateway Management API client used
// to push frames.
type ConnectionPoster interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// GatewaySender delivers frames through the API Gateway callback endpoint.
type GatewaySender struct {
	client ConnectionPoster
}

func NewGatewaySender(client ConnectionPoster) *GatewaySender {
	return &GatewaySender{client: client}
}

// SendFrame maps GoneException to types.ErrConnectionGone.
func (s *GatewaySender) SendFrame(ctx context.Context, connectionID string, frame []byte) error {
	_, err := s.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         frame,
	})
	if err == nil {
		return nil
	}

	var gone *gwtypes.GoneException
	if stderrors.As(err, &gone) {
		return fmt.Errorf("%w: %v", types.ErrConnectionGone, err)
	}
	return fmt.Errorf("failed to post to connection: %w", err)
}

// GatewayHandler exposes the protocol as HTTP integration routes for the
// $connect, $disconnect and $default API Gateway routes.
type GatewayHandler struct {
	protocol *Protocol
	log      *zap.SugaredLogger
}

func NewGatewayHandler(protocol *Protocol) *GatewayHandler {
	return &GatewayHandler{
		protocol: protocol,
		log:      logger.GetLogger().Named("websocket_gateway"),
	}
}

// Connect expects an authenticated request.
func (h *GatewayHandler) Connect(c *gin.Context) {
	resp := h.protocol.Connect(c.Request.Context(), types.ConnectEvent{
		ConnectionID: c.GetHeader(ConnectionIDHeader),
		UserID:       c.GetString(string(middleware.UserIDKey)),
		DeviceID:     DeviceID(c),
	})
	writeProtocolResponse(c, resp)
}

func (h *GatewayHandler) Disconnect(c *gin.Context) {
	resp := h.protocol.Disconnect(c.Request.Context(), types.DisconnectEvent{
		ConnectionID: c.GetHeader(ConnectionIDHeader),
	})
	writeProtocolResponse(c, resp)
}

// Message resolves the sender from the connection id.
func (h *GatewayHandler) Message(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageBytes))
	if err != nil {
		h.log.Warnw("Failed to read message body", "error", err)
		writeProtocolResponse(c, errorResponse(http.StatusBadRequest, errInvalidMessage))
		return
	}

	resp := h.protocol.Message(c.Request.Context(), types.MessageEvent{
		ConnectionID: c.GetHeader(ConnectionIDHeader),
		Body:         body,
	})
	writeProtocolResponse(c, resp)
}

func writeProtocolResponse(c *gin.Context, resp types.ProtocolResponse) {
	if resp.Body == "" {
		c.Status(resp.StatusCode)
		return
	}
	c.Data(resp.StatusCode, "application/json", []byte(resp.Body))
}
