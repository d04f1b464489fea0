package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NomadCrew/timer-sync-backend/middleware"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	gwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPoster struct {
	mock.Mock
}

func (m *mockPoster) PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*apigatewaymanagementapi.PostToConnectionOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestGatewaySender_SendFrame(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the frame", func(t *testing.T) {
		poster := new(mockPoster)
		poster.On("PostToConnection", mock.Anything, mock.MatchedBy(func(in *apigatewaymanagementapi.PostToConnectionInput) bool {
			return *in.ConnectionId == "c1" && string(in.Data) == `{"type":"stopTimer"}`
		})).Return(&apigatewaymanagementapi.PostToConnectionOutput{}, nil)

		require.NoError(t, NewGatewaySender(poster).SendFrame(ctx, "c1", []byte(`{"type":"stopTimer"}`)))
		poster.AssertExpectations(t)
	})

	t.Run("gone exception", func(t *testing.T) {
		poster := new(mockPoster)
		poster.On("PostToConnection", mock.Anything, mock.Anything).Return(nil, &gwtypes.GoneException{Message: strPtr("gone")})

		err := NewGatewaySender(poster).SendFrame(ctx, "c1", []byte(`{}`))
		assert.ErrorIs(t, err, types.ErrConnectionGone)
	})

	t.Run("other failure", func(t *testing.T) {
		poster := new(mockPoster)
		poster.On("PostToConnection", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		err := NewGatewaySender(poster).SendFrame(ctx, "c1", []byte(`{}`))
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrConnectionGone)
	})
}

func strPtr(s string) *string { return &s }

func gatewayRouter(dir *memDirectory, fanout *mockFanout) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewGatewayHandler(NewProtocol(dir, fanout))
	r := gin.New()
	r.POST("/v1/ws/connect", func(c *gin.Context) {
		c.Set(string(middleware.UserIDKey), "alice")
		c.Next()
	}, h.Connect)
	r.POST("/v1/ws/disconnect", h.Disconnect)
	r.POST("/v1/ws/message", h.Message)
	return r
}

func TestGatewayHandler_Lifecycle(t *testing.T) {
	dir := newMemDirectory()
	r := gatewayRouter(dir, new(mockFanout))

	req := httptest.NewRequest(http.MethodPost, "/v1/ws/connect", nil)
	req.Header.Set(ConnectionIDHeader, "gw-1")
	req.Header.Set(DeviceIDHeader, "phone")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gw-1", dir.current("alice", "phone"))

	req = httptest.NewRequest(http.MethodPost, "/v1/ws/message", strings.NewReader(`{"data":{"type":"ping"}}`))
	req.Header.Set(ConnectionIDHeader, "gw-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"pong"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/v1/ws/disconnect", nil)
	req.Header.Set(ConnectionIDHeader, "gw-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, dir.current("alice", "phone"))

	req = httptest.NewRequest(http.MethodPost, "/v1/ws/message", strings.NewReader(`{"data":{"type":"ping"}}`))
	req.Header.Set(ConnectionIDHeader, "gw-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGatewayHandler_ConnectWithoutDevice(t *testing.T) {
	r := gatewayRouter(newMemDirectory(), new(mockFanout))

	req := httptest.NewRequest(http.MethodPost, "/v1/ws/connect?deviceId=", nil)
	req.Header.Set(ConnectionIDHeader, "gw-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
