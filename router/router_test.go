package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NomadCrew/timer-sync-backend/config"
	"github.com/NomadCrew/timer-sync-backend/handlers"
	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/internal/websocket"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/middleware"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	logger.IsTest = true
	gin.SetMode(gin.TestMode)
}

type staticValidator map[string]string

func (v staticValidator) Validate(token string) (string, error) {
	if sub, ok := v[token]; ok {
		return sub, nil
	}
	return "", errors.New("invalid")
}

type upChecker struct{}

func (upChecker) CheckHealth(context.Context) types.HealthCheck {
	return types.HealthCheck{Status: types.HealthStatusUp}
}

type stubTimers struct{}

func (stubTimers) GetTimer(_ context.Context, id string) (*types.Timer, error) {
	return &types.Timer{ID: id, UserID: "alice", Name: "Tea", TotalDuration: "300"}, nil
}
func (stubTimers) SaveTimer(_ context.Context, id, userID string, t *types.Timer) (*types.Timer, error) {
	return t, nil
}
func (stubTimers) ListSharedTimers(context.Context, string) []types.Timer { return []types.Timer{} }
func (stubTimers) RejectShare(context.Context, string, string) error    { return nil }

// stubDirectory knows a single connection, c-bob, owned by bob.
type stubDirectory struct{}

func (stubDirectory) SaveConnection(context.Context, string, string, string) error  { return nil }
func (stubDirectory) ClearConnection(context.Context, string, string, string) error { return nil }
func (stubDirectory) LookupConnection(_ context.Context, connectionID string) (*types.Connection, error) {
	if connectionID != "c-bob" {
		return nil, store.ErrNotFound
	}
	return &types.Connection{UserID: "bob", DeviceID: "phone", ConnectionID: connectionID}, nil
}
func (stubDirectory) ListUserConnections(context.Context, string) ([]types.Connection, error) {
	return nil, nil
}

const gatewaySecret = "gateway-shared-secret"

func testDeps(gateway bool) Dependencies {
	cfg := &config.Config{
		Server:    config.ServerConfig{AllowedOrigins: []string{"*"}},
		WebSocket: config.WebSocketConfig{IntegrationSecret: gatewaySecret},
	}
	deps := Dependencies{
		Config:             cfg,
		JWTValidator:       staticValidator{"good": "alice"},
		TimerHandler:       handlers.NewTimerHandler(stubTimers{}, nil, zap.NewNop()),
		DeviceTokenHandler: handlers.NewDeviceTokenHandler(nil, zap.NewNop()),
		HealthHandler:      handlers.NewHealthHandler(upChecker{}),
	}
	if gateway {
		deps.GatewayHandler = websocket.NewGatewayHandler(websocket.NewProtocol(stubDirectory{}, nil))
	} else {
		deps.WSHandler = websocket.NewHandler(websocket.NewHub(), nil, &cfg.Server)
	}
	return deps
}

func TestSetupRouter_PublicRoutes(t *testing.T) {
	r := SetupRouter(testDeps(false))

	for _, path := range []string{"/health", "/health/readiness", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "OPTIONS,GET,POST,PUT,PATCH,DELETE", w.Header().Get("Access-Control-Allow-Methods"), path)
	}
}

func TestSetupRouter_AuthenticatedRoutes(t *testing.T) {
	r := SetupRouter(testDeps(false))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/timers/t1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/v1/timers/t1", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"t1"`)

	req = httptest.NewRequest(http.MethodGet, "/v1/timers/shared", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSetupRouter_TransportModes(t *testing.T) {
	embedded := SetupRouter(testDeps(false))
	w := httptest.NewRecorder()
	embedded.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/ws/message", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	gw := SetupRouter(testDeps(true))
	w = httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ws", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/ws/connect", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetupRouter_GatewayIntegrationRoutesRequireSecret(t *testing.T) {
	r := SetupRouter(testDeps(true))
	ping := `{"data":{"type":"ping"}}`

	send := func(path, secret string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(ping))
		req.Header.Set(websocket.ConnectionIDHeader, "c-bob")
		if secret != "" {
			req.Header.Set(middleware.IntegrationSecretHeader, secret)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	// a caller that knows bob's connection id but not the secret
	for _, path := range []string{"/v1/ws/message", "/v1/ws/disconnect"} {
		assert.Equal(t, http.StatusUnauthorized, send(path, "").Code, path)
		assert.Equal(t, http.StatusUnauthorized, send(path, "guessed").Code, path)
	}

	w := send("/v1/ws/message", gatewaySecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"pong"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/v1/ws/connect", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(websocket.ConnectionIDHeader, "c-new")
	req.Header.Set(websocket.DeviceIDHeader, "phone")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
