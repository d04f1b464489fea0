package router

import (
	"time"

	"github.com/NomadCrew/timer-sync-backend/config"
	"github.com/NomadCrew/timer-sync-backend/handlers"
	"github.com/NomadCrew/timer-sync-backend/internal/websocket"
	"github.com/NomadCrew/timer-sync-backend/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Dependencies holds everything needed to mount the routes. Exactly one of
// WSHandler and GatewayHandler is expected; RedisClient is optional.
type Dependencies struct {
	Config             *config.Config
	JWTValidator       middleware.Validator
	TimerHandler       *handlers.TimerHandler
	DeviceTokenHandler *handlers.DeviceTokenHandler
	AvatarHandler      *handlers.AvatarHandler
	HealthHandler      *handlers.HealthHandler
	WSHandler          *websocket.Handler
	GatewayHandler     *websocket.GatewayHandler
	RedisClient        redis.Cmdable
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(deps.Config))

	// Unauthenticated
	r.GET("/health", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	// The gateway calls disconnect and message with only a connection id;
	// identity comes from the directory lookup, so only the integration
	// holding the shared secret may call them.
	var integrationSecret gin.HandlerFunc
	if deps.GatewayHandler != nil {
		integrationSecret = middleware.IntegrationSecret(deps.Config.WebSocket.IntegrationSecret)
		integration := v1.Group("/ws", integrationSecret)
		integration.POST("/disconnect", deps.GatewayHandler.Disconnect)
		integration.POST("/message", deps.GatewayHandler.Message)
	}

	authRoutes := v1.Group("")
	authRoutes.Use(middleware.AuthMiddleware(deps.JWTValidator))
	if deps.RedisClient != nil {
		window := time.Duration(deps.Config.RateLimit.WindowSeconds) * time.Second
		authRoutes.Use(middleware.RateLimiter(deps.RedisClient, deps.Config.RateLimit.RequestsPerMinute, window))
	}

	switch {
	case deps.GatewayHandler != nil:
		authRoutes.POST("/ws/connect", integrationSecret, deps.GatewayHandler.Connect)
	case deps.WSHandler != nil:
		authRoutes.GET("/ws", deps.WSHandler.HandleWebSocket)
	}

	timerRoutes := authRoutes.Group("/timers")
	{
		timerRoutes.GET("/shared", deps.TimerHandler.ListSharedTimers)
		timerRoutes.POST("/shared", deps.TimerHandler.ShareTimer)
		timerRoutes.DELETE("/shared", deps.TimerHandler.RejectSharedTimer)
		timerRoutes.GET("/:timerId", deps.TimerHandler.GetTimer)
		timerRoutes.POST("/:timerId", deps.TimerHandler.SaveTimer)
	}

	deviceRoutes := authRoutes.Group("/device-tokens")
	{
		deviceRoutes.POST("", deps.DeviceTokenHandler.RegisterDeviceToken)
		deviceRoutes.DELETE("/:deviceId", deps.DeviceTokenHandler.RemoveDeviceToken)
		deviceRoutes.PUT("/:deviceId/preferences", deps.DeviceTokenHandler.UpdatePreferences)
	}

	if deps.AvatarHandler != nil {
		authRoutes.POST("/users/avatar", deps.AvatarHandler.UploadAvatar)
	}

	return r
}
