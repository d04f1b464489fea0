package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NomadCrew/timer-sync-backend/config"
	"github.com/NomadCrew/timer-sync-backend/handlers"
	"github.com/NomadCrew/timer-sync-backend/internal/awsclient"
	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/internal/store/dynamo"
	"github.com/NomadCrew/timer-sync-backend/internal/store/postgres"
	"github.com/NomadCrew/timer-sync-backend/internal/websocket"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/middleware"
	"github.com/NomadCrew/timer-sync-backend/router"
	"github.com/NomadCrew/timer-sync-backend/services"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer func() { _ = logger.Close() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Shared by every AWS client.
	awsCfg, err := awsclient.Load(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	st, err := openStore(ctx, cfg, awsCfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer st.Close()

	// Redis only backs rate limiting and is optional.
	var redisClient redis.Cmdable
	if cfg.Redis.Address != "" {
		client := redis.NewClient(config.RedisOptions(&cfg.Redis))
		defer client.Close()
		if err := config.PingRedis(ctx, client, 5, 2*time.Second); err != nil {
			log.Warnw("Redis unavailable at startup, rate limiter will pass requests through", "error", err)
		}
		redisClient = client
	}

	pushGateway, err := services.NewPushGateway(ctx, cfg.Push)
	if err != nil {
		log.Fatalf("Failed to initialize push gateway: %v", err)
	}
	notifications := services.NewNotificationService(st.DeviceTokens, pushGateway)

	// The live-send port is either this process's socket hub or the API
	// Gateway management endpoint.
	var (
		hub    *websocket.Hub
		sender services.FrameSender
	)
	if cfg.WebSocket.CallbackURL != "" {
		sender = websocket.NewGatewaySender(awsclient.NewGatewayManagement(awsCfg, cfg.WebSocket.CallbackURL))
		log.Infow("Using API Gateway WebSocket transport", "callbackURL", cfg.WebSocket.CallbackURL)
	} else {
		hub = websocket.NewHub(websocket.HubConfig{
			PingInterval: time.Duration(cfg.WebSocket.PingIntervalSeconds) * time.Second,
			WriteTimeout: time.Duration(cfg.WebSocket.WriteTimeoutSeconds) * time.Second,
		})
		sender = hub
	}

	fanout := services.NewFanoutService(st, sender, notifications, cfg.Fanout.MaxConcurrency)
	timers := services.NewTimerService(st, cfg.Fanout.MaxConcurrency)
	protocol := websocket.NewProtocol(st.Connections, fanout)

	validator, err := middleware.NewJWTValidator(cfg.Server.JwtSecretKey)
	if err != nil {
		log.Fatalf("Failed to initialize JWT validator: %v", err)
	}

	zapLog := log.Desugar()
	deps := router.Dependencies{
		Config:             cfg,
		JWTValidator:       validator,
		TimerHandler:       handlers.NewTimerHandler(timers, fanout, zapLog),
		DeviceTokenHandler: handlers.NewDeviceTokenHandler(notifications, zapLog),
		RedisClient:        redisClient,
	}

	var counter services.ConnectionCounter
	if hub != nil {
		deps.WSHandler = websocket.NewHandler(hub, protocol, &cfg.Server)
		counter = hub
	} else {
		deps.GatewayHandler = websocket.NewGatewayHandler(protocol)
	}
	deps.HealthHandler = handlers.NewHealthHandler(services.NewHealthService(st.Ping, redisClient, counter, cfg.Server.Version))

	if cfg.Avatar.Bucket != "" {
		avatars := services.NewAvatarService(awsclient.NewS3(awsCfg, cfg.AWS.Endpoint), cfg.Avatar)
		deps.AvatarHandler = handlers.NewAvatarHandler(avatars, zapLog)
	} else {
		log.Info("Avatar bucket not configured, avatar uploads disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.SetupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port, "environment", cfg.Server.Environment, "storage", cfg.Storage.Driver)
		errCh <- srv.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Infow("Received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("Server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Close sockets first so their handlers return and srv.Shutdown can finish.
	if hub != nil {
		if err := hub.Shutdown(shutdownCtx); err != nil {
			log.Warnw("WebSocket hub shutdown incomplete", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	log.Info("Shutdown complete")
}

// openStore connects the configured storage driver.
func openStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (*store.Store, error) {
	log := logger.GetLogger()

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := postgres.RunMigrations(cfg.Database.URL()); err != nil {
			return nil, err
		}
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		log.Infow("Using PostgreSQL storage", "host", cfg.Database.Host, "database", cfg.Database.Name)
		return postgres.New(pool), nil
	default:
		client := awsclient.NewDynamoDB(awsCfg, cfg.AWS.Endpoint)
		log.Infow("Using DynamoDB storage", "region", cfg.AWS.Region, "timersTable", cfg.Storage.TimersTable)
		return dynamo.New(client, cfg.Storage), nil
	}
}
