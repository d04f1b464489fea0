package services

import (
	"context"
	"time"

	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConnectionCounter reports live sockets held by this process.
type ConnectionCounter interface {
	ConnectionCount() int
}

type HealthService struct {
	pingStore   func(ctx context.Context) error
	redisClient redis.Cmdable
	connections ConnectionCounter
	version     string
	startedAt   time.Time
	log         *zap.SugaredLogger
}

// NewHealthService checks the store and, when configured, Redis. redisClient
// and connections may be nil.
func NewHealthService(pingStore func(ctx context.Context) error, redisClient redis.Cmdable, connections ConnectionCounter, version string) *HealthService {
	return &HealthService{
		pingStore:   pingStore,
		redisClient: redisClient,
		connections: connections,
		version:     version,
		startedAt:   time.Now(),
		log:         logger.GetLogger().Named("health"),
	}
}

func (h *HealthService) CheckHealth(ctx context.Context) types.HealthCheck {
	components := make(map[string]types.HealthComponent)
	overall := types.HealthStatusUp

	storage := h.checkStorage(ctx)
	components["storage"] = storage
	overall = overall.Worse(storage.Status)

	if h.redisClient != nil {
		// Redis only backs rate limiting, so an outage degrades rather than fails.
		rc := h.checkRedis(ctx)
		components["redis"] = rc
		overall = overall.Worse(rc.Status)
	}

	check := types.HealthCheck{
		Status:     overall,
		Components: components,
		Version:    h.version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.connections != nil {
		n := h.connections.ConnectionCount()
		check.ActiveConnections = &n
	}
	return check
}

func (h *HealthService) checkStorage(ctx context.Context) types.HealthComponent {
	if h.pingStore == nil {
		return types.HealthComponent{Status: types.HealthStatusUp}
	}
	if err := h.pingStore(ctx); err != nil {
		h.log.Errorw("Storage health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Storage connection failed",
		}
	}
	return types.HealthComponent{Status: types.HealthStatusUp}
}

func (h *HealthService) checkRedis(ctx context.Context) types.HealthComponent {
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		h.log.Warnw("Redis health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDegraded,
			Details: "Redis connection failed",
		}
	}
	return types.HealthComponent{Status: types.HealthStatusUp}
}
