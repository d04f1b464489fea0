package handlers

import (
	"context"
	"io"

	"github.com/NomadCrew/timer-sync-backend/types"
)

// TimerServiceInterface defines the timer operations needed by handlers.
type TimerServiceInterface interface {
	GetTimer(ctx context.Context, timerID string) (*types.Timer, error)
	SaveTimer(ctx context.Context, timerID, userID string, timer *types.Timer) (*types.Timer, error)
	ListSharedTimers(ctx context.Context, userID string) []types.Timer
	RejectShare(ctx context.Context, timerID, userID string) error
}

// TimerSharer materializes sharing edges and invites the targets.
type TimerSharer interface {
	ShareTimerWithUsers(ctx context.Context, timerID, sharerID string, targets []string, fallback *types.Timer) (*types.ShareResult, error)
}

// DeviceServiceInterface manages push registrations.
type DeviceServiceInterface interface {
	RegisterDevice(ctx context.Context, userID string, req types.RegisterDeviceTokenRequest) error
	UnregisterDevice(ctx context.Context, userID, deviceID string) error
	UpdatePreferences(ctx context.Context, userID, deviceID string, req types.UpdatePreferencesRequest) error
}

// AvatarUploader stores profile images.
type AvatarUploader interface {
	Upload(ctx context.Context, userID string, file io.Reader, size int64) (string, error)
	MaxBytes() int64
}

// HealthChecker produces the readiness report.
type HealthChecker interface {
	CheckHealth(ctx context.Context) types.HealthCheck
}
