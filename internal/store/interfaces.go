// Package store defines the persistence contracts used by the fanout engine,
// the protocol handler and the REST handlers. Backends live in subpackages.
package store

import (
	"context"
	"time"

	"github.com/NomadCrew/timer-sync-backend/types"
)

// TimerStore persists timers by id. Put is a full upsert.
type TimerStore interface {
	// GetTimer returns ErrNotFound when the timer does not exist.
	GetTimer(ctx context.Context, id string) (*types.Timer, error)
	PutTimer(ctx context.Context, timer *types.Timer) error
	DeleteTimer(ctx context.Context, id string) error
}

// SharingStore persists the many-to-many timer sharing edges.
type SharingStore interface {
	// AddRelationship is idempotent; an existing edge keeps its createdAt.
	AddRelationship(ctx context.Context, timerID, sharedWith string) error
	RemoveRelationship(ctx context.Context, timerID, sharedWith string) error
	ListSharedUsers(ctx context.Context, timerID string) ([]string, error)
	ListSharedTimerIDs(ctx context.Context, userID string) ([]string, error)
}

// ConnectionDirectory maps user devices to live transport handles.
type ConnectionDirectory interface {
	SaveConnection(ctx context.Context, userID, deviceID, connectionID string) error
	// ClearConnection empties the handle only while it still equals
	// connectionID. A mismatch is not an error.
	ClearConnection(ctx context.Context, userID, deviceID, connectionID string) error
	// LookupConnection resolves a handle to its owner; ErrNotFound if unknown.
	LookupConnection(ctx context.Context, connectionID string) (*types.Connection, error)
	ListUserConnections(ctx context.Context, userID string) ([]types.Connection, error)
}

// DeviceTokenStore persists push registrations and their preferences.
type DeviceTokenStore interface {
	SaveDeviceToken(ctx context.Context, token *types.DeviceToken) error
	GetDeviceTokens(ctx context.Context, userID string) ([]types.DeviceToken, error)
	DeleteDeviceToken(ctx context.Context, userID, deviceID string) error
	TouchDeviceToken(ctx context.Context, userID, deviceID string, at time.Time) error
	// UpdatePreferences returns ErrNotFound when the device is not registered.
	UpdatePreferences(ctx context.Context, userID, deviceID string, prefs types.NotificationPreferences) error
}

// Store bundles the backends constructed for one storage driver.
type Store struct {
	Timers       TimerStore
	Sharing      SharingStore
	Connections  ConnectionDirectory
	DeviceTokens DeviceTokenStore
	// Ping checks backend reachability for readiness probes.
	Ping func(ctx context.Context) error
	// Close releases backend resources.
	Close func()
}
