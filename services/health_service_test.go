package services

import (
	"context"
	"errors"
	"testing"

	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCounter int

func (f fixedCounter) ConnectionCount() int { return int(f) }

func okPing(context.Context) error { return nil }

func TestHealthService_CheckHealth(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		ping       func(context.Context) error
		setupRedis func(redismock.ClientMock)
		wantStatus types.HealthStatus
		wantRedis  types.HealthStatus
	}{
		{
			name:       "all up",
			ping:       okPing,
			setupRedis: func(m redismock.ClientMock) { m.ExpectPing().SetVal("PONG") },
			wantStatus: types.HealthStatusUp,
			wantRedis:  types.HealthStatusUp,
		},
		{
			name:       "storage down",
			ping:       func(context.Context) error { return errors.New("connection refused") },
			setupRedis: func(m redismock.ClientMock) { m.ExpectPing().SetVal("PONG") },
			wantStatus: types.HealthStatusDown,
			wantRedis:  types.HealthStatusUp,
		},
		{
			name:       "redis down degrades",
			ping:       okPing,
			setupRedis: func(m redismock.ClientMock) { m.ExpectPing().SetErr(errors.New("redis unavailable")) },
			wantStatus: types.HealthStatusDegraded,
			wantRedis:  types.HealthStatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			tt.setupRedis(mock)

			svc := NewHealthService(tt.ping, client, fixedCounter(3), "1.0.0")
			health := svc.CheckHealth(ctx)

			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Equal(t, tt.wantRedis, health.Components["redis"].Status)
			assert.Equal(t, "1.0.0", health.Version)
			assert.NotEmpty(t, health.Timestamp)
			require.NotNil(t, health.ActiveConnections)
			assert.Equal(t, 3, *health.ActiveConnections)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHealthService_WithoutRedis(t *testing.T) {
	svc := NewHealthService(okPing, nil, nil, "dev")
	health := svc.CheckHealth(context.Background())

	assert.Equal(t, types.HealthStatusUp, health.Status)
	assert.NotContains(t, health.Components, "redis")
	assert.Nil(t, health.ActiveConnections)
}
