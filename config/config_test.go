package config

import (
	"testing"

	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	logger.IsTest = true
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:    "defaults with secret",
			envVars: map[string]string{"JWT_SECRET_KEY": testSecret},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DriverDynamo, cfg.Storage.Driver)
				assert.Equal(t, "Timers", cfg.Storage.TimersTable)
				assert.Equal(t, "SharedWithIndex", cfg.Storage.SharedWithIndex)
				assert.Equal(t, PushProviderFCM, cfg.Push.Provider)
				assert.Equal(t, 16, cfg.Fanout.MaxConcurrency)
				assert.Equal(t, "*", cfg.AllowedOrigin())
				assert.True(t, cfg.IsDevelopment())
			},
		},
		{
			name: "postgres driver and expo",
			envVars: map[string]string{
				"JWT_SECRET_KEY": testSecret,
				"STORAGE_DRIVER": DriverPostgres,
				"DB_HOST":        "db.internal",
				"DB_NAME":        "timers",
				"PUSH_PROVIDER":  PushProviderExpo,
				"PORT":           "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
				assert.Equal(t, "db.internal", cfg.Database.Host)
				assert.Equal(t, "9000", cfg.Server.Port)
				assert.Equal(t, "postgres://postgres:@db.internal:5432/timers?sslmode=disable", cfg.Database.URL())
			},
		},
		{
			name:        "missing JWT secret",
			envVars:     map[string]string{},
			expectError: true,
		},
		{
			name: "unknown storage driver",
			envVars: map[string]string{
				"JWT_SECRET_KEY": testSecret,
				"STORAGE_DRIVER": "cassandra",
			},
			expectError: true,
		},
		{
			name: "invalid callback url",
			envVars: map[string]string{
				"JWT_SECRET_KEY":         testSecret,
				"WEBSOCKET_CALLBACK_URL": "not a url",
			},
			expectError: true,
		},
		{
			name: "gateway mode without integration secret",
			envVars: map[string]string{
				"JWT_SECRET_KEY":         testSecret,
				"WEBSOCKET_CALLBACK_URL": "https://abc123.execute-api.us-east-1.amazonaws.com/prod",
			},
			expectError: true,
		},
		{
			name: "gateway mode with integration secret",
			envVars: map[string]string{
				"JWT_SECRET_KEY":               testSecret,
				"WEBSOCKET_CALLBACK_URL":       "https://abc123.execute-api.us-east-1.amazonaws.com/prod",
				"WEBSOCKET_INTEGRATION_SECRET": "gateway-shared-secret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "gateway-shared-secret", cfg.WebSocket.IntegrationSecret)
			},
		},
		{
			name: "zero fanout concurrency",
			envVars: map[string]string{
				"JWT_SECRET_KEY":         testSecret,
				"FANOUT_MAX_CONCURRENCY": "0",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET_KEY", "")
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := LoadConfig()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestAllowedOrigin(t *testing.T) {
	cfg := &Config{Server: ServerConfig{AllowedOrigins: []string{"https://timers.example.com", "https://other.example.com"}}}
	assert.Equal(t, "https://timers.example.com", cfg.AllowedOrigin())

	cfg.Server.AllowedOrigins = nil
	assert.Equal(t, "*", cfg.AllowedOrigin())
}

func TestContainsWildcard(t *testing.T) {
	assert.True(t, ContainsWildcard([]string{"https://a.example.com", "*"}))
	assert.False(t, ContainsWildcard([]string{"https://a.example.com"}))
	assert.False(t, ContainsWildcard(nil))
}
