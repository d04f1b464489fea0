package handlers

import (
	"context"
	"io"

	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/stretchr/testify/mock"
)

type MockTimerService struct {
	mock.Mock
}

func (m *MockTimerService) GetTimer(ctx context.Context, timerID string) (*types.Timer, error) {
	args := m.Called(ctx, timerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Timer), args.Error(1)
}

func (m *MockTimerService) SaveTimer(ctx context.Context, timerID, userID string, timer *types.Timer) (*types.Timer, error) {
	args := m.Called(ctx, timerID, userID, timer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Timer), args.Error(1)
}

func (m *MockTimerService) ListSharedTimers(ctx context.Context, userID string) []types.Timer {
	args := m.Called(ctx, userID)
	return args.Get(0).([]types.Timer)
}

func (m *MockTimerService) RejectShare(ctx context.Context, timerID, userID string) error {
	return m.Called(ctx, timerID, userID).Error(0)
}

type MockSharer struct {
	mock.Mock
}

func (m *MockSharer) ShareTimerWithUsers(ctx context.Context, timerID, sharerID string, targets []string, fallback *types.Timer) (*types.ShareResult, error) {
	args := m.Called(ctx, timerID, sharerID, targets, fallback)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ShareResult), args.Error(1)
}

type MockDeviceService struct {
	mock.Mock
}

func (m *MockDeviceService) RegisterDevice(ctx context.Context, userID string, req types.RegisterDeviceTokenRequest) error {
	return m.Called(ctx, userID, req).Error(0)
}

func (m *MockDeviceService) UnregisterDevice(ctx context.Context, userID, deviceID string) error {
	return m.Called(ctx, userID, deviceID).Error(0)
}

func (m *MockDeviceService) UpdatePreferences(ctx context.Context, userID, deviceID string, req types.UpdatePreferencesRequest) error {
	return m.Called(ctx, userID, deviceID, req).Error(0)
}

type MockAvatarUploader struct {
	mock.Mock
	maxBytes int64
	received []byte
}

func (m *MockAvatarUploader) Upload(ctx context.Context, userID string, file io.Reader, size int64) (string, error) {
	m.received, _ = io.ReadAll(file)
	args := m.Called(ctx, userID, size)
	return args.String(0), args.Error(1)
}

func (m *MockAvatarUploader) MaxBytes() int64 {
	return m.maxBytes
}

type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) CheckHealth(ctx context.Context) types.HealthCheck {
	return m.Called(ctx).Get(0).(types.HealthCheck)
}
