package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	invitationTitle = "Timer shared with you"
	// Devices per user are few; this only caps pathological registrations.
	maxDeviceSends = 8
)

// InvitationReport counts per-device outcomes of one invitation.
type InvitationReport struct {
	Sent    int
	Skipped int
	Failed  int
}

// NotificationService owns device push registrations and delivers sharing
// invitations through a PushGateway.
type NotificationService struct {
	tokens  store.DeviceTokenStore
	gateway PushGateway
	now     func() time.Time
	log     *zap.SugaredLogger
	metrics *serviceMetrics
}

func NewNotificationService(tokens store.DeviceTokenStore, gateway PushGateway) *NotificationService {
	return &NotificationService{
		tokens:  tokens,
		gateway: gateway,
		now:     time.Now,
		log:     logger.GetLogger().Named("NotificationService"),
		metrics: newServiceMetrics(),
	}
}

// RegisterDevice creates or refreshes the push token for one of the caller's
// devices. Stored preferences survive re-registration.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID string, req types.RegisterDeviceTokenRequest) error {
	if strings.TrimSpace(req.DeviceID) == "" || strings.TrimSpace(req.FCMToken) == "" {
		return apperrors.ValidationFailed("Invalid device registration", "deviceId and fcmToken are required")
	}

	token := &types.DeviceToken{
		UserID:      userID,
		DeviceID:    req.DeviceID,
		PushToken:   req.FCMToken,
		Platform:    types.NormalizePlatform(req.Platform),
		LastUsed:    s.now().UTC(),
		Preferences: types.DefaultNotificationPreferences(),
	}
	if err := s.tokens.SaveDeviceToken(ctx, token); err != nil {
		return apperrors.Dependency("register device token", err)
	}

	s.log.Infow("Registered device token",
		"userID", userID,
		"deviceID", req.DeviceID,
		"platform", token.Platform,
		"token", logger.MaskPushToken(req.FCMToken))
	return nil
}

func (s *NotificationService) UnregisterDevice(ctx context.Context, userID, deviceID string) error {
	if err := s.tokens.DeleteDeviceToken(ctx, userID, deviceID); err != nil {
		return apperrors.Dependency("remove device token", err)
	}
	return nil
}

// UpdatePreferences merges the supplied fields into the device's stored
// preferences. An empty quiet-hours bound clears it.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID, deviceID string, req types.UpdatePreferencesRequest) error {
	for field, v := range map[string]*string{"quiet_hours_start": req.QuietHoursStart, "quiet_hours_end": req.QuietHoursEnd} {
		if v != nil && *v != "" && !types.ValidClock(*v) {
			return apperrors.ValidationFailed("Invalid notification preferences", fmt.Sprintf("%s must be HH:MM", field))
		}
	}

	tokens, err := s.tokens.GetDeviceTokens(ctx, userID)
	if err != nil {
		return apperrors.Dependency("load device tokens", err)
	}

	var prefs *types.NotificationPreferences
	for i := range tokens {
		if tokens[i].DeviceID == deviceID {
			prefs = &tokens[i].Preferences
			break
		}
	}
	if prefs == nil {
		return apperrors.NotFound("Device", deviceID)
	}

	if req.TimerInvitationsEnabled != nil {
		enabled := *req.TimerInvitationsEnabled
		prefs.TimerInvitationsEnabled = &enabled
	}
	if req.QuietHoursStart != nil {
		prefs.QuietHoursStart = *req.QuietHoursStart
	}
	if req.QuietHoursEnd != nil {
		prefs.QuietHoursEnd = *req.QuietHoursEnd
	}

	if err := s.tokens.UpdatePreferences(ctx, userID, deviceID, *prefs); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("Device", deviceID)
		}
		return apperrors.Dependency("update notification preferences", err)
	}
	return nil
}

// SendSharingInvitation notifies every eligible device of recipientID that
// sharerID shared timer with them. Only the token lookup can fail the call;
// per-device failures are counted and logged.
func (s *NotificationService) SendSharingInvitation(ctx context.Context, recipientID, sharerID string, timer *types.Timer) (InvitationReport, error) {
	tokens, err := s.tokens.GetDeviceTokens(ctx, recipientID)
	if err != nil {
		s.metrics.pushes.WithLabelValues(outcomeLookupFail).Inc()
		return InvitationReport{}, fmt.Errorf("failed to get device tokens for %s: %w", recipientID, err)
	}
	if len(tokens) == 0 {
		s.log.Debugw("No device tokens registered", "userID", recipientID)
		return InvitationReport{}, nil
	}

	msg := PushMessage{
		Title: invitationTitle,
		Body:  fmt.Sprintf("%s shared the timer %q with you", sharerID, timer.Name),
		Data: map[string]string{
			"type":     "timerShared",
			"timerId":  timer.ID,
			"sharedBy": sharerID,
		},
	}

	now := s.now()
	var sent, skipped, failed atomic.Int32

	p := pool.New().WithMaxGoroutines(maxDeviceSends)
	for _, token := range tokens {
		token := token
		if !token.Preferences.InvitationsEnabled() {
			s.metrics.pushes.WithLabelValues(outcomeSkippedDisabled).Inc()
			skipped.Add(1)
			continue
		}
		if token.Preferences.InQuietHours(now) {
			s.metrics.pushes.WithLabelValues(outcomeSkippedQuiet).Inc()
			skipped.Add(1)
			continue
		}

		p.Go(func() {
			if s.deliver(ctx, token, msg, now) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
		})
	}
	p.Wait()

	return InvitationReport{
		Sent:    int(sent.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}, nil
}

func (s *NotificationService) deliver(ctx context.Context, token types.DeviceToken, msg PushMessage, now time.Time) bool {
	err := s.gateway.Send(ctx, token.PushToken, msg)
	if err == nil {
		s.metrics.pushes.WithLabelValues(outcomeSent).Inc()
		if err := s.tokens.TouchDeviceToken(ctx, token.UserID, token.DeviceID, now.UTC()); err != nil {
			s.log.Warnw("Failed to refresh token lastUsed", "userID", token.UserID, "deviceID", token.DeviceID, "error", err)
		}
		return true
	}

	if stderrors.Is(err, types.ErrTokenUnregistered) {
		s.metrics.pushes.WithLabelValues(outcomeUnregistered).Inc()
		s.log.Infow("Removing unregistered device token",
			"userID", token.UserID,
			"deviceID", token.DeviceID,
			"token", logger.MaskPushToken(token.PushToken))
		if err := s.tokens.DeleteDeviceToken(ctx, token.UserID, token.DeviceID); err != nil {
			s.log.Warnw("Failed to delete unregistered token", "userID", token.UserID, "deviceID", token.DeviceID, "error", err)
		}
		return false
	}

	s.metrics.pushes.WithLabelValues(outcomeFailed).Inc()
	s.log.Warnw("Push delivery failed",
		"userID", token.UserID,
		"deviceID", token.DeviceID,
		"error", err)
	return false
}
