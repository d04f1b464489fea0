package types

import (
	"strconv"
	"strings"
	"time"
)

// Platform identifies the client platform a push token belongs to.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
	PlatformUnknown Platform = "unknown"
)

// NormalizePlatform maps free-form client input onto a known Platform.
func NormalizePlatform(p string) Platform {
	switch Platform(strings.ToLower(strings.TrimSpace(p))) {
	case PlatformIOS:
		return PlatformIOS
	case PlatformAndroid:
		return PlatformAndroid
	case PlatformWeb:
		return PlatformWeb
	default:
		return PlatformUnknown
	}
}

// NotificationPreferences gates push delivery for a single device.
type NotificationPreferences struct {
	TimerInvitationsEnabled *bool  `json:"timerInvitationsEnabled,omitempty" dynamodbav:"timerInvitationsEnabled,omitempty"`
	QuietHoursStart         string `json:"quiet_hours_start,omitempty" dynamodbav:"quiet_hours_start,omitempty"`
	QuietHoursEnd           string `json:"quiet_hours_end,omitempty" dynamodbav:"quiet_hours_end,omitempty"`
}

// DefaultNotificationPreferences returns the preferences applied when none are stored.
func DefaultNotificationPreferences() NotificationPreferences {
	enabled := true
	return NotificationPreferences{TimerInvitationsEnabled: &enabled}
}

// InvitationsEnabled treats an unset flag as enabled.
func (p NotificationPreferences) InvitationsEnabled() bool {
	return p.TimerInvitationsEnabled == nil || *p.TimerInvitationsEnabled
}

// InQuietHours reports whether t falls inside the configured window. Windows
// whose start is after their end wrap past midnight. Start is inclusive, end is
// exclusive. A missing or malformed bound disables the window.
func (p NotificationPreferences) InQuietHours(t time.Time) bool {
	start, ok := parseClock(p.QuietHoursStart)
	if !ok {
		return false
	}
	end, ok := parseClock(p.QuietHoursEnd)
	if !ok || start == end {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

// parseClock parses "HH:MM" into minutes after midnight.
func parseClock(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// DeviceToken is a push registration for one of a user's devices.
type DeviceToken struct {
	UserID      string                  `json:"userId" dynamodbav:"userId"`
	DeviceID    string                  `json:"deviceId" dynamodbav:"deviceId"`
	PushToken   string                  `json:"fcmToken" dynamodbav:"fcmToken"`
	Platform    Platform                `json:"platform" dynamodbav:"platform"`
	LastUsed    time.Time               `json:"lastUsed" dynamodbav:"lastUsed"`
	Preferences NotificationPreferences `json:"notificationPreferences" dynamodbav:"notificationPreferences"`
}

// RegisterDeviceTokenRequest is the request body for registering a push token.
type RegisterDeviceTokenRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	FCMToken string `json:"fcmToken" binding:"required"`
	Platform string `json:"platform"`
}

// UpdatePreferencesRequest is the request body for changing a device's notification preferences.
type UpdatePreferencesRequest struct {
	TimerInvitationsEnabled *bool   `json:"timerInvitationsEnabled"`
	QuietHoursStart         *string `json:"quiet_hours_start"`
	QuietHoursEnd           *string `json:"quiet_hours_end"`
}

// ValidClock reports whether s is a well-formed "HH:MM" value.
func ValidClock(s string) bool {
	_, ok := parseClock(s)
	return ok
}
