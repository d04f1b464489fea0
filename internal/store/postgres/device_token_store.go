package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/types"
)

type DeviceTokenStore struct {
	db DBTX
}

func NewDeviceTokenStore(db DBTX) *DeviceTokenStore {
	return &DeviceTokenStore{db: db}
}

// SaveDeviceToken upserts the registration. Stored preferences survive a
// re-registration.
func (s *DeviceTokenStore) SaveDeviceToken(ctx context.Context, token *types.DeviceToken) error {
	prefs, err := json.Marshal(token.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	query := `
		INSERT INTO device_tokens (user_id, device_id, fcm_token, platform, last_used, preferences)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			fcm_token = EXCLUDED.fcm_token,
			platform = EXCLUDED.platform,
			last_used = EXCLUDED.last_used
	`
	if _, err := s.db.Exec(ctx, query,
		token.UserID,
		token.DeviceID,
		token.PushToken,
		string(token.Platform),
		token.LastUsed.UTC(),
		prefs,
	); err != nil {
		return fmt.Errorf("save device token %s/%s: %w", token.UserID, token.DeviceID, err)
	}
	return nil
}

func (s *DeviceTokenStore) GetDeviceTokens(ctx context.Context, userID string) ([]types.DeviceToken, error) {
	query := `
		SELECT user_id, device_id, fcm_token, platform, last_used, preferences
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY device_id
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get device tokens for %s: %w", userID, err)
	}
	defer rows.Close()

	var tokens []types.DeviceToken
	for rows.Next() {
		var (
			t        types.DeviceToken
			platform string
			prefs    []byte
		)
		if err := rows.Scan(&t.UserID, &t.DeviceID, &t.PushToken, &platform, &t.LastUsed, &prefs); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		t.Platform = types.Platform(platform)
		if len(prefs) > 0 {
			if err := json.Unmarshal(prefs, &t.Preferences); err != nil {
				return nil, fmt.Errorf("decode preferences for %s/%s: %w", t.UserID, t.DeviceID, err)
			}
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get device tokens for %s: %w", userID, err)
	}
	return tokens, nil
}

func (s *DeviceTokenStore) DeleteDeviceToken(ctx context.Context, userID, deviceID string) error {
	query := `DELETE FROM device_tokens WHERE user_id = $1 AND device_id = $2`
	if _, err := s.db.Exec(ctx, query, userID, deviceID); err != nil {
		return fmt.Errorf("delete device token %s/%s: %w", userID, deviceID, err)
	}
	return nil
}

func (s *DeviceTokenStore) TouchDeviceToken(ctx context.Context, userID, deviceID string, at time.Time) error {
	query := `UPDATE device_tokens SET last_used = $3 WHERE user_id = $1 AND device_id = $2`
	if _, err := s.db.Exec(ctx, query, userID, deviceID, at.UTC()); err != nil {
		return fmt.Errorf("touch device token %s/%s: %w", userID, deviceID, err)
	}
	return nil
}

func (s *DeviceTokenStore) UpdatePreferences(ctx context.Context, userID, deviceID string, prefs types.NotificationPreferences) error {
	encoded, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	query := `UPDATE device_tokens SET preferences = $3 WHERE user_id = $1 AND device_id = $2`
	tag, err := s.db.Exec(ctx, query, userID, deviceID, encoded)
	if err != nil {
		return fmt.Errorf("update preferences %s/%s: %w", userID, deviceID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
