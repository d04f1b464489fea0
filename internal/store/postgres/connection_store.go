package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/jackc/pgx/v5"
)

type ConnectionStore struct {
	db  DBTX
	now func() time.Time
}

func NewConnectionStore(db DBTX) *ConnectionStore {
	return &ConnectionStore{db: db, now: time.Now}
}

func (s *ConnectionStore) SaveConnection(ctx context.Context, userID, deviceID, connectionID string) error {
	query := `
		INSERT INTO user_connections (user_id, device_id, connection_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			connection_id = EXCLUDED.connection_id,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.Exec(ctx, query, userID, deviceID, connectionID, s.now().UTC()); err != nil {
		return fmt.Errorf("save connection %s/%s: %w", userID, deviceID, err)
	}
	return nil
}

func (s *ConnectionStore) ClearConnection(ctx context.Context, userID, deviceID, connectionID string) error {
	query := `
		UPDATE user_connections
		SET connection_id = NULL, updated_at = $4
		WHERE user_id = $1 AND device_id = $2 AND connection_id = $3
	`
	if _, err := s.db.Exec(ctx, query, userID, deviceID, connectionID, s.now().UTC()); err != nil {
		return fmt.Errorf("clear connection %s/%s: %w", userID, deviceID, err)
	}
	return nil
}

func (s *ConnectionStore) LookupConnection(ctx context.Context, connectionID string) (*types.Connection, error) {
	query := `
		SELECT user_id, device_id, connection_id, updated_at
		FROM user_connections
		WHERE connection_id = $1
	`
	conn := &types.Connection{}
	err := s.db.QueryRow(ctx, query, connectionID).Scan(&conn.UserID, &conn.DeviceID, &conn.ConnectionID, &conn.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup connection %s: %w", connectionID, err)
	}
	return conn, nil
}

func (s *ConnectionStore) ListUserConnections(ctx context.Context, userID string) ([]types.Connection, error) {
	query := `
		SELECT user_id, device_id, connection_id, updated_at
		FROM user_connections
		WHERE user_id = $1 AND connection_id IS NOT NULL
		ORDER BY device_id
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections for %s: %w", userID, err)
	}
	defer rows.Close()

	var conns []types.Connection
	for rows.Next() {
		var c types.Connection
		if err := rows.Scan(&c.UserID, &c.DeviceID, &c.ConnectionID, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list connections for %s: %w", userID, err)
	}
	return conns, nil
}
