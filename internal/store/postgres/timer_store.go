package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/jackc/pgx/v5"
)

type TimerStore struct {
	db DBTX
}

func NewTimerStore(db DBTX) *TimerStore {
	return &TimerStore{db: db}
}

func (s *TimerStore) GetTimer(ctx context.Context, id string) (*types.Timer, error) {
	query := `
		SELECT id, user_id, name, total_duration, remaining_duration, timer_end
		FROM timers
		WHERE id = $1
	`

	timer := &types.Timer{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&timer.ID,
		&timer.UserID,
		&timer.Name,
		&timer.TotalDuration,
		&timer.RemainingDuration,
		&timer.EndTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get timer %s: %w", id, err)
	}
	return timer, nil
}

func (s *TimerStore) PutTimer(ctx context.Context, timer *types.Timer) error {
	query := `
		INSERT INTO timers (id, user_id, name, total_duration, remaining_duration, timer_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			total_duration = EXCLUDED.total_duration,
			remaining_duration = EXCLUDED.remaining_duration,
			timer_end = EXCLUDED.timer_end,
			updated_at = NOW()
	`

	if _, err := s.db.Exec(ctx, query,
		timer.ID,
		timer.UserID,
		timer.Name,
		timer.TotalDuration,
		timer.RemainingDuration,
		timer.EndTime,
	); err != nil {
		return fmt.Errorf("put timer %s: %w", timer.ID, err)
	}
	return nil
}

func (s *TimerStore) DeleteTimer(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM timers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete timer %s: %w", id, err)
	}
	return nil
}
