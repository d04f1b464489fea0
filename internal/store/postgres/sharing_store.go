package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type SharingStore struct {
	db  DBTX
	now func() time.Time
}

func NewSharingStore(db DBTX) *SharingStore {
	return &SharingStore{db: db, now: time.Now}
}

// AddRelationship inserts the edge; an existing edge keeps its created_at.
func (s *SharingStore) AddRelationship(ctx context.Context, timerID, sharedWith string) error {
	query := `
		INSERT INTO shared_timers (timer_id, shared_with, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (timer_id, shared_with) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, timerID, sharedWith, s.now().UTC()); err != nil {
		return fmt.Errorf("add relationship %s->%s: %w", timerID, sharedWith, err)
	}
	return nil
}

func (s *SharingStore) RemoveRelationship(ctx context.Context, timerID, sharedWith string) error {
	query := `DELETE FROM shared_timers WHERE timer_id = $1 AND shared_with = $2`
	if _, err := s.db.Exec(ctx, query, timerID, sharedWith); err != nil {
		return fmt.Errorf("remove relationship %s->%s: %w", timerID, sharedWith, err)
	}
	return nil
}

func (s *SharingStore) ListSharedUsers(ctx context.Context, timerID string) ([]string, error) {
	query := `SELECT shared_with FROM shared_timers WHERE timer_id = $1 ORDER BY created_at, shared_with`
	return s.collect(ctx, query, timerID)
}

func (s *SharingStore) ListSharedTimerIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT timer_id FROM shared_timers WHERE shared_with = $1 ORDER BY created_at, timer_id`
	return s.collect(ctx, query, userID)
}

func (s *SharingStore) collect(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query shared timers: %w", err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan shared timers: %w", err)
	}
	return values, nil
}
