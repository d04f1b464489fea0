package services

import (
	"context"
	stderrors "errors"
	"strings"

	apperrors "github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/types"
	"go.uber.org/zap"
)

// TimerService backs the REST timer endpoints. Reads swallow dependency
// failures; writes return them.
type TimerService struct {
	timers  store.TimerStore
	sharing store.SharingStore
	limit   int
	log     *zap.SugaredLogger
}

func NewTimerService(st *store.Store, maxConcurrency int) *TimerService {
	return &TimerService{
		timers:  st.Timers,
		sharing: st.Sharing,
		limit:   maxConcurrency,
		log:     logger.GetLogger().Named("TimerService"),
	}
}

// GetTimer returns NotFound for both a missing timer and an unreachable store.
func (s *TimerService) GetTimer(ctx context.Context, timerID string) (*types.Timer, error) {
	timer, err := s.timers.GetTimer(ctx, timerID)
	if err != nil {
		if !stderrors.Is(err, store.ErrNotFound) {
			s.log.Warnw("Failed to read timer", "timerID", timerID, "error", err)
		}
		return nil, apperrors.TimerNotFound(timerID)
	}
	return timer, nil
}

// SaveTimer persists timer under timerID with the caller as owner.
func (s *TimerService) SaveTimer(ctx context.Context, timerID, userID string, timer *types.Timer) (*types.Timer, error) {
	if timer == nil {
		return nil, apperrors.ValidationFailed("Invalid timer", "timer is required")
	}
	saved := timer.WithOwner(userID)
	saved.ID = timerID
	if missing := saved.MissingFields(); len(missing) > 0 {
		return nil, apperrors.ValidationFailed("Invalid timer", "missing fields: "+strings.Join(missing, ", "))
	}

	if err := s.timers.PutTimer(ctx, &saved); err != nil {
		return nil, apperrors.Dependency("save timer", err)
	}
	return &saved, nil
}

// ListSharedTimers returns the timers shared with userID. Edges pointing at
// timers that no longer exist are skipped.
func (s *TimerService) ListSharedTimers(ctx context.Context, userID string) []types.Timer {
	ids, err := s.sharing.ListSharedTimerIDs(ctx, userID)
	if err != nil {
		s.log.Warnw("Failed to list shared timers", "userID", userID, "error", err)
		return []types.Timer{}
	}

	found := settle(s.limit, ids, func(id string) *types.Timer {
		t, err := s.timers.GetTimer(ctx, id)
		if err != nil {
			if !stderrors.Is(err, store.ErrNotFound) {
				s.log.Warnw("Failed to read shared timer", "timerID", id, "error", err)
			}
			return nil
		}
		return t
	})

	timers := make([]types.Timer, 0, len(found))
	for _, t := range found {
		if t != nil {
			timers = append(timers, *t)
		}
	}
	return timers
}

// RejectShare removes the caller's edge to timerID.
func (s *TimerService) RejectShare(ctx context.Context, timerID, userID string) error {
	if err := s.sharing.RemoveRelationship(ctx, timerID, userID); err != nil {
		return apperrors.Dependency("reject shared timer", err)
	}
	return nil
}
