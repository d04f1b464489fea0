package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/NomadCrew/timer-sync-backend/types"
	"go.uber.org/zap"
)

// FrameSender writes one frame to a live connection. It returns
// types.ErrConnectionGone when the transport reports the connection closed and
// types.ErrConnectionNotHeld when the connection is simply not its own.
type FrameSender interface {
	SendFrame(ctx context.Context, connectionID string, frame []byte) error
}

// Inviter delivers a sharing invitation to every device of a recipient.
type Inviter interface {
	SendSharingInvitation(ctx context.Context, recipientID, sharerID string, timer *types.Timer) (InvitationReport, error)
}

// Delivery is the outcome of one live send.
type Delivery struct {
	UserID       string
	DeviceID     string
	ConnectionID string
	Err          error
}

// FanoutResult describes who an operation addressed and what happened on
// each of their live connections.
type FanoutResult struct {
	Recipients []string
	Deliveries []Delivery
}

// Delivered counts successful live sends.
func (r *FanoutResult) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err == nil {
			n++
		}
	}
	return n
}

// FanoutService applies timer mutations, reconciles sharing edges and pushes
// the resulting state to every live device of every affected user. It holds
// no state of its own.
type FanoutService struct {
	timers      store.TimerStore
	sharing     store.SharingStore
	connections store.ConnectionDirectory
	sender      FrameSender
	inviter     Inviter
	limit       int
	log         *zap.SugaredLogger
	metrics     *serviceMetrics
}

func NewFanoutService(st *store.Store, sender FrameSender, inviter Inviter, maxConcurrency int) *FanoutService {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &FanoutService{
		timers:      st.Timers,
		sharing:     st.Sharing,
		connections: st.Connections,
		sender:      sender,
		inviter:     inviter,
		limit:       maxConcurrency,
		log:         logger.GetLogger().Named("FanoutService"),
		metrics:     newServiceMetrics(),
	}
}

// StopTimer deletes the timer and every sharing edge it had, then tells the
// actor, the previous share recipients and the owner. timerData is only used
// to learn the owner. A failed delete is returned as a DependencyError along
// with the result.
func (s *FanoutService) StopTimer(ctx context.Context, timerID, actingUserID string, timerData *types.Timer) (*FanoutResult, error) {
	defer s.observe("stopTimer", time.Now())

	if strings.TrimSpace(timerID) == "" {
		return nil, apperrors.ValidationFailed("Invalid stopTimer message", "timerId is required")
	}

	previous := s.sharedUsers(ctx, timerID)
	owner := s.resolveOwner(ctx, timerID, timerData)

	var primaryErr error
	if err := s.timers.DeleteTimer(ctx, timerID); err != nil {
		primaryErr = apperrors.Dependency("delete timer", err)
	}

	s.applyEdges(ctx, timerID, nil, previous)

	recipients := dedupe(append(append([]string{actingUserID}, previous...), owner)...)
	frame, err := json.Marshal(types.TimerStopFrame{Type: types.MessageTypeStopTimer, TimerID: timerID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode stop frame: %w", err)
	}

	s.log.Infow("Timer stopped",
		"timerID", timerID,
		"actingUserID", actingUserID,
		"owner", owner,
		"recipients", len(recipients))

	return &FanoutResult{
		Recipients: recipients,
		Deliveries: s.broadcast(ctx, types.MessageTypeStopTimer, recipients, frame, ""),
	}, primaryErr
}

// UpdateTimer upserts the timer, reconciles its sharing edges against
// shareWith (nil clears all sharing) and pushes the persisted timer to the
// actor, the current and newly added recipients and the owner. Ownership is
// never transferred: an existing owner is kept, otherwise the actor owns it.
// When the existing record cannot be read the save is skipped and a
// DependencyError is returned; the fanout still goes out.
func (s *FanoutService) UpdateTimer(ctx context.Context, timer *types.Timer, actingUserID string, shareWith []string) (*FanoutResult, error) {
	defer s.observe("updateTimer", time.Now())

	if timer == nil {
		return nil, apperrors.ValidationFailed("Invalid updateTimer message", "timer is required")
	}
	if missing := timer.MissingFields(); len(missing) > 0 {
		return nil, apperrors.ValidationFailed("Invalid updateTimer message", "missing fields: "+strings.Join(missing, ", "))
	}

	var primaryErr error
	existing, err := s.timers.GetTimer(ctx, timer.ID)
	if err != nil {
		existing = nil
		if !stderrors.Is(err, store.ErrNotFound) {
			// owner unknown: writing now could hand the timer to the actor
			s.log.Warnw("Failed to read existing timer, skipping save", "timerID", timer.ID, "error", err)
			primaryErr = apperrors.Dependency("read timer", err)
		}
	}

	persisted := timer.WithOwner(actingUserID)
	owner := timer.UserID
	switch {
	case existing != nil && existing.UserID != "":
		persisted.UserID = existing.UserID
		owner = existing.UserID
	case primaryErr != nil && timer.UserID != "":
		persisted.UserID = timer.UserID
	}

	if primaryErr == nil {
		if err := s.timers.PutTimer(ctx, &persisted); err != nil {
			primaryErr = apperrors.Dependency("save timer", err)
		}
	}

	current := s.sharedUsers(ctx, timer.ID)
	desired := dedupe(shareWith...)
	toAdd := difference(desired, current)
	toRemove := difference(current, desired)
	s.applyEdges(ctx, timer.ID, toAdd, toRemove)

	recipients := dedupe(append(append(append([]string{actingUserID}, current...), toAdd...), owner)...)
	frame, err := json.Marshal(types.TimerUpdateFrame{Type: types.MessageTypeUpdateTimer, Timer: persisted})
	if err != nil {
		return nil, fmt.Errorf("failed to encode update frame: %w", err)
	}

	s.log.Infow("Timer updated",
		"timerID", timer.ID,
		"actingUserID", actingUserID,
		"owner", persisted.UserID,
		"added", len(toAdd),
		"removed", len(toRemove),
		"recipients", len(recipients))

	return &FanoutResult{
		Recipients: recipients,
		Deliveries: s.broadcast(ctx, types.MessageTypeUpdateTimer, recipients, frame, ""),
	}, primaryErr
}

// ShareTimerWithUsers adds a sharing edge and sends an invitation for every
// distinct target. A timer that does not exist yet is created from fallback;
// without a fallback the call fails with NotFound.
func (s *FanoutService) ShareTimerWithUsers(ctx context.Context, timerID, sharerID string, targets []string, fallback *types.Timer) (*types.ShareResult, error) {
	defer s.observe("shareTimer", time.Now())

	if strings.TrimSpace(timerID) == "" {
		return nil, apperrors.ValidationFailed("Invalid share request", "timerId is required")
	}

	timer, err := s.timers.GetTimer(ctx, timerID)
	if err != nil {
		if !stderrors.Is(err, store.ErrNotFound) {
			s.log.Warnw("Failed to read timer for sharing", "timerID", timerID, "error", err)
		}
		if fallback == nil {
			return nil, apperrors.TimerNotFound(timerID)
		}

		materialized := *fallback
		materialized.ID = timerID
		if materialized.UserID == "" {
			materialized.UserID = sharerID
		}
		if err := s.timers.PutTimer(ctx, &materialized); err != nil {
			return nil, apperrors.Dependency("save timer", err)
		}
		timer = &materialized
	}

	targets = dedupe(targets...)
	outcomes := settle(s.limit, targets, func(userID string) bool {
		if err := s.sharing.AddRelationship(ctx, timer.ID, userID); err != nil {
			s.metrics.shareTargets.WithLabelValues(outcomeRelationshipFail).Inc()
			s.log.Warnw("Failed to add sharing relationship", "timerID", timer.ID, "userID", userID, "error", err)
			return false
		}
		if _, err := s.inviter.SendSharingInvitation(ctx, userID, sharerID, timer); err != nil {
			s.metrics.shareTargets.WithLabelValues(outcomeLookupFail).Inc()
			s.log.Warnw("Failed to send sharing invitation", "timerID", timer.ID, "userID", userID, "error", err)
			return false
		}
		s.metrics.shareTargets.WithLabelValues(outcomeSuccess).Inc()
		return true
	})

	result := &types.ShareResult{Success: []string{}, Failed: []string{}}
	for i, ok := range outcomes {
		if ok {
			result.Success = append(result.Success, targets[i])
		} else {
			result.Failed = append(result.Failed, targets[i])
		}
	}

	s.log.Infow("Timer shared",
		"timerID", timer.ID,
		"sharerID", sharerID,
		"success", len(result.Success),
		"failed", len(result.Failed))
	return result, nil
}

// SyncActiveTimers forwards data verbatim to the actor's other live
// connections.
func (s *FanoutService) SyncActiveTimers(ctx context.Context, actingUserID, originConnectionID string, data []byte) *FanoutResult {
	defer s.observe("activeTimerList", time.Now())

	recipients := []string{actingUserID}
	return &FanoutResult{
		Recipients: recipients,
		Deliveries: s.broadcast(ctx, types.MessageTypeActiveTimerList, recipients, data, originConnectionID),
	}
}

func (s *FanoutService) sharedUsers(ctx context.Context, timerID string) []string {
	users, err := s.sharing.ListSharedUsers(ctx, timerID)
	if err != nil {
		s.log.Warnw("Failed to list shared users", "timerID", timerID, "error", err)
		return nil
	}
	return users
}

func (s *FanoutService) resolveOwner(ctx context.Context, timerID string, timerData *types.Timer) string {
	if timerData != nil && timerData.UserID != "" {
		return timerData.UserID
	}
	t, err := s.timers.GetTimer(ctx, timerID)
	if err != nil {
		if !stderrors.Is(err, store.ErrNotFound) {
			s.log.Warnw("Failed to read timer owner", "timerID", timerID, "error", err)
		}
		return ""
	}
	return t.UserID
}

type edgeOp struct {
	userID string
	add    bool
}

// applyEdges issues every add and remove independently and waits for all of
// them. Failures are logged only.
func (s *FanoutService) applyEdges(ctx context.Context, timerID string, toAdd, toRemove []string) {
	ops := make([]edgeOp, 0, len(toAdd)+len(toRemove))
	for _, u := range toAdd {
		ops = append(ops, edgeOp{userID: u, add: true})
	}
	for _, u := range toRemove {
		ops = append(ops, edgeOp{userID: u})
	}

	settle(s.limit, ops, func(op edgeOp) error {
		var err error
		if op.add {
			err = s.sharing.AddRelationship(ctx, timerID, op.userID)
		} else {
			err = s.sharing.RemoveRelationship(ctx, timerID, op.userID)
		}
		if err != nil {
			s.log.Warnw("Failed to update sharing relationship",
				"timerID", timerID,
				"userID", op.userID,
				"add", op.add,
				"error", err)
		}
		return err
	})
}

// broadcast sends frame to every live connection of recipients except
// exclude. Connections reported gone are cleared from the directory.
func (s *FanoutService) broadcast(ctx context.Context, event string, recipients []string, frame []byte, exclude string) []Delivery {
	perUser := settle(s.limit, recipients, func(userID string) []types.Connection {
		conns, err := s.connections.ListUserConnections(ctx, userID)
		if err != nil {
			s.log.Warnw("Failed to list user connections", "userID", userID, "error", err)
			return nil
		}
		return conns
	})

	seen := make(map[string]struct{})
	var targets []types.Connection
	for _, conns := range perUser {
		for _, c := range conns {
			if !c.Live() || c.ConnectionID == exclude {
				continue
			}
			if _, ok := seen[c.ConnectionID]; ok {
				continue
			}
			seen[c.ConnectionID] = struct{}{}
			targets = append(targets, c)
		}
	}

	return settle(s.limit, targets, func(c types.Connection) Delivery {
		err := s.sender.SendFrame(ctx, c.ConnectionID, frame)
		switch {
		case err == nil:
			s.metrics.frames.WithLabelValues(event, outcomeSent).Inc()
		case stderrors.Is(err, types.ErrConnectionGone):
			s.metrics.frames.WithLabelValues(event, outcomeGone).Inc()
			if clearErr := s.connections.ClearConnection(ctx, c.UserID, c.DeviceID, c.ConnectionID); clearErr != nil {
				s.log.Warnw("Failed to clear stale connection", "connectionID", c.ConnectionID, "error", clearErr)
			}
		case stderrors.Is(err, types.ErrConnectionNotHeld):
			// row stays: the socket may be mid-accept or owned by another process
			s.metrics.frames.WithLabelValues(event, outcomeNotHeld).Inc()
			s.log.Debugw("Connection not held by this sender", "event", event, "connectionID", c.ConnectionID)
		default:
			s.metrics.frames.WithLabelValues(event, outcomeFailed).Inc()
			s.log.Warnw("Failed to send frame",
				"event", event,
				"userID", c.UserID,
				"connectionID", c.ConnectionID,
				"error", err)
		}
		return Delivery{UserID: c.UserID, DeviceID: c.DeviceID, ConnectionID: c.ConnectionID, Err: err}
	})
}

func (s *FanoutService) observe(operation string, start time.Time) {
	s.metrics.fanoutDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
