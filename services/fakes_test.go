package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/types"
)

var errBoom = errors.New("boom")

type memTimers struct {
	mu        sync.Mutex
	timers    map[string]types.Timer
	getErr    error
	putErr    error
	deleteErr error
}

func newMemTimers(timers ...types.Timer) *memTimers {
	m := &memTimers{timers: map[string]types.Timer{}}
	for _, t := range timers {
		m.timers[t.ID] = t
	}
	return m
}

func (m *memTimers) GetTimer(_ context.Context, id string) (*types.Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	t, ok := m.timers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (m *memTimers) PutTimer(_ context.Context, timer *types.Timer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.timers[timer.ID] = *timer
	return nil
}

func (m *memTimers) DeleteTimer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.timers, id)
	return nil
}

type edge struct{ timerID, user string }

type memSharing struct {
	mu      sync.Mutex
	edges   map[edge]bool
	adds    []edge
	removes []edge
	failFor map[string]bool // users whose writes fail
	listErr error
}

func newMemSharing(timerID string, users ...string) *memSharing {
	m := &memSharing{edges: map[edge]bool{}, failFor: map[string]bool{}}
	for _, u := range users {
		m.edges[edge{timerID, u}] = true
	}
	return m
}

func (m *memSharing) AddRelationship(_ context.Context, timerID, sharedWith string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds = append(m.adds, edge{timerID, sharedWith})
	if m.failFor[sharedWith] {
		return errBoom
	}
	m.edges[edge{timerID, sharedWith}] = true
	return nil
}

func (m *memSharing) RemoveRelationship(_ context.Context, timerID, sharedWith string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes = append(m.removes, edge{timerID, sharedWith})
	if m.failFor[sharedWith] {
		return errBoom
	}
	delete(m.edges, edge{timerID, sharedWith})
	return nil
}

func (m *memSharing) ListSharedUsers(_ context.Context, timerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var users []string
	for e := range m.edges {
		if e.timerID == timerID {
			users = append(users, e.user)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (m *memSharing) ListSharedTimerIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var ids []string
	for e := range m.edges {
		if e.user == userID {
			ids = append(ids, e.timerID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memSharing) usersOf(timerID string) []string {
	users, _ := m.ListSharedUsers(context.Background(), timerID)
	return users
}

func (m *memSharing) added() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.adds {
		out = append(out, e.user)
	}
	return out
}

func (m *memSharing) removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.removes {
		out = append(out, e.user)
	}
	return out
}

type memConnections struct {
	mu      sync.Mutex
	conns   map[string][]types.Connection
	cleared []string
}

func newMemConnections() *memConnections {
	return &memConnections{conns: map[string][]types.Connection{}}
}

func (m *memConnections) with(userID, deviceID, connectionID string) *memConnections {
	m.conns[userID] = append(m.conns[userID], types.Connection{UserID: userID, DeviceID: deviceID, ConnectionID: connectionID})
	return m
}

func (m *memConnections) SaveConnection(_ context.Context, userID, deviceID, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[userID] = append(m.conns[userID], types.Connection{UserID: userID, DeviceID: deviceID, ConnectionID: connectionID})
	return nil
}

func (m *memConnections) ClearConnection(_ context.Context, userID, deviceID, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.conns[userID] {
		if c.DeviceID == deviceID && c.ConnectionID == connectionID {
			m.conns[userID][i].ConnectionID = ""
			m.cleared = append(m.cleared, connectionID)
		}
	}
	return nil
}

func (m *memConnections) LookupConnection(_ context.Context, connectionID string) (*types.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conns := range m.conns {
		for _, c := range conns {
			if c.ConnectionID == connectionID {
				c := c
				return &c, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (m *memConnections) ListUserConnections(_ context.Context, userID string) ([]types.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var live []types.Connection
	for _, c := range m.conns[userID] {
		if c.Live() {
			live = append(live, c)
		}
	}
	return live, nil
}

type sentFrame struct {
	connectionID string
	frame        string
}

type fakeSender struct {
	mu     sync.Mutex
	frames  []sentFrame
	gone    map[string]bool
	notHeld map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{gone: map[string]bool{}, notHeld: map[string]bool{}}
}

func (f *fakeSender) SendFrame(_ context.Context, connectionID string, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[connectionID] {
		return types.ErrConnectionGone
	}
	if f.notHeld[connectionID] {
		return types.ErrConnectionNotHeld
	}
	f.frames = append(f.frames, sentFrame{connectionID, string(frame)})
	return nil
}

func (f *fakeSender) connectionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, fr := range f.frames {
		ids = append(ids, fr.connectionID)
	}
	sort.Strings(ids)
	return ids
}

type memTokens struct {
	mu       sync.Mutex
	tokens   map[string][]types.DeviceToken
	getErr   error
	touched  []string
	deleted  []string
	prefsSet map[string]types.NotificationPreferences
}

func newMemTokens(tokens ...types.DeviceToken) *memTokens {
	m := &memTokens{tokens: map[string][]types.DeviceToken{}, prefsSet: map[string]types.NotificationPreferences{}}
	for _, t := range tokens {
		m.tokens[t.UserID] = append(m.tokens[t.UserID], t)
	}
	return m
}

func (m *memTokens) SaveDeviceToken(_ context.Context, token *types.DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tokens[token.UserID] {
		if t.DeviceID == token.DeviceID {
			token.Preferences = t.Preferences
			m.tokens[token.UserID][i] = *token
			return nil
		}
	}
	m.tokens[token.UserID] = append(m.tokens[token.UserID], *token)
	return nil
}

func (m *memTokens) GetDeviceTokens(_ context.Context, userID string) ([]types.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([]types.DeviceToken, len(m.tokens[userID]))
	copy(out, m.tokens[userID])
	return out, nil
}

func (m *memTokens) DeleteDeviceToken(_ context.Context, userID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, deviceID)
	kept := m.tokens[userID][:0]
	for _, t := range m.tokens[userID] {
		if t.DeviceID != deviceID {
			kept = append(kept, t)
		}
	}
	m.tokens[userID] = kept
	return nil
}

func (m *memTokens) TouchDeviceToken(_ context.Context, _, deviceID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, deviceID)
	return nil
}

func (m *memTokens) UpdatePreferences(_ context.Context, userID, deviceID string, prefs types.NotificationPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tokens[userID] {
		if t.DeviceID == deviceID {
			m.tokens[userID][i].Preferences = prefs
			m.prefsSet[deviceID] = prefs
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeGateway struct {
	mu     sync.Mutex
	sent   []string
	errFor map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{errFor: map[string]error{}}
}

func (g *fakeGateway) Send(_ context.Context, token string, _ PushMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.errFor[token]; err != nil {
		return err
	}
	g.sent = append(g.sent, token)
	return nil
}

func (g *fakeGateway) tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := append([]string(nil), g.sent...)
	sort.Strings(out)
	return out
}
