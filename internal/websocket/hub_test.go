package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/services"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type fakeSocket struct {
	mu        sync.Mutex
	written   [][]byte
	writeErr  error
	closed    bool
	closeCode websocket.StatusCode
}

func (s *fakeSocket) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, append([]byte(nil), p...))
	return nil
}

func (s *fakeSocket) Close(code websocket.StatusCode, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeCode = code
	return nil
}

func testHub() *Hub {
	return NewHub(HubConfig{PingInterval: time.Second, WriteTimeout: time.Second})
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub()
	assert.NotNil(t, hub.clients)
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, DefaultHubConfig().WriteTimeout, hub.writeTimeout)
}

func TestHub_SendFrame(t *testing.T) {
	ctx := context.Background()
	hub := testHub()
	sock := &fakeSocket{}
	hub.Register("c1", "alice", "phone", sock)

	require.NoError(t, hub.SendFrame(ctx, "c1", []byte(`{"type":"stopTimer","timerId":"t1"}`)))
	require.Len(t, sock.written, 1)
	assert.JSONEq(t, `{"type":"stopTimer","timerId":"t1"}`, string(sock.written[0]))

	err := hub.SendFrame(ctx, "c-unknown", []byte(`{}`))
	assert.ErrorIs(t, err, types.ErrConnectionNotHeld)
	assert.NotErrorIs(t, err, types.ErrConnectionGone)
}

func TestHub_SendFrameWriteError(t *testing.T) {
	hub := testHub()
	sock := &fakeSocket{writeErr: errors.New("broken pipe")}
	hub.Register("c1", "alice", "phone", sock)

	err := hub.SendFrame(context.Background(), "c1", []byte(`{}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrConnectionGone)
}

func TestHub_SendFrameClosedByPeer(t *testing.T) {
	hub := testHub()
	sock := &fakeSocket{writeErr: websocket.CloseError{Code: websocket.StatusGoingAway, Reason: "bye"}}
	hub.Register("c1", "alice", "phone", sock)

	err := hub.SendFrame(context.Background(), "c1", []byte(`{}`))
	assert.ErrorIs(t, err, types.ErrConnectionGone)
}

func TestHub_Unregister(t *testing.T) {
	hub := testHub()
	sock := &fakeSocket{}
	hub.Register("c1", "alice", "phone", sock)
	hub.Register("c2", "alice", "tablet", &fakeSocket{})
	assert.Equal(t, 2, hub.ConnectionCount())

	hub.Unregister("c1")
	hub.Unregister("c1")

	assert.Equal(t, 1, hub.ConnectionCount())
	assert.True(t, sock.closed)
	assert.Equal(t, websocket.StatusNormalClosure, sock.closeCode)
	assert.ErrorIs(t, hub.SendFrame(context.Background(), "c1", []byte(`{}`)), types.ErrConnectionNotHeld)
}

func TestHub_Shutdown(t *testing.T) {
	hub := testHub()
	a, b := &fakeSocket{}, &fakeSocket{}
	hub.Register("c1", "alice", "phone", a)
	hub.Register("c2", "bob", "phone", b)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	assert.Equal(t, 0, hub.ConnectionCount())
	assert.True(t, a.closed)
	assert.Equal(t, websocket.StatusGoingAway, b.closeCode)
}

func TestHub_ConcurrentSends(t *testing.T) {
	hub := testHub()
	sock := &fakeSocket{}
	hub.Register("c1", "alice", "phone", sock)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = hub.SendFrame(context.Background(), "c1", []byte(`{}`))
		}()
	}
	wg.Wait()
	assert.Len(t, sock.written, 20)
}

// memTimerStore and memSharingStore back a real FanoutService in hub tests.
type memTimerStore struct {
	mu     sync.Mutex
	timers map[string]types.Timer
}

func (m *memTimerStore) GetTimer(_ context.Context, id string) (*types.Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (m *memTimerStore) PutTimer(_ context.Context, timer *types.Timer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[timer.ID] = *timer
	return nil
}

func (m *memTimerStore) DeleteTimer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, id)
	return nil
}

type memSharingStore struct {
	mu    sync.Mutex
	edges map[string]map[string]bool
}

func (m *memSharingStore) AddRelationship(_ context.Context, timerID, sharedWith string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edges[timerID] == nil {
		m.edges[timerID] = map[string]bool{}
	}
	m.edges[timerID][sharedWith] = true
	return nil
}

func (m *memSharingStore) RemoveRelationship(_ context.Context, timerID, sharedWith string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges[timerID], sharedWith)
	return nil
}

func (m *memSharingStore) ListSharedUsers(_ context.Context, timerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []string
	for u := range m.edges[timerID] {
		users = append(users, u)
	}
	return users, nil
}

func (m *memSharingStore) ListSharedTimerIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, users := range m.edges {
		if users[userID] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// A connection saved by Connect but not yet registered with the hub, or held
// by another process, must survive a fanout that reaches it.
func TestHub_FanoutKeepsUnheldConnection(t *testing.T) {
	hub := testHub()
	alice := &fakeSocket{}
	hub.Register("conn-alice", "alice", "phone", alice)

	dir := newMemDirectory()
	dir.rows[[2]string{"alice", "phone"}] = "conn-alice"
	dir.rows[[2]string{"bob", "phone"}] = "conn-bob"

	st := &store.Store{
		Timers:      &memTimerStore{timers: map[string]types.Timer{}},
		Sharing:     &memSharingStore{edges: map[string]map[string]bool{}},
		Connections: dir,
	}
	fanout := services.NewFanoutService(st, hub, nil, 4)

	timer := &types.Timer{ID: "t1", UserID: "alice", Name: "Tea", TotalDuration: "PT5M"}
	result, err := fanout.UpdateTimer(context.Background(), timer, "alice", []string{"bob"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Delivered())
	assert.Len(t, alice.written, 1)
	assert.Equal(t, "conn-bob", dir.current("bob", "phone"))
}
