package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/codecollab-server/internal/store"
	"github.com/vovakirdan/codecollab-server/internal/store/sqlite"
)

func testOptions() Options {
	return Options{SaveDebounce: 50 * time.Millisecond, MaxRoomsPerSession: 16}
}

func newTestHub(t *testing.T, st store.RoomStore, opts Options) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	writer := NewWriter(WriterOptions{Workers: 2}, nil)
	hub := NewHub(st, NewRegistry(), writer, opts, nil)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		writer.Close()
	})
	return hub
}

func newSQLiteStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// countingStore records UpdateRoom calls on top of a real store.
type countingStore struct {
	store.RoomStore

	updates atomic.Int32
	mu      sync.Mutex
	last    store.RoomUpdate
}

func (s *countingStore) UpdateRoom(ctx context.Context, roomID string, update store.RoomUpdate) (*store.Room, error) {
	s.updates.Add(1)
	s.mu.Lock()
	s.last = update
	s.mu.Unlock()
	return s.RoomStore.UpdateRoom(ctx, roomID, update)
}

func (s *countingStore) lastUpdate() store.RoomUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func joinRoom(t *testing.T, c *Client, roomID, username string) *Event {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinRoom, Room: roomID, Username: username}
	return mustEvent(t, c.Events, EventRoomJoined)
}

// mustEvent waits for an event of the given kind, discarding others.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("events channel closed while waiting for kind %v", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

// nextEvent returns the very next event on ch.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

// assertNoEvent fails if anything arrives on ch within d.
func assertNoEvent(t *testing.T, ch <-chan *Event, d time.Duration) {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event kind %v for room %q", ev.Kind, ev.Room)
		}
		t.Fatal("events channel closed")
	case <-time.After(d):
	}
}

// gatedStore holds GetRoom for one room until gate is closed.
type gatedStore struct {
	store.RoomStore

	roomID  string
	entered chan struct{}
	gate    chan struct{}
	removes atomic.Int32
}

func newGatedStore(inner store.RoomStore, roomID string) *gatedStore {
	return &gatedStore{
		RoomStore: inner,
		roomID:    roomID,
		entered:   make(chan struct{}, 1),
		gate:      make(chan struct{}),
	}
}

func (s *gatedStore) GetRoom(ctx context.Context, roomID string) (*store.Room, error) {
	if roomID == s.roomID {
		select {
		case s.entered <- struct{}{}:
		default:
		}
		<-s.gate
	}
	return s.RoomStore.GetRoom(ctx, roomID)
}

func (s *gatedStore) RemoveParticipant(ctx context.Context, roomID, userID string) ([]store.Participant, error) {
	participants, err := s.RoomStore.RemoveParticipant(ctx, roomID, userID)
	if roomID == s.roomID {
		s.removes.Add(1)
	}
	return participants, err
}

// waitClosed drains ch until it is closed.
func waitClosed(t *testing.T, ch <-chan *Event) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed")
		}
	}
}

func participantIDs(ps []Participant) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func storedParticipantIDs(t *testing.T, st store.RoomStore, roomID string) []string {
	t.Helper()

	room, err := st.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	ids := make([]string, 0, len(room.Participants))
	for _, p := range room.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}
