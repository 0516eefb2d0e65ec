package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/codecollab-server/internal/store"
)

// newTestStore connects to the Redis named by CODECOLLAB_TEST_REDIS_ADDR and isolates the
// test under a random key prefix. Tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("CODECOLLAB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CODECOLLAB_TEST_REDIS_ADDR not set")
	}

	prefix := "codecollab-test:" + uuid.NewString() + ":"
	s, err := New(context.Background(), Options{Addr: addr, Prefix: prefix})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			s.client.Del(ctx, iter.Val())
		}
		_ = s.Close()
	})
	return s
}

func TestNewWithClientDefaultsPrefix(t *testing.T) {
	s := NewWithClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	defer s.Close()

	assert.Equal(t, "codecollab:room:abc", s.roomKey("abc"))
	assert.Equal(t, "codecollab:rooms:public", s.publicIndexKey())
}

func TestRoomDocTouchNeverGoesBackwards(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	doc := &roomDoc{UpdatedAt: future}
	doc.touch()
	assert.Equal(t, future, doc.UpdatedAt)

	doc = &roomDoc{UpdatedAt: 1}
	doc.touch()
	assert.Greater(t, doc.UpdatedAt, int64(1))
}

func TestRedisRoomLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, store.CreateRoomParams{RoomID: "abc12345", Language: "python"})
	require.NoError(t, err)
	assert.Equal(t, store.DefaultCode, room.Code)
	assert.Equal(t, "python", room.Language)

	_, err = s.CreateRoom(ctx, store.CreateRoomParams{RoomID: "abc12345"})
	assert.ErrorIs(t, err, store.ErrDuplicateRoom)

	code := "print(1)"
	room, err = s.UpdateRoom(ctx, "abc12345", store.RoomUpdate{Code: &code})
	require.NoError(t, err)
	assert.Equal(t, code, room.Code)
	assert.Equal(t, "python", room.Language)

	participants, err := s.AddParticipant(ctx, "abc12345", "u1", "alice")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	participants, err = s.AddParticipant(ctx, "abc12345", "u1", "alice")
	require.NoError(t, err)
	require.Len(t, participants, 1)

	participants, err = s.RenameParticipant(ctx, "abc12345", "u1", "alice2")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "alice2", participants[0].Username)

	participants, err = s.RemoveParticipant(ctx, "abc12345", "u1")
	require.NoError(t, err)
	assert.Empty(t, participants)

	removed, err := s.DeleteRoom(ctx, "abc12345")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = s.GetRoom(ctx, "abc12345")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisListPublicRooms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []store.CreateRoomParams{
		{RoomID: "r1", Title: "Go"},
		{RoomID: "r2", Title: "Python"},
		{RoomID: "r3", Description: "go routines"},
	} {
		_, err := s.CreateRoom(ctx, p)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	rooms, total, err := s.ListPublicRooms(ctx, store.ListParams{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rooms, 2)
	assert.Equal(t, "r3", rooms[0].RoomID)

	rooms, total, err = s.ListPublicRooms(ctx, store.ListParams{Page: 1, Limit: 10, Search: "GO"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rooms, 2)
	assert.Equal(t, "r3", rooms[0].RoomID)
	assert.Equal(t, "r1", rooms[1].RoomID)
}
