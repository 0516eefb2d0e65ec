package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/codecollab-server/internal/store"
)

type roomEnvelope struct {
	Success bool         `json:"success"`
	RoomID  string       `json:"roomId"`
	Room    RoomResponse `json:"room"`
	Message string       `json:"message"`
}

type listEnvelope struct {
	Success     bool           `json:"success"`
	Rooms       []RoomResponse `json:"rooms"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Total       int            `json:"total"`
}

type participantsEnvelope struct {
	Success      bool                  `json:"success"`
	Participants []ParticipantResponse `json:"participants"`
}

func doJSON(t *testing.T, env *testEnv, method, path, body string, out any) int {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestCreateAndGetRoom(t *testing.T) {
	env := startTestServer(t, createTestStore(t), testConfig())

	var created roomEnvelope
	status := doJSON(t, env, http.MethodPost, "/api/code/room",
		`{"title":"T","language":"python","createdBy":"alice"}`, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, created.Success)
	assert.Len(t, created.RoomID, 8)
	assert.Equal(t, created.RoomID, created.Room.RoomID)
	assert.Equal(t, "T", created.Room.Title)
	assert.Equal(t, "python", created.Room.Language)
	assert.Equal(t, "alice", created.Room.CreatedBy)
	assert.True(t, created.Room.IsPublic)

	var got roomEnvelope
	status = doJSON(t, env, http.MethodGet, "/api/code/room/"+created.RoomID, "", &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "// Start coding here...\n", got.Room.Code)
	assert.NotNil(t, got.Room.Participants)
}

func TestCreateRoomWithoutBodyUsesDefaults(t *testing.T) {
	env := startTestServer(t, createTestStore(t), testConfig())

	var created roomEnvelope
	status := doJSON(t, env, http.MethodPost, "/api/code/room", "", &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Untitled", created.Room.Title)
	assert.Equal(t, "javascript", created.Room.Language)
	assert.Equal(t, "Anonymous", created.Room.CreatedBy)
}

func TestCreateRoomRejectsMalformedBody(t *testing.T) {
	env := startTestServer(t, createTestStore(t), testConfig())

	var resp roomEnvelope
	status := doJSON(t, env, http.MethodPost, "/api/code/room", `{"title":`, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)
}

func TestGetRoomNotFound(t *testing.T) {
	env := startTestServer(t, createTestStore(t), testConfig())

	var resp roomEnvelope
	status := doJSON(t, env, http.MethodGet, "/api/code/room/missing1", "", &resp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "Room not found", resp.Message)
}

func TestUpdateRoom(t *testing.T) {
	st := createTestStore(t)
	env := startTestServer(t, st, testConfig())

	_, err := st.CreateRoom(context.Background(), store.CreateRoomParams{RoomID: "upd00001", Title: "old"})
	require.NoError(t, err)

	var resp roomEnvelope
	status := doJSON(t, env, http.MethodPut, "/api/code/room/upd00001", `{"code":"print(1)","title":"new"}`, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "print(1)", resp.Room.Code)
	assert.Equal(t, "new", resp.Room.Title)
	assert.Equal(t, "javascript", resp.Room.Language)

	status = doJSON(t, env, http.MethodPut, "/api/code/room/missing1", `{"code":"x"}`, &resp)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListRooms(t *testing.T) {
	st := createTestStore(t)
	env := startTestServer(t, st, testConfig())

	for i := 0; i < 12; i++ {
		title := "Room"
		if i%4 == 0 {
			title = "Golang"
		}
		_, err := st.CreateRoom(context.Background(), store.CreateRoomParams{
			RoomID: fmt.Sprintf("lst%05d", i),
			Title:  title,
		})
		require.NoError(t, err)
	}

	var resp listEnvelope
	status := doJSON(t, env, http.MethodGet, "/api/code/rooms", "", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, resp.Rooms, 10, "default limit")
	assert.Equal(t, 12, resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Equal(t, 1, resp.CurrentPage)

	status = doJSON(t, env, http.MethodGet, "/api/code/rooms?page=2&limit=5", "", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, resp.Rooms, 5)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, 2, resp.CurrentPage)

	status = doJSON(t, env, http.MethodGet, "/api/code/rooms?search=golang", "", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.TotalPages)

	status = doJSON(t, env, http.MethodGet, "/api/code/rooms?page=abc&limit=-3", "", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, resp.CurrentPage)
	assert.Len(t, resp.Rooms, 10)
}

func TestDeleteRoom(t *testing.T) {
	st := createTestStore(t)
	env := startTestServer(t, st, testConfig())

	_, err := st.CreateRoom(context.Background(), store.CreateRoomParams{RoomID: "del00001"})
	require.NoError(t, err)

	var resp roomEnvelope
	status := doJSON(t, env, http.MethodDelete, "/api/code/room/del00001", "", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "Room deleted successfully", resp.Message)

	status = doJSON(t, env, http.MethodDelete, "/api/code/room/del00001", "", &resp)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestParticipantEndpoints(t *testing.T) {
	st := createTestStore(t)
	env := startTestServer(t, st, testConfig())

	_, err := st.CreateRoom(context.Background(), store.CreateRoomParams{RoomID: "par00001"})
	require.NoError(t, err)

	var resp participantsEnvelope
	status := doJSON(t, env, http.MethodPost, "/api/code/room/par00001/participant", `{"userId":"u1","username":"alice"}`, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Participants, 1)

	status = doJSON(t, env, http.MethodPost, "/api/code/room/par00001/participant", `{"userId":"u1","username":"alice"}`, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, resp.Participants, 1, "adding twice is idempotent")

	status = doJSON(t, env, http.MethodPost, "/api/code/room/par00001/participant", `{"username":"nobody"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = doJSON(t, env, http.MethodDelete, "/api/code/room/par00001/participant/u1", "", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Participants)

	status = doJSON(t, env, http.MethodDelete, "/api/code/room/missing1/participant/u1", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStoreFailureReturns500(t *testing.T) {
	st := new(store.MockRoomStore)
	st.On("GetRoom", mock.Anything, "broken01").Return(nil, errors.New("disk full"))
	env := startTestServer(t, st, testConfig())

	var resp roomEnvelope
	status := doJSON(t, env, http.MethodGet, "/api/code/room/broken01", "", &resp)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "Internal server error", resp.Message)
}

func TestHealthAndStats(t *testing.T) {
	env := startTestServer(t, createTestStore(t), testConfig())

	resp, err := env.server.Client().Get(env.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		Success      bool `json:"success"`
		LiveRooms    int  `json:"liveRooms"`
		Participants int  `json:"participants"`
	}
	status := doJSON(t, env, http.MethodGet, "/api/stats", "", &stats)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, stats.Success)
	assert.Equal(t, 0, stats.LiveRooms)
}
