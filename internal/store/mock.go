package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRoomStore is a testify mock of RoomStore.
type MockRoomStore struct {
	mock.Mock
}

func (m *MockRoomStore) CreateRoom(ctx context.Context, params CreateRoomParams) (*Room, error) {
	args := m.Called(ctx, params)
	if room, ok := args.Get(0).(*Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoomStore) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	args := m.Called(ctx, roomID)
	if room, ok := args.Get(0).(*Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoomStore) UpdateRoom(ctx context.Context, roomID string, update RoomUpdate) (*Room, error) {
	args := m.Called(ctx, roomID, update)
	if room, ok := args.Get(0).(*Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoomStore) ListPublicRooms(ctx context.Context, params ListParams) ([]*Room, int, error) {
	args := m.Called(ctx, params)
	rooms, _ := args.Get(0).([]*Room)
	return rooms, args.Int(1), args.Error(2)
}

func (m *MockRoomStore) DeleteRoom(ctx context.Context, roomID string) (bool, error) {
	args := m.Called(ctx, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomStore) AddParticipant(ctx context.Context, roomID, userID, username string) ([]Participant, error) {
	args := m.Called(ctx, roomID, userID, username)
	participants, _ := args.Get(0).([]Participant)
	return participants, args.Error(1)
}

func (m *MockRoomStore) RenameParticipant(ctx context.Context, roomID, userID, username string) ([]Participant, error) {
	args := m.Called(ctx, roomID, userID, username)
	participants, _ := args.Get(0).([]Participant)
	return participants, args.Error(1)
}

func (m *MockRoomStore) RemoveParticipant(ctx context.Context, roomID, userID string) ([]Participant, error) {
	args := m.Called(ctx, roomID, userID)
	participants, _ := args.Get(0).([]Participant)
	return participants, args.Error(1)
}

func (m *MockRoomStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
