package utils

import "github.com/google/uuid"

// RoomIDLength is the length of generated room ids.
const RoomIDLength = 8

// NewID returns a unique session identifier.
func NewID() string {
	return uuid.NewString()
}

// NewRoomID returns a short room identifier: the leading characters of a UUIDv4.
func NewRoomID() string {
	return uuid.NewString()[:RoomIDLength]
}
