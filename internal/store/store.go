package store

import (
	"context"
	"errors"
	"time"
)

// Defaults applied to fields a caller leaves empty.
const (
	DefaultCode      = "// Start coding here...\n"
	DefaultLanguage  = "javascript"
	DefaultTitle     = "Untitled"
	DefaultCreatedBy = "Anonymous"
)

var (
	// ErrNotFound is returned when a room does not exist.
	ErrNotFound = errors.New("room not found")
	// ErrDuplicateRoom is returned when creating a room whose id is already taken.
	ErrDuplicateRoom = errors.New("room already exists")
)

// Participant is a durable membership entry of a room.
type Participant struct {
	UserID   string
	Username string
	JoinedAt time.Time
}

// Room is the durable record of a collaborative code room.
type Room struct {
	RoomID       string
	Code         string
	Language     string
	Title        string
	Description  string
	CreatedBy    string
	IsPublic     bool
	Participants []Participant
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateRoomParams describes a new room. Empty fields take the package defaults.
type CreateRoomParams struct {
	RoomID      string
	Title       string
	Description string
	Language    string
	CreatedBy   string
}

// WithDefaults returns a copy with empty fields replaced by defaults.
func (p CreateRoomParams) WithDefaults() CreateRoomParams {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	if p.CreatedBy == "" {
		p.CreatedBy = DefaultCreatedBy
	}
	return p
}

// RoomUpdate carries a partial update. Nil fields are left untouched.
type RoomUpdate struct {
	Code        *string
	Language    *string
	Title       *string
	Description *string
}

// ListParams controls public room listing.
type ListParams struct {
	Page   int // 1-indexed
	Limit  int
	Search string
}

// Offset returns the number of rows to skip for the requested page.
func (p ListParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// RoomStore handles durable room persistence.
type RoomStore interface {
	// CreateRoom inserts a new room. Returns ErrDuplicateRoom if the id exists.
	CreateRoom(ctx context.Context, params CreateRoomParams) (*Room, error)

	// GetRoom retrieves a room with its participants.
	GetRoom(ctx context.Context, roomID string) (*Room, error)

	// UpdateRoom applies the non-nil fields and bumps UpdatedAt.
	UpdateRoom(ctx context.Context, roomID string, update RoomUpdate) (*Room, error)

	// ListPublicRooms returns one page of public rooms, most recently updated first,
	// together with the total number of matching rooms.
	ListPublicRooms(ctx context.Context, params ListParams) ([]*Room, int, error)

	// DeleteRoom removes a room. Reports whether a record was removed.
	DeleteRoom(ctx context.Context, roomID string) (bool, error)

	// AddParticipant adds a participant unless one with the same user id is present.
	AddParticipant(ctx context.Context, roomID, userID, username string) ([]Participant, error)

	// RenameParticipant changes the username of a present participant. It is a no-op
	// when the user id is absent.
	RenameParticipant(ctx context.Context, roomID, userID, username string) ([]Participant, error)

	// RemoveParticipant removes a participant if present.
	RemoveParticipant(ctx context.Context, roomID, userID string) ([]Participant, error)

	// Close releases the underlying connection.
	Close() error
}

// Now returns the current time truncated to the millisecond precision rooms are stored with.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
