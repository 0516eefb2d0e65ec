package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventCodeChange     = "code-change"
	EventCursorChange   = "cursor-change"
	EventChatMessage    = "chat-message"
	EventTyping         = "typing"
	EventLanguageChange = "language-change"
	EventRoomUpdate     = "room-update"
)

// Outbound event names.
const (
	EventRoomJoined      = "room-joined"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventCodeUpdated     = "code-updated"
	EventCursorUpdated   = "cursor-updated"
	EventUserTyping      = "user-typing"
	EventLanguageUpdated = "language-updated"
	EventRoomUpdated     = "room-updated"
	EventError           = "error"
)

// ErrUnknownEvent is returned by Decode for an event name it does not know.
var ErrUnknownEvent = errors.New("unknown event")

// ValidationError reports a missing or malformed field in an inbound payload.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

func missing(field string) error {
	return &ValidationError{Field: field, Msg: "is required"}
}

// Message is a decoded inbound event. The set of implementations is closed.
type Message interface {
	RoomID() string
	validate() error
}

// Target is embedded by every inbound payload.
type Target struct {
	ID string `json:"roomId"`
}

// RoomID returns the target room.
func (t Target) RoomID() string { return t.ID }

func (t Target) validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return missing("roomId")
	}
	return nil
}

// JoinRoom asks to join a room, creating it when it does not exist.
type JoinRoom struct {
	Target
	Username string `json:"username"`
}

// LeaveRoom asks to leave a room.
type LeaveRoom struct {
	Target
}

// CodeChange replaces the room buffer. Code may be empty but not absent.
type CodeChange struct {
	Target
	Code     *string `json:"code"`
	Language string  `json:"language,omitempty"`
}

func (m *CodeChange) validate() error {
	if err := m.Target.validate(); err != nil {
		return err
	}
	if m.Code == nil {
		return missing("code")
	}
	return nil
}

// CursorChange reports the sender's cursor. Position and Selection are opaque.
type CursorChange struct {
	Target
	Position  json.RawMessage `json:"position"`
	Selection json.RawMessage `json:"selection"`
}

// ChatMessage is a chat line.
type ChatMessage struct {
	Target
	Message  string `json:"message"`
	Username string `json:"username"`
}

func (m *ChatMessage) validate() error {
	if err := m.Target.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(m.Message) == "" {
		return missing("message")
	}
	return nil
}

// Typing is a typing indicator.
type Typing struct {
	Target
	IsTyping *bool `json:"isTyping"`
}

func (m *Typing) validate() error {
	if err := m.Target.validate(); err != nil {
		return err
	}
	if m.IsTyping == nil {
		return missing("isTyping")
	}
	return nil
}

// LanguageChange switches the room language.
type LanguageChange struct {
	Target
	Language string `json:"language"`
}

func (m *LanguageChange) validate() error {
	if err := m.Target.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(m.Language) == "" {
		return missing("language")
	}
	return nil
}

// RoomUpdate edits room metadata. At least one field must be present.
type RoomUpdate struct {
	Target
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (m *RoomUpdate) validate() error {
	if err := m.Target.validate(); err != nil {
		return err
	}
	if m.Title == nil && m.Description == nil {
		return &ValidationError{Field: "title", Msg: "title or description is required"}
	}
	return nil
}

// Decode parses and validates the payload of an inbound envelope.
// It returns ErrUnknownEvent or a *ValidationError on bad input.
func Decode(in Inbound) (Message, error) {
	var msg Message
	switch in.Event {
	case EventJoinRoom:
		msg = &JoinRoom{}
	case EventLeaveRoom:
		msg = &LeaveRoom{}
	case EventCodeChange:
		msg = &CodeChange{}
	case EventCursorChange:
		msg = &CursorChange{}
	case EventChatMessage:
		msg = &ChatMessage{}
	case EventTyping:
		msg = &Typing{}
	case EventLanguageChange:
		msg = &LanguageChange{}
	case EventRoomUpdate:
		msg = &RoomUpdate{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, in.Event)
	}

	if len(in.Data) == 0 || string(in.Data) == "null" {
		return nil, missing("data")
	}
	if err := json.Unmarshal(in.Data, msg); err != nil {
		return nil, &ValidationError{Field: "data", Msg: "malformed payload"}
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Participant is a connected member of a room.
type Participant struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Cursor is a participant's last cursor. Timestamp is unix milliseconds.
type Cursor struct {
	UserID    string          `json:"userId"`
	Position  json.RawMessage `json:"position"`
	Selection json.RawMessage `json:"selection"`
	Timestamp int64           `json:"timestamp"`
}

// RoomJoinedData is the snapshot sent to a joining client.
type RoomJoinedData struct {
	RoomID       string        `json:"roomId"`
	Code         string        `json:"code"`
	Language     string        `json:"language"`
	Participants []Participant `json:"participants"`
	Cursors      []Cursor      `json:"cursors"`
}

// UserJoinedData notifies the room about a new participant.
type UserJoinedData struct {
	UserID       string        `json:"userId"`
	Username     string        `json:"username"`
	Participants []Participant `json:"participants"`
}

// UserLeftData notifies the room about a participant leaving.
type UserLeftData struct {
	UserID       string        `json:"userId"`
	Participants []Participant `json:"participants"`
}

// CodeUpdatedData carries a new buffer.
type CodeUpdatedData struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
	UserID   string `json:"userId"`
}

// CursorUpdatedData carries another participant's cursor.
type CursorUpdatedData struct {
	UserID    string          `json:"userId"`
	Position  json.RawMessage `json:"position"`
	Selection json.RawMessage `json:"selection"`
}

// ChatMessageData is a relayed chat line.
type ChatMessageData struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// UserTypingData is a typing indicator.
type UserTypingData struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// LanguageUpdatedData announces a language switch.
type LanguageUpdatedData struct {
	Language string `json:"language"`
	UserID   string `json:"userId"`
}

// RoomUpdatedData announces new room metadata.
type RoomUpdatedData struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	UserID      string  `json:"userId"`
}

// ErrorData describes a failure for a single client.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}
