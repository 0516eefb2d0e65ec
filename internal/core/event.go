package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomJoined delivers the room snapshot to a joining client.
	EventRoomJoined EventKind = iota
	// EventUserJoined notifies the rest of the room about a join.
	EventUserJoined
	// EventUserLeft notifies the rest of the room about a leave or disconnect.
	EventUserLeft
	// EventCodeUpdated carries a new buffer.
	EventCodeUpdated
	// EventCursorUpdated carries another participant's cursor.
	EventCursorUpdated
	// EventChatMessage carries a chat line to the whole room.
	EventChatMessage
	// EventUserTyping carries a typing indicator.
	EventUserTyping
	// EventLanguageUpdated announces a language switch.
	EventLanguageUpdated
	// EventRoomUpdated announces new room metadata.
	EventRoomUpdated
	// EventError notifies a single client about a failure.
	EventError
)

// Event is sent to clients to describe what happened in the system.
// A single Event may be shared by many recipients and must not be mutated after send.
type Event struct {
	Kind         EventKind
	Room         string
	User         string
	Username     string
	Code         string
	Language     string
	Participants []Participant
	Cursors      []Cursor
	Cursor       *Cursor
	Message      Message
	IsTyping     bool
	Title        *string
	Description  *string
	Error        *CoreError
}

func errorEvent(room, code, msg string) *Event {
	return &Event{Kind: EventError, Room: room, Error: coreError(code, msg)}
}
