package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the client to a room, creating it if needed.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the client from a room.
	CommandLeaveRoom
	// CommandCodeChange replaces the room buffer.
	CommandCodeChange
	// CommandCursorChange updates the sender's cursor.
	CommandCursorChange
	// CommandChatMessage relays a chat line to the room.
	CommandChatMessage
	// CommandTyping relays a typing indicator.
	CommandTyping
	// CommandLanguageChange switches the room language.
	CommandLanguageChange
	// CommandRoomUpdate edits room metadata.
	CommandRoomUpdate
)

func (k CommandKind) String() string {
	switch k {
	case CommandJoinRoom:
		return "join-room"
	case CommandLeaveRoom:
		return "leave-room"
	case CommandCodeChange:
		return "code-change"
	case CommandCursorChange:
		return "cursor-change"
	case CommandChatMessage:
		return "chat-message"
	case CommandTyping:
		return "typing"
	case CommandLanguageChange:
		return "language-change"
	case CommandRoomUpdate:
		return "room-update"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Room     string
	Username string
	Code     string
	// Language is optional on code changes; empty means unchanged.
	Language    string
	Position    json.RawMessage
	Selection   json.RawMessage
	Message     string
	IsTyping    bool
	Title       *string
	Description *string
}
