package http

import (
	"errors"

	"github.com/vovakirdan/codecollab-server/internal/core"
	"github.com/vovakirdan/codecollab-server/internal/proto"
)

// inboundToCommand decodes an inbound envelope. A non-nil *proto.ErrorData
// means the frame was rejected and should be answered with an error event.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.ErrorData) {
	msg, err := proto.Decode(inbound)
	if err != nil {
		var verr *proto.ValidationError
		switch {
		case errors.As(err, &verr):
			return nil, &proto.ErrorData{Code: core.ErrCodeValidationFailed, Message: verr.Error()}
		case errors.Is(err, proto.ErrUnknownEvent):
			return nil, &proto.ErrorData{Code: core.ErrCodeUnknownEvent, Message: err.Error()}
		default:
			return nil, &proto.ErrorData{Code: core.ErrCodeBadRequest, Message: "invalid message"}
		}
	}

	cmd := &core.Command{Room: msg.RoomID()}
	switch m := msg.(type) {
	case *proto.JoinRoom:
		cmd.Kind = core.CommandJoinRoom
		cmd.Username = m.Username
	case *proto.LeaveRoom:
		cmd.Kind = core.CommandLeaveRoom
	case *proto.CodeChange:
		cmd.Kind = core.CommandCodeChange
		cmd.Code = *m.Code
		cmd.Language = m.Language
	case *proto.CursorChange:
		cmd.Kind = core.CommandCursorChange
		cmd.Position = m.Position
		cmd.Selection = m.Selection
	case *proto.ChatMessage:
		cmd.Kind = core.CommandChatMessage
		cmd.Message = m.Message
		cmd.Username = m.Username
	case *proto.Typing:
		cmd.Kind = core.CommandTyping
		cmd.IsTyping = *m.IsTyping
	case *proto.LanguageChange:
		cmd.Kind = core.CommandLanguageChange
		cmd.Language = m.Language
	case *proto.RoomUpdate:
		cmd.Kind = core.CommandRoomUpdate
		cmd.Title = m.Title
		cmd.Description = m.Description
	default:
		return nil, &proto.ErrorData{Code: core.ErrCodeUnknownEvent, Message: "unknown event"}
	}
	return cmd, nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomJoined:
		return proto.Outbound{
			Event: proto.EventRoomJoined,
			Data: proto.RoomJoinedData{
				RoomID:       event.Room,
				Code:         event.Code,
				Language:     event.Language,
				Participants: participantsPayload(event.Participants),
				Cursors:      cursorsPayload(event.Cursors),
			},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Event: proto.EventUserJoined,
			Data: proto.UserJoinedData{
				UserID:       event.User,
				Username:     event.Username,
				Participants: participantsPayload(event.Participants),
			},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Event: proto.EventUserLeft,
			Data: proto.UserLeftData{
				UserID:       event.User,
				Participants: participantsPayload(event.Participants),
			},
		}
	case core.EventCodeUpdated:
		return proto.Outbound{
			Event: proto.EventCodeUpdated,
			Data:  proto.CodeUpdatedData{Code: event.Code, Language: event.Language, UserID: event.User},
		}
	case core.EventCursorUpdated:
		data := proto.CursorUpdatedData{UserID: event.User}
		if event.Cursor != nil {
			data.Position = event.Cursor.Position
			data.Selection = event.Cursor.Selection
		}
		return proto.Outbound{Event: proto.EventCursorUpdated, Data: data}
	case core.EventChatMessage:
		return proto.Outbound{
			Event: proto.EventChatMessage,
			Data: proto.ChatMessageData{
				UserID:    event.Message.From,
				Username:  event.Message.Username,
				Message:   event.Message.Text,
				Timestamp: event.Message.CreatedAt,
			},
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Event: proto.EventUserTyping,
			Data:  proto.UserTypingData{UserID: event.User, IsTyping: event.IsTyping},
		}
	case core.EventLanguageUpdated:
		return proto.Outbound{
			Event: proto.EventLanguageUpdated,
			Data:  proto.LanguageUpdatedData{Language: event.Language, UserID: event.User},
		}
	case core.EventRoomUpdated:
		return proto.Outbound{
			Event: proto.EventRoomUpdated,
			Data:  proto.RoomUpdatedData{Title: event.Title, Description: event.Description, UserID: event.User},
		}
	case core.EventError:
		if event.Error == nil {
			return errorOutbound(&proto.ErrorData{Code: "unknown", Message: "unknown error", RoomID: event.Room})
		}
		return errorOutbound(&proto.ErrorData{Code: event.Error.Code, Message: event.Error.Message, RoomID: event.Room})
	default:
		return errorOutbound(&proto.ErrorData{Code: "unknown", Message: "unknown event"})
	}
}

func errorOutbound(data *proto.ErrorData) proto.Outbound {
	return proto.Outbound{Event: proto.EventError, Data: data}
}

func participantsPayload(ps []core.Participant) []proto.Participant {
	out := make([]proto.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, proto.Participant{ID: p.ID, Username: p.Username, JoinedAt: p.JoinedAt})
	}
	return out
}

func cursorsPayload(cs []core.Cursor) []proto.Cursor {
	out := make([]proto.Cursor, 0, len(cs))
	for _, c := range cs {
		out = append(out, proto.Cursor{
			UserID:    c.UserID,
			Position:  c.Position,
			Selection: c.Selection,
			Timestamp: c.Timestamp.UnixMilli(),
		})
	}
	return out
}
