package proto

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValid(t *testing.T) {
	tests := []struct {
		name  string
		in    Inbound
		check func(t *testing.T, msg Message)
	}{
		{
			name: "join",
			in:   Inbound{Event: EventJoinRoom, Data: json.RawMessage(`{"roomId":"abc12345","username":"alice"}`)},
			check: func(t *testing.T, msg Message) {
				join, ok := msg.(*JoinRoom)
				require.True(t, ok)
				assert.Equal(t, "abc12345", join.RoomID())
				assert.Equal(t, "alice", join.Username)
			},
		},
		{
			name: "code change with empty code and language",
			in:   Inbound{Event: EventCodeChange, Data: json.RawMessage(`{"roomId":"r","code":"","language":"go"}`)},
			check: func(t *testing.T, msg Message) {
				cc, ok := msg.(*CodeChange)
				require.True(t, ok)
				require.NotNil(t, cc.Code)
				assert.Equal(t, "", *cc.Code)
				assert.Equal(t, "go", cc.Language)
			},
		},
		{
			name: "cursor keeps opaque payloads",
			in:   Inbound{Event: EventCursorChange, Data: json.RawMessage(`{"roomId":"r","position":{"lineNumber":1},"selection":null}`)},
			check: func(t *testing.T, msg Message) {
				cc, ok := msg.(*CursorChange)
				require.True(t, ok)
				assert.JSONEq(t, `{"lineNumber":1}`, string(cc.Position))
			},
		},
		{
			name: "typing false is a value",
			in:   Inbound{Event: EventTyping, Data: json.RawMessage(`{"roomId":"r","isTyping":false}`)},
			check: func(t *testing.T, msg Message) {
				typing, ok := msg.(*Typing)
				require.True(t, ok)
				require.NotNil(t, typing.IsTyping)
				assert.False(t, *typing.IsTyping)
			},
		},
		{
			name: "room update with description only",
			in:   Inbound{Event: EventRoomUpdate, Data: json.RawMessage(`{"roomId":"r","description":""}`)},
			check: func(t *testing.T, msg Message) {
				ru, ok := msg.(*RoomUpdate)
				require.True(t, ok)
				assert.Nil(t, ru.Title)
				require.NotNil(t, ru.Description)
			},
		},
		{
			name: "leave",
			in:   Inbound{Event: EventLeaveRoom, Data: json.RawMessage(`{"roomId":"r"}`)},
			check: func(t *testing.T, msg Message) {
				_, ok := msg.(*LeaveRoom)
				assert.True(t, ok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.in)
			require.NoError(t, err)
			tt.check(t, msg)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name      string
		in        Inbound
		wantField string
	}{
		{"missing data", Inbound{Event: EventJoinRoom}, "data"},
		{"null data", Inbound{Event: EventJoinRoom, Data: json.RawMessage(`null`)}, "data"},
		{"malformed data", Inbound{Event: EventJoinRoom, Data: json.RawMessage(`[1,2]`)}, "data"},
		{"missing room", Inbound{Event: EventJoinRoom, Data: json.RawMessage(`{"username":"a"}`)}, "roomId"},
		{"blank room", Inbound{Event: EventLeaveRoom, Data: json.RawMessage(`{"roomId":"  "}`)}, "roomId"},
		{"missing code", Inbound{Event: EventCodeChange, Data: json.RawMessage(`{"roomId":"r"}`)}, "code"},
		{"empty chat", Inbound{Event: EventChatMessage, Data: json.RawMessage(`{"roomId":"r","message":""}`)}, "message"},
		{"missing typing flag", Inbound{Event: EventTyping, Data: json.RawMessage(`{"roomId":"r"}`)}, "isTyping"},
		{"empty language", Inbound{Event: EventLanguageChange, Data: json.RawMessage(`{"roomId":"r","language":""}`)}, "language"},
		{"empty room update", Inbound{Event: EventRoomUpdate, Data: json.RawMessage(`{"roomId":"r"}`)}, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := Decode(Inbound{Event: "hello", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestOutboundShape(t *testing.T) {
	data, err := json.Marshal(Outbound{
		Event: EventCodeUpdated,
		Data:  CodeUpdatedData{Code: "x=1", UserID: "a"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"code-updated","data":{"code":"x=1","userId":"a"}}`, string(data))
}
