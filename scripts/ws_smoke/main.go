package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/codecollab-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:5000/ws", "WebSocket address")
	user := flag.String("user", "tester", "username to join with")
	room := flag.String("room", "smoke001", "room id")
	code := flag.String("code", "console.log('smoke')", "code to push")
	text := flag.String("text", "hello from smoke test", "chat message text")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(event string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", event, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Event: event, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", event, err)
		}
		return nil
	}

	target := proto.Target{ID: *room}
	if err := send(proto.EventJoinRoom, proto.JoinRoom{Target: target, Username: *user}); err != nil {
		return err
	}
	if err := send(proto.EventCodeChange, proto.CodeChange{Target: target, Code: code}); err != nil {
		return err
	}
	if err := send(proto.EventChatMessage, proto.ChatMessage{Target: target, Message: *text, Username: *user}); err != nil {
		return err
	}

	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("received event=%s data=%s\n", frame.Event, frame.Data)

		switch frame.Event {
		case proto.EventError:
			return fmt.Errorf("server error: %s", frame.Data)
		case proto.EventChatMessage:
			return nil
		}
	}
}
