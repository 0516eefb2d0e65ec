package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/vovakirdan/codecollab-server/internal/store/sqlite"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := sqlite.New(":memory:")
	if err != nil {
		b.Fatal(err)
	}
	defer st.Close()

	writer := NewWriter(WriterOptions{Workers: 2}, nil)
	defer writer.Close()
	hub := NewHub(st, NewRegistry(), writer, DefaultOptions(), nil)
	go hub.Run(ctx)

	sender := NewClient("sender", "sender")
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandJoinRoom, Room: "bench", Username: "sender"}
	waitKind(b, sender.Events, EventRoomJoined)

	clients := make([]*Client, 0, recipients)
	for i := 0; i < recipients; i++ {
		c := NewClient(fmt.Sprintf("c%d", i), "client")
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandJoinRoom, Room: "bench", Username: "client"}
		waitKind(b, c.Events, EventRoomJoined)
		clients = append(clients, c)
	}

	// Drain everyone except the measured recipient to avoid eviction.
	go func() {
		for range sender.Events {
		}
	}()
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{Kind: CommandCodeChange, Room: "bench", Code: "payload"}
		waitKind(b, target.Events, EventCodeUpdated)
	}
	b.StopTimer()
	cancel()
	<-hub.Done()
}

func waitKind(b *testing.B, ch <-chan *Event, kind EventKind) {
	for ev := range ch {
		if ev.Kind == kind {
			return
		}
	}
	b.Fatalf("events closed before kind %v", kind)
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_200(b *testing.B) { benchmarkRoomBroadcast(b, 200) }
