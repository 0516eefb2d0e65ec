package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/codecollab-server/internal/config"
	"github.com/vovakirdan/codecollab-server/internal/core"
	"github.com/vovakirdan/codecollab-server/internal/store"
	"github.com/vovakirdan/codecollab-server/internal/store/sqlite"
)

type testEnv struct {
	server *httptest.Server
	store  store.RoomStore
	hub    *core.Hub
}

// createTestStore creates an in-memory SQLite store.
func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.SaveDebounce = 50 * time.Millisecond
	return cfg
}

func startTestServer(t *testing.T, st store.RoomStore, cfg config.Config) *testEnv {
	t.Helper()

	disabledLogger := zerolog.Nop()
	writer := core.NewWriter(core.WriterOptions{Workers: 2}, &disabledLogger)
	hub := core.NewHub(st, core.NewRegistry(), writer, core.Options{
		SaveDebounce:       cfg.SaveDebounce,
		MaxRoomsPerSession: cfg.MaxRoomsPerSession,
	}, &disabledLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)

	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
		cancel()
		<-hub.Done()
		writer.Close()
	})

	return &testEnv{server: ts, store: st, hub: hub}
}
