package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/codecollab-server/internal/config"
	"github.com/vovakirdan/codecollab-server/internal/core"
	"github.com/vovakirdan/codecollab-server/internal/store"
	redisstore "github.com/vovakirdan/codecollab-server/internal/store/redis"
	"github.com/vovakirdan/codecollab-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/codecollab-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	writer          *core.Writer
	store           store.RoomStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	writer := core.NewWriter(core.WriterOptions{Workers: cfg.WriteWorkers}, logger)
	hub := core.NewHub(st, core.NewRegistry(), writer, core.Options{
		SaveDebounce:       cfg.SaveDebounce,
		MaxRoomsPerSession: cfg.MaxRoomsPerSession,
	}, logger)
	server := transporthttp.NewServer(hub, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		writer:          writer,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.RoomStore, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		st, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("redis store initialized")
		return st, nil
	default:
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
		return st, nil
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		shutdownErr := a.server.Shutdown(shutdownCtx)

		stopHub()
		a.cleanup()
		if shutdownErr != nil {
			return shutdownErr
		}
		return <-serverErr
	}
}

// cleanup stops the hub, drains pending writes and closes the store, in that order.
func (a *App) cleanup() {
	<-a.hub.Done()
	a.writer.Close()
	a.log.Info().Msg("pending writes drained")

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
