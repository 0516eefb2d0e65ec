package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/codecollab-server/internal/app"
	"github.com/vovakirdan/codecollab-server/internal/config"
	applog "github.com/vovakirdan/codecollab-server/internal/log"
)

type serveFlags struct {
	configPath string
	addr       string
	logLevel   string
	store      string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "codecollab-server",
		Short:         "Realtime collaborative code editor backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serve := newServeCmd()
	root.Flags().AddFlagSet(serve.Flags())
	root.RunE = serve.RunE
	root.AddCommand(serve)
	return root
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to config.yaml")
	cmd.Flags().StringVar(&flags.addr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (overrides config)")
	cmd.Flags().StringVar(&flags.store, "store", "", "room store driver: sqlite or redis (overrides config)")
	return cmd
}

func runServe(parent context.Context, flags serveFlags) error {
	bootLogger := applog.New("info")

	cfg, path, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(config.Config{
		Addr:        flags.addr,
		LogLevel:    flags.logLevel,
		StoreDriver: flags.store,
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := applog.New(cfg.LogLevel)
	logger.Info().Str("config", path).Str("store", cfg.StoreDriver).Msg("configuration loaded")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize app")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting codecollab server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
