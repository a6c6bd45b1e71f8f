package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehr/hms/internal/console"
	"github.com/ehr/hms/internal/platform/snapshot"
	"github.com/ehr/hms/internal/platform/telemetry"
	"github.com/ehr/hms/internal/platform/websocket"
)

func serveCmd() *cobra.Command {
	var restore, preload bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the console API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), restore, preload)
		},
	}
	cmd.Flags().BoolVar(&restore, "restore", false, "hydrate collections from the snapshot backend before serving")
	cmd.Flags().BoolVar(&preload, "preload", false, "fetch every collection from the backend before serving")
	return cmd
}

func runServer(ctx context.Context, restore, preload bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := appFactory(ctx)
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    console.ServiceName,
		ServiceVersion: console.Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	snaps, err := snapshot.Open(ctx, cfg, logger)
	switch {
	case errors.Is(err, snapshot.ErrDisabled):
		snaps = nil
		if restore {
			logger.Warn().Msg("--restore ignored: no snapshot backend configured")
		}
	case err != nil:
		return err
	default:
		defer snaps.Close()
		if restore {
			names, err := snapshot.Restore(ctx, snaps, a.reg.Hub, logger)
			if err != nil {
				return err
			}
			logger.Info().Strs("containers", names).Msg("restored from snapshot")
		}
	}

	if preload {
		if err := a.reg.Hub.LoadAll(ctx); err != nil {
			logger.Warn().Err(err).Msg("preload incomplete")
		}
	}

	watch := websocket.NewHub(logger)
	stopWatch := watch.Follow(a.reg.Hub)
	defer stopWatch()

	e := console.NewServer(cfg, console.Deps{
		Registry:  a.reg,
		Snapshots: snaps,
		Watch:     watch,
		Logger:    logger,
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", cfg.APIBaseURL).Msg("starting console")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down console")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
