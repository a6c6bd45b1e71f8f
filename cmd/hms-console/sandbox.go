package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/ehr/hms/internal/config"
	"github.com/ehr/hms/internal/platform/middleware"
	"github.com/ehr/hms/internal/platform/sandbox"
)

func sandboxCmd() *cobra.Command {
	var (
		port string
		seed = sandbox.DefaultSeedConfig()
	)
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve a seeded demo backend for local development",
		Long: "Serve a synthetic hospital administration backend. Point API_BASE_URL\n" +
			"at it to run the console without the real backend.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandbox(port, seed)
		},
	}
	cmd.Flags().StringVar(&port, "port", "8200", "listen port")
	cmd.Flags().Int64Var(&seed.Seed, "seed", seed.Seed, "random seed, 0 for time based")
	cmd.Flags().IntVar(&seed.Patients, "patients", seed.Patients, "patients to generate")
	cmd.Flags().IntVar(&seed.Donors, "donors", seed.Donors, "donors to generate")
	cmd.Flags().IntVar(&seed.Assets, "assets", seed.Assets, "assets to generate")
	return cmd
}

func runSandbox(port string, seed sandbox.SeedConfig) error {
	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}
	logger := newLogger(&config.Config{Env: env, LogLevel: os.Getenv("LOG_LEVEL")})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	sandbox.NewServer(sandbox.NewSeeder(seed), logger).RegisterRoutes(e)

	go func() {
		addr := ":" + port
		logger.Info().Str("addr", addr).Msg("starting sandbox backend")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("sandbox error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(ctx)
}
