package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/hms/internal/config"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/internal/platform/store"
	"github.com/ehr/hms/internal/registry"
)

// app is everything a command needs once configuration has loaded.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	gw     *gateway.Client
	reg    *registry.Registry
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hms-console",
		Short:         "Hospital administration data console",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.SetOut(out)

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(resourcesCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(sandboxCmd())
	return rootCmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

// tokenSource picks the outbound credentials: a static token, a minted
// service token, or none.
func tokenSource(cfg *config.Config) (gateway.TokenSource, error) {
	switch {
	case cfg.AuthToken != "":
		return auth.StaticToken(cfg.AuthToken), nil
	case cfg.AuthSigningKey != "":
		src, err := auth.NewServiceTokenSource(auth.ServiceTokenConfig{
			SigningKey: []byte(cfg.AuthSigningKey),
			Issuer:     cfg.AuthIssuer,
			Subject:    cfg.AuthSubject,
			Audience:   cfg.AuthAudience,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, nil
}

func newApp(_ context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	tokens, err := tokenSource(cfg)
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(gateway.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
		Tokens:    tokens,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(gw, store.WithLogger(logger), store.WithStaleGuard(cfg.StaleGuard))
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, gw: gw, reg: reg}, nil
}
