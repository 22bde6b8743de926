package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/app"
	"github.com/netgrid-io/netgrid/internal/blob"
	"github.com/netgrid-io/netgrid/internal/cli/config"
	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/meta"
	"github.com/netgrid-io/netgrid/internal/object"
	"github.com/netgrid-io/netgrid/internal/query"
	"github.com/netgrid-io/netgrid/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inventory API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must be set (or NETGRID_AUTH_JWT_SECRET)")
		}

		logger, err := buildLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, err := graph.Open(cfg.Database.Driver, cfg.Database.DSN, logger)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}

		blobs, err := blob.NewStore(cfg.Blob.Dir)
		if err != nil {
			return fmt.Errorf("failed to open blob store: %w", err)
		}

		mgr := meta.NewManager(store, meta.NewClassCache(), logger)
		if err := mgr.Bootstrap(ctx); err != nil {
			return fmt.Errorf("failed to seed base classes: %w", err)
		}

		mapper := object.NewMapper(store, mgr, logger)
		engine := query.NewEngine(store, mgr, logger)
		services := app.NewServices(store, mgr, mapper, blobs, app.Config{
			EnforceBusinessRules: cfg.Rules.Enforce,
		}, logger)

		auth := web.NewAuthService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.SessionMinutes)*time.Minute)
		server := web.NewServer(cfg.Addr(), mgr, mapper, engine, services, auth, logger)

		errCh := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		color.Green("✓ Netgrid listening on %s", cfg.Addr())

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

// buildLogger constructs the process logger at the configured level.
func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}
