package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/netgrid-io/netgrid/internal/cli/config"
	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/meta"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database schema and seed the base class hierarchy",
	Long: `Creates the graph storage tables if they do not exist and seeds the
well-known classes (RootObject, InventoryObject, GenericObjectList) and the
containment root. Safe to run more than once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
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

		mgr := meta.NewManager(store, meta.NewClassCache(), logger)
		if err := mgr.Bootstrap(ctx); err != nil {
			return fmt.Errorf("failed to seed base classes: %w", err)
		}

		color.Green("✓ Database initialized (%s)", cfg.Database.DSN)
		return nil
	},
}
