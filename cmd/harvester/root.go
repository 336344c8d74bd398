package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/harvest"
	"github.com/harvestlab/reddit-harvester/internal/notifications"
	"github.com/harvestlab/reddit-harvester/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Bulk Reddit post and comment harvester",
		Long: `harvester searches Reddit for keyword groups, walks community listings or
resolves explicit post links, and writes one spreadsheet per keyword group.

Process settings come from the environment (or a .env file); what to collect
comes from a job file or the control API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewReconcileCmd())

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the environment and configures process-wide logging
func bootstrap(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug || verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	return cfg, nil
}

// newCoordinator wires the secondary store and notification channels from cfg
func newCoordinator(ctx context.Context, cfg *config.Config) *harvest.Coordinator {
	opts := []harvest.Option{harvest.WithStore(artifactStore(ctx, cfg))}

	if n := notifications.NewService(cfg); n.Enabled() {
		opts = append(opts, harvest.WithNotifier(n))
	}

	return harvest.NewCoordinator(cfg, opts...)
}

// artifactStore prefers Azure Blob Storage and falls back to a local directory
func artifactStore(ctx context.Context, cfg *config.Config) storage.ArtifactStore {
	if cfg.StorageAccount != "" {
		store, err := storage.NewAzureStore(ctx, cfg.StorageAccount, cfg.StorageContainer)
		if err == nil {
			logrus.Infof("Copying artifacts to container %s", cfg.StorageContainer)
			return store
		}
		logrus.Warnf("Azure storage unavailable, copying artifacts locally: %v", err)
	}

	local := storage.NewLocalStore(cfg.SecondaryDir)
	logrus.Infof("Copying artifacts to %s", local.Dir())
	return local
}
