package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harvestlab/reddit-harvester/internal/api"
	"github.com/harvestlab/reddit-harvester/internal/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the control API and scheduled runs",
		Long: `Serve exposes the control API (start, pause, resume, stop, state), streams
progress and log lines over /ws and runs JOB_FILE on JOB_SCHEDULE when set.`,
		RunE: serve,
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	logrus.Info("Starting harvester control server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := api.NewHub()
	go hub.Run(ctx)

	srv := api.NewServer(ctx, newCoordinator(ctx, cfg), hub)

	schedulerService := scheduler.NewService(cfg, srv)
	if err := schedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer schedulerService.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	if h := srv.Current(); h != nil {
		h.Stop()
		select {
		case <-h.Done():
		case <-time.After(30 * time.Second):
			logrus.Warn("Run did not stop in time")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
	return nil
}
