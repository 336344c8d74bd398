package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/harvest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one harvest job in the foreground",
		Long: `Run executes the job described by a YAML file and prints the run summary.

The first interrupt stops the run cooperatively: workers finish their current
item, raw sinks of the unfinished group stay on disk and can be merged later
with the reconcile command.`,
		RunE: runHarvest,
	}

	cmd.Flags().StringP("job", "j", "", "Job definition file (YAML)")
	cmd.Flags().StringP("output-dir", "o", "", "Override the job's output directory")
	cmd.Flags().Bool("copy", false, "Copy each artifact to the secondary location")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("job")
	job, err := config.LoadJob(path)
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
		job.OutputDir = dir
	}
	if copyFlag, _ := cmd.Flags().GetBool("copy"); copyFlag {
		job.CopyToSecondary = true
	}

	ctx := cmd.Context()
	h, err := newCoordinator(ctx, cfg).Start(ctx, job, harvest.Hooks{})
	if err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		select {
		case <-quit:
			logrus.Info("Interrupt received, stopping run")
			h.Stop()
		case <-h.Done():
		}
	}()

	summary := h.Wait()

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
