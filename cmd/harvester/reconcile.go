package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/harvestlab/reddit-harvester/internal/output"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewReconcileCmd creates the reconcile command
func NewReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile [prefix...]",
		Short: "Merge raw sinks left behind by a stopped run",
		Long: `Reconcile turns {prefix}_raw_posts.csv and {prefix}_raw_comments.csv into
{prefix}.xlsx. Without arguments every unreconciled prefix in the directory is
processed; more than one artifact is bundled into a zip archive.`,
		RunE: reconcile,
	}

	cmd.Flags().StringP("dir", "d", ".", "Directory holding the raw sinks")

	return cmd
}

func reconcile(cmd *cobra.Command, args []string) error {
	if _, err := bootstrap(cmd); err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("dir")

	prefixes := args
	if len(prefixes) == 0 {
		stranded, err := output.Stranded(dir)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		prefixes = stranded
	}
	if len(prefixes) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to reconcile")
		return nil
	}

	reconciler := output.NewReconciler(logrus.NewEntry(logrus.StandardLogger()))

	var artifacts []string
	for _, prefix := range prefixes {
		summary, err := reconciler.Reconcile(output.PathsFor(dir, prefix))
		if err != nil {
			logrus.Errorf("Failed to reconcile %s: %v", prefix, err)
			continue
		}
		artifacts = append(artifacts, summary.Artifact)
		fmt.Fprintf(cmd.OutOrStdout(), "%s posts=%d comments=%d merged=%d\n",
			summary.Artifact, summary.Posts, summary.Comments, summary.Merged)
	}

	if len(artifacts) > 1 {
		bundle := filepath.Join(dir, output.BundleName(time.Now()))
		if err := output.Bundle(bundle, artifacts); err != nil {
			return fmt.Errorf("failed to bundle artifacts: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), bundle)
	}

	if len(artifacts) < len(prefixes) {
		return fmt.Errorf("%d of %d prefixes could not be reconciled", len(prefixes)-len(artifacts), len(prefixes))
	}
	return nil
}
