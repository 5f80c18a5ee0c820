package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "redeploy",
		Short: "Redeploy - Deployment Orchestration for Branch-Driven CI",
		Long: `Redeploy drives configuration deployments through a branch-driven CI
pipeline: it publishes changes to a remote branch, discovers the CI job the
push triggered, polls it to completion, and manages the optional
test-branch / verify / merge workflow including ephemeral branch cleanup.

Session state is persisted locally, so interrupted deployments can be
inspected, retried, and cleaned up later.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "redeploy.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newRetryCommand())
	rootCmd.AddCommand(newCleanupCommand())
	rootCmd.AddCommand(newSessionsCommand())

	return rootCmd
}
