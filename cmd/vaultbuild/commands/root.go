// Package commands implements the vaultbuild command line surface: the
// headless equivalent of the interactive configuration wizard.
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
		Use:   "vaultbuild",
		Short: "Vaultbuild - Build Orchestration Engine",
		Long: `Vaultbuild turns an uploaded source project into a distributable
protected binary. It verifies the local toolchain, reconciles the recorded
entry file against the selected project folder, drives the external compiler
service and tracks per-project build state across interruptions.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newCancelCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newDoctorCommand())
	rootCmd.AddCommand(newSessionsCommand())
	rootCmd.AddCommand(newScanCommand())

	return rootCmd
}
