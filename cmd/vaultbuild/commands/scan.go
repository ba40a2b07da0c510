package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultbuild/vaultbuild/pkg/host"
)

func newScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan a project folder",
		Long: `Walk a project folder and report its detected layout: toolchain track,
entry point candidates, python packages, data directories and declared
environment variable names. Values from env files are never printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := host.ScanProjectStructure(args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ps)
			}

			fmt.Printf("track:       %s\n", ps.Track)
			if len(ps.EntryCandidates) > 0 {
				fmt.Printf("entry:       %s (candidates: %s)\n", ps.EntryCandidates[0], strings.Join(ps.EntryCandidates, ", "))
			}
			if len(ps.Packages) > 0 {
				fmt.Printf("packages:    %s\n", strings.Join(ps.Packages, ", "))
			}
			if len(ps.DataDirs) > 0 {
				fmt.Printf("data dirs:   %s\n", strings.Join(ps.DataDirs, ", "))
			}
			if len(ps.EnvKeys) > 0 {
				fmt.Printf("env keys:    %s\n", strings.Join(ps.EnvKeys, ", "))
			}
			fmt.Printf("requirements: %v, package.json: %v, frontend: %v\n",
				ps.HasRequirements, ps.HasPackageJSON, ps.HasFrontend)
			return nil
		},
	}

	return cmd
}
