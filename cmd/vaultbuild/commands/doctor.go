package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbuild/vaultbuild/pkg/prereq"
)

func newDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the local build toolchain",
		Long: `Probe every toolchain component and report what is installed. The
installer builder is optional: its absence only disables installer
distributions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			a.gate.Recheck(ctx)

			for _, st := range a.gate.Statuses() {
				if st.Installed {
					fmt.Printf("  ok       %-10s %s\n", st.Name, st.Version)
					continue
				}
				fmt.Printf("  missing  %-10s install: %s\n", st.Name, prereq.InstallCommand(st.Name))
			}

			fmt.Println()
			fmt.Printf("python builds: ready=%v\n", a.gate.AllReady(prereq.TrackPython))
			fmt.Printf("node builds:   ready=%v\n", a.gate.AllReady(prereq.TrackNode))
			fmt.Printf("installer distributions: available=%v\n", a.gate.InstallerAvailable())
			return nil
		},
	}

	return cmd
}
