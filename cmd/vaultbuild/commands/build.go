package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbuild/vaultbuild/pkg/compiler/protocol"
	"github.com/vaultbuild/vaultbuild/pkg/events"
	"github.com/vaultbuild/vaultbuild/pkg/orchestrator"
	"github.com/vaultbuild/vaultbuild/pkg/prereq"
	"github.com/vaultbuild/vaultbuild/pkg/wizard"
)

func newBuildCommand() *cobra.Command {
	var (
		licenseKey string
		entryFile  string
		folder     string
	)

	cmd := &cobra.Command{
		Use:   "build <project-id>",
		Short: "Build a project into a protected binary",
		Long: `Submit a build for the given project and stream its progress.

The project's wizard session supplies the entry file and options collected
interactively; the --entry and --folder flags override it for fully headless
use. The command exits once the build reaches a terminal state.`,
		Example: `  # Build using the saved wizard session
  vaultbuild build proj-42

  # Build with a license key embedded
  vaultbuild build proj-42 --license LW-XXXX-YYYY

  # Fully headless, no prior session
  vaultbuild build proj-42 --folder ~/uploads/proj-42 --entry src/main.py`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID := args[0]

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			session, err := a.machine.Open(ctx, projectID)
			if err != nil {
				return err
			}
			if folder != "" {
				session.SelectedFolderPath = folder
			}
			if entryFile != "" {
				session.EntryFile = entryFile
			}
			if licenseKey != "" {
				session.LicenseKey = licenseKey
			}
			if session.EntryFile == "" {
				return fmt.Errorf("no entry file configured for %s; pass --entry or complete the wizard", projectID)
			}
			if session.SelectedFolderPath == "" {
				return fmt.Errorf("no project folder for %s; pass --folder", projectID)
			}

			track := trackFor(session.SelectedFolderPath)
			a.gate.Recheck(ctx)
			if !a.gate.AllReady(track) {
				for _, tool := range a.gate.MissingTools(track) {
					fmt.Printf("missing tool %s, install with: %s\n", tool, prereq.InstallCommand(tool))
				}
				return fmt.Errorf("toolchain not ready for %s builds", track)
			}

			if err := a.startCompiler(ctx); err != nil {
				return err
			}

			spec := specFromSession(session, track)
			jobID, err := a.controller.StartBuild(ctx, spec)
			if err != nil {
				return err
			}
			fmt.Printf("build submitted: job %s\n", jobID)

			sub := a.bridge.Subscribe(jobID)
			defer sub.Unsubscribe()

			// The job may have finished before the subscription landed.
			if st := a.controller.Status(projectID); !st.IsBuilding {
				if st.OutputPath != "" {
					fmt.Printf("build completed: %s\n", st.OutputPath)
					return nil
				}
				return fmt.Errorf("build finished with status %s", st.Status)
			}

			for ev := range sub.Events() {
				switch ev.Kind {
				case events.KindProgress:
					if ev.Progress != nil {
						fmt.Printf("[%3d%%] %s\n", *ev.Progress, ev.Message)
					} else {
						fmt.Printf("       %s\n", ev.Message)
					}
				case events.KindResult:
					switch {
					case ev.Cancelled:
						fmt.Println("build cancelled")
						return nil
					case ev.Success:
						fmt.Printf("build completed: %s\n", ev.OutputPath)
						return nil
					default:
						return fmt.Errorf("build failed: %s", ev.Error)
					}
				}
			}

			// The channel closed without a result: the compiler service
			// went away mid-build.
			return fmt.Errorf("compiler service exited before the build finished")
		},
	}

	cmd.Flags().StringVar(&licenseKey, "license", "", "license key to embed")
	cmd.Flags().StringVar(&entryFile, "entry", "", "entry file, overriding the wizard session")
	cmd.Flags().StringVar(&folder, "folder", "", "project folder, overriding the wizard session")

	return cmd
}

// specFromSession assembles the controller input from a wizard session.
func specFromSession(session *wizard.Session, track prereq.Track) *orchestrator.BuildSpec {
	return &orchestrator.BuildSpec{
		ProjectID:             session.ProjectID,
		Track:                 track,
		SelectedFolderPath:    session.SelectedFolderPath,
		EntryFile:             session.EntryFile,
		LicenseKey:            session.LicenseKey,
		BundleRequirements:    true,
		EnvValues:             session.EnvValues,
		DistributionType:      protocol.DistributionType(session.DistributionType),
		CreateDesktopShortcut: session.CreateDesktopShortcut,
		CreateStartMenu:       session.CreateStartMenu,
		Publisher:             session.Publisher,
		ProtectionMode:        session.ProtectionMode,
		DemoDurationMinutes:   session.DemoDurationMinutes,
	}
}
