package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbuild/vaultbuild/pkg/stores"
)

func newCancelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running build",
		Long: `Record a cancellation for the given compiler job. The build record
flips to cancelled immediately; the compiler process owned by the submitting
command may keep running on its side for a short while.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			jobID := args[0]

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			build, err := a.durable.GetBuild(ctx, jobID)
			if err != nil {
				return err
			}
			if build.Status != stores.BuildStatusRunning && build.Status != stores.BuildStatusPending {
				return fmt.Errorf("job %s is already %s", jobID, build.Status)
			}

			// The compiler service lives and dies with the command that
			// submitted the job, so there is no process to send a cancel
			// RPC to from here. Flip the record; the submitting command's
			// cancel path handles the RPC for its own jobs.
			if err := a.durable.UpdateBuildStatus(ctx, jobID, stores.BuildStatusCancelled, nil, nil); err != nil {
				return err
			}

			fmt.Printf("job %s cancelled\n", jobID)
			return nil
		},
	}

	return cmd
}
