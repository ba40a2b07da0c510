package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultbuild/vaultbuild/pkg/stores"
)

func newSessionsCommand() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "sessions [project-id]",
		Short: "Inspect or purge persisted wizard sessions",
		Long: `Show the persisted wizard session for a project, or purge every session
older than the configured TTL with --purge.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if purge {
				removed, err := a.durable.PurgeStaleSessions(ctx, a.cfg.SessionTTL)
				if err != nil {
					return err
				}
				fmt.Printf("purged %d stale session(s)\n", removed)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("pass a project id, or --purge")
			}
			projectID := args[0]

			session, state, err := a.durable.LoadSession(ctx, projectID, a.cfg.SessionTTL)
			if err != nil {
				return err
			}
			switch state {
			case stores.SessionAbsent:
				fmt.Printf("no session for %s\n", projectID)
				return nil
			case stores.SessionExpired:
				fmt.Printf("session for %s expired at %s\n", projectID, session.SavedAt.Add(a.cfg.SessionTTL).Format("2006-01-02 15:04:05"))
				return nil
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(session)
			}

			fmt.Printf("project:   %s\n", session.ProjectID)
			fmt.Printf("step:      %d (completed %s)\n", session.CurrentStep, session.CompletedSteps)
			fmt.Printf("folder:    %s\n", session.SelectedFolderPath)
			fmt.Printf("entry:     %s\n", session.EntryFile)
			fmt.Printf("mode:      %s\n", session.ProtectionMode)
			fmt.Printf("saved at:  %s\n", session.SavedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "remove all sessions older than the TTL")

	return cmd
}
