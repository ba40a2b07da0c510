package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show a project's build history",
		Long: `Print the most recent builds recorded for the project, newest first,
with the produced artifact path for completed ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID := args[0]

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			builds, err := a.durable.ListBuildsByProject(ctx, projectID, limit, 0)
			if err != nil {
				return err
			}
			if len(builds) == 0 {
				fmt.Printf("no builds recorded for %s\n", projectID)
				return nil
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(builds)
			}

			for _, b := range builds {
				line := fmt.Sprintf("%s  %-10s  started %s", b.ID, b.Status, b.StartedAt.Format("2006-01-02 15:04:05"))
				if b.OutputPath != nil {
					line += "  -> " + *b.OutputPath
				}
				if b.Error != nil {
					line += "  error: " + *b.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum builds to show")

	return cmd
}
