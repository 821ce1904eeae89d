package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// deleteCmd removes tickets from a project's todo.md.
var deleteCmd = &cobra.Command{
	Use:   "delete <project> <ticket-id>...",
	Short: "Delete tickets",
	Long: `Delete one or more tickets. Several tickets are deleted with a single
request.

With --cascade an epic is deleted together with its children. Cascade
applies to a single ticket only.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, ids := args[0], args[1:]

		cascade, err := cmd.Flags().GetBool("cascade")
		if err != nil {
			return err
		}

		if cascade && len(ids) > 1 {
			return fmt.Errorf("--cascade applies to a single ticket, got %d", len(ids))
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		s, err := loadProject(cmd.Context(), client, projectID)
		if err != nil {
			return err
		}
		if err := requireTickets(s, ids); err != nil {
			return err
		}

		if len(ids) == 1 {
			err = s.DeleteSingle(cmd.Context(), ids[0], cascade)
		} else {
			err = s.DeleteBatch(cmd.Context(), ids)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d tickets, %d remain\n", countDistinct(ids), s.Total())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().Bool("cascade", false, "Also delete the children of an epic")
}
