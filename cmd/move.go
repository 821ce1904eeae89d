package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/internal/store"
	"github.com/danielolaszy/boardsync/pkg/models"
	"github.com/spf13/cobra"
)

// moveCmd moves tickets to another stage.
var moveCmd = &cobra.Command{
	Use:   "move <project> <stage> <ticket-id>...",
	Short: "Move tickets to a stage",
	Long: `Move one or more tickets to a stage.

Several tickets are moved with one request each, sent concurrently. If some
of them fail, only those keep their old stage and the command reports which.

With --epic a single epic is moved together with its children in one
request; pass --children=false to move the epic alone.

Stages: 계획, 진행중, 완료, QA Done, 배포

Example:
  boardsync move my-project 진행중 a1b2 c3d4`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, ids := args[0], args[2:]

		stage, err := models.ParseStage(args[1])
		if err != nil {
			return err
		}

		epic, err := cmd.Flags().GetBool("epic")
		if err != nil {
			return err
		}

		children, err := cmd.Flags().GetBool("children")
		if err != nil {
			return err
		}

		if epic && len(ids) != 1 {
			return fmt.Errorf("--epic takes exactly one ticket id, got %d", len(ids))
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

		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		switch {
		case epic:
			if t, _ := s.Ticket(ids[0]); t.Type != models.TicketEpic {
				return fmt.Errorf("ticket %s is not an epic", ids[0])
			}
			if err := s.MoveEpic(ctx, ids[0], stage, children); err != nil {
				return err
			}
			moved := 1
			if children {
				t, _ := s.Ticket(ids[0])
				moved += len(t.ChildrenIDs)
			}
			fmt.Fprintf(out, "Moved epic %s (%d tickets) to %s\n", ids[0], moved, stage)

		case len(ids) == 1:
			if err := s.MoveSingle(ctx, ids[0], stage); err != nil {
				return err
			}
			fmt.Fprintf(out, "Moved %s to %s\n", ids[0], stage)

		default:
			err := s.MoveBatch(ctx, ids, stage)
			var batchErr *store.BatchMoveError
			if errors.As(err, &batchErr) {
				logging.Warn("batch move partially failed",
					"project_id", projectID,
					"failed", batchErr.Failed)
				for _, id := range batchErr.Failed {
					fmt.Fprintf(out, "Failed to move %s: %v\n", id, batchErr.Errs[id])
				}
				fmt.Fprintf(out, "Moved %d of %d tickets to %s\n",
					batchErr.Requested-len(batchErr.Failed), batchErr.Requested, stage)
				return fmt.Errorf("failed to move %s", strings.Join(batchErr.Failed, ", "))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Moved %d tickets to %s\n", countDistinct(ids), stage)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().Bool("epic", false, "Move an epic with a single request")
	moveCmd.Flags().Bool("children", true, "With --epic, move the epic's children too")
}

func countDistinct(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
