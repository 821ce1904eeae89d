package cmd

import (
	"fmt"
	"time"

	"github.com/danielolaszy/boardsync/internal/agent"
	"github.com/danielolaszy/boardsync/internal/api"
	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/internal/store"
	"github.com/danielolaszy/boardsync/pkg/models"
	"github.com/spf13/cobra"
)

// agentCmd groups the automation agent commands.
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Hand tickets to the automation agent",
}

var agentPromptCmd = &cobra.Command{
	Use:   "prompt <project> <ticket-id>...",
	Short: "Print the work order the agent would receive",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		_, prompt, err := buildAgentPrompt(cmd, client, args[0], args[1:])
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), prompt)
		return nil
	},
}

var agentInvokeCmd = &cobra.Command{
	Use:   "invoke <project> <ticket-id>...",
	Short: "Start the agent on tickets",
	Long: `Build a work order for the given tickets and start the agent in the
project's directory. Prints the invocation id; follow it with
"boardsync agent status <id> --wait".`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID := args[0]

		client, err := newClient()
		if err != nil {
			return err
		}

		project, prompt, err := buildAgentPrompt(cmd, client, projectID, args[1:])
		if err != nil {
			return err
		}

		inv, err := client.InvokeAgent(cmd.Context(), projectID, project.Path, prompt)
		if err != nil {
			return err
		}

		logging.Info("agent invoked",
			"project_id", projectID,
			"invocation_id", inv.ID,
			"prompt", logging.Abbreviate(prompt, 80))

		fmt.Fprintf(cmd.OutOrStdout(), "Started invocation %s\n", inv.ID)
		return nil
	},
}

var agentStatusCmd = &cobra.Command{
	Use:   "status <invocation-id>",
	Short: "Show the state and output of an agent invocation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, err := cmd.Flags().GetBool("wait")
		if err != nil {
			return err
		}

		interval, err := cmd.Flags().GetDuration("interval")
		if err != nil {
			return err
		}
		if interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		printed := 0

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			inv, err := client.AgentStatus(ctx, args[0])
			if err != nil {
				return err
			}

			// Output accumulates between polls; print only the new lines.
			if printed > len(inv.OutputLines) {
				printed = 0
			}
			for _, line := range inv.OutputLines[printed:] {
				fmt.Fprintln(out, line)
			}
			printed = len(inv.OutputLines)

			if !wait || !agentRunning(inv.Status) {
				fmt.Fprintf(out, "Status: %s\n", inv.Status)
				if inv.Status == models.AgentFailed {
					return fmt.Errorf("agent invocation %s failed: %s", inv.ID, inv.Error)
				}
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentPromptCmd)
	agentCmd.AddCommand(agentInvokeCmd)
	agentCmd.AddCommand(agentStatusCmd)

	for _, c := range []*cobra.Command{agentPromptCmd, agentInvokeCmd} {
		c.Flags().StringP("instruction", "i", "", "Task description appended to the work order")
		c.Flags().String("mode", string(agent.ModeInteractive), "interactive or one_shot")
	}

	agentStatusCmd.Flags().Bool("wait", false, "Poll until the invocation finishes")
	agentStatusCmd.Flags().Duration("interval", 2*time.Second, "Polling interval with --wait")
}

// buildAgentPrompt loads the project and renders the work order for ids.
func buildAgentPrompt(cmd *cobra.Command, client *api.Client, projectID string, ids []string) (*models.Project, string, error) {
	instruction, err := cmd.Flags().GetString("instruction")
	if err != nil {
		return nil, "", err
	}

	modeName, err := cmd.Flags().GetString("mode")
	if err != nil {
		return nil, "", err
	}

	mode, err := agent.ParseMode(modeName)
	if err != nil {
		return nil, "", err
	}

	project, err := client.FetchProject(cmd.Context(), projectID)
	if err != nil {
		return nil, "", err
	}

	s, err := loadProject(cmd.Context(), client, projectID)
	if err != nil {
		return nil, "", err
	}

	selected, err := selectTickets(s, ids)
	if err != nil {
		return nil, "", err
	}

	prompt, err := agent.BuildPrompt(agent.Request{
		Tickets:     selected,
		Board:       s.Tickets(),
		Instruction: instruction,
		Mode:        mode,
	})
	if err != nil {
		return nil, "", err
	}
	return project, prompt, nil
}

func selectTickets(s *store.TicketStore, ids []string) ([]models.Ticket, error) {
	selected := make([]models.Ticket, 0, len(ids))
	for _, id := range ids {
		t, ok := s.Ticket(id)
		if !ok {
			return nil, fmt.Errorf("ticket %s not found in project %s", id, s.ProjectID())
		}
		selected = append(selected, t)
	}
	return selected, nil
}

func agentRunning(status models.AgentStatus) bool {
	return status == models.AgentPending || status == models.AgentRunning
}
