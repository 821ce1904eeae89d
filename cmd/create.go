package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// createCmd appends a ticket to a section of a project.
var createCmd = &cobra.Command{
	Use:   "create <project>",
	Short: "Create a ticket in a section",
	Long: `Create a ticket at the end of a section of the project's todo.md.

Example:
  boardsync create my-project --section "백엔드 API" --title "Add refresh tokens"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		section, err := cmd.Flags().GetString("section")
		if err != nil {
			return err
		}

		title, err := cmd.Flags().GetString("title")
		if err != nil {
			return err
		}

		if strings.TrimSpace(section) == "" || strings.TrimSpace(title) == "" {
			return fmt.Errorf("section and title must not be empty")
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		s, err := loadProject(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}

		if err := s.Create(cmd.Context(), section, title); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %q in %s, %d tickets total\n", title, section, s.Total())
		return nil
	},
}

// createChildCmd adds a child ticket under an existing ticket.
var createChildCmd = &cobra.Command{
	Use:   "create-child <project> <parent-id>",
	Short: "Create a child ticket under a parent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, parentID := args[0], args[1]

		title, err := cmd.Flags().GetString("title")
		if err != nil {
			return err
		}

		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("title must not be empty")
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		s, err := loadProject(cmd.Context(), client, projectID)
		if err != nil {
			return err
		}
		if err := requireTickets(s, []string{parentID}); err != nil {
			return err
		}

		if err := s.CreateChild(cmd.Context(), parentID, title); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %q under %s, %d tickets total\n", title, parentID, s.Total())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().String("section", "", "Section to add the ticket to")
	createCmd.Flags().String("title", "", "Ticket title")
	_ = createCmd.MarkFlagRequired("section")
	_ = createCmd.MarkFlagRequired("title")

	rootCmd.AddCommand(createChildCmd)
	createChildCmd.Flags().String("title", "", "Child ticket title")
	_ = createChildCmd.MarkFlagRequired("title")
}
