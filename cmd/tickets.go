package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/danielolaszy/boardsync/internal/category"
	"github.com/danielolaszy/boardsync/internal/filter"
	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/internal/store"
	"github.com/danielolaszy/boardsync/pkg/models"
	"github.com/spf13/cobra"
)

// ticketsCmd shows a project's board, optionally filtered.
var ticketsCmd = &cobra.Command{
	Use:   "tickets <project>",
	Short: "Show a project's tickets grouped by stage",
	Long: `Show a project's tickets grouped by stage in board order.

Filters combine: a ticket is shown only if its title contains the search
text, its section falls in one of the given categories and its type is one
of the given types. Repeat --category and --type to allow several values.

Categories: FE, BE, DATA, INFRA, QA, PLAN, DOMAIN, ETC
Types: standalone, epic, child

Example:
  boardsync tickets my-project --search login --category FE --type epic`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, err := cmd.Flags().GetString("search")
		if err != nil {
			return err
		}

		categories, err := cmd.Flags().GetStringArray("category")
		if err != nil {
			return err
		}

		types, err := cmd.Flags().GetStringArray("type")
		if err != nil {
			return err
		}

		// Validate before touching the network.
		labels := make([]string, 0, len(categories))
		for _, c := range categories {
			label := strings.ToUpper(strings.TrimSpace(c))
			if !category.IsKnown(label) {
				return fmt.Errorf("unknown category %q", c)
			}
			labels = append(labels, label)
		}
		ticketTypes := make([]models.TicketType, 0, len(types))
		for _, t := range types {
			tt, err := models.ParseTicketType(t)
			if err != nil {
				return err
			}
			ticketTypes = append(ticketTypes, tt)
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		s, err := loadProject(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}

		// Filters reset on every fetch, so they are applied afterwards.
		s.SetSearchQuery(search)
		for _, label := range labels {
			s.ToggleCategory(label)
		}
		for _, tt := range ticketTypes {
			s.ToggleType(tt)
		}

		logging.Debug("applied filters",
			"search", search,
			"categories", labels,
			"types", ticketTypes)

		renderBoard(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ticketsCmd)
	ticketsCmd.Flags().StringP("search", "s", "", "Only show tickets whose title contains this text")
	ticketsCmd.Flags().StringArrayP("category", "c", []string{}, "Only show tickets in this category (can be specified multiple times)")
	ticketsCmd.Flags().StringArrayP("type", "t", []string{}, "Only show tickets of this type (can be specified multiple times)")
}

// renderBoard writes the visible tickets of s grouped by stage.
func renderBoard(w io.Writer, s *store.TicketStore) {
	visible := s.Visible()
	fmt.Fprintf(w, "%s: %d tickets", s.ProjectID(), s.Total())
	if !s.Filter().IsEmpty() {
		fmt.Fprintf(w, ", %d shown", len(visible))
	}
	fmt.Fprintln(w)

	r := lipgloss.NewRenderer(w)
	for _, group := range filter.GroupByStage(visible) {
		fmt.Fprintf(w, "\n%s (%d)\n", r.NewStyle().Bold(true).Render(string(group.Stage)), len(group.Tickets))
		for _, t := range group.Tickets {
			fmt.Fprintln(w, "  "+ticketLine(r, t))
		}
	}
}

// ticketLine renders one ticket as "[FE] id  title (epic, 2 children)".
func ticketLine(r *lipgloss.Renderer, t models.Ticket) string {
	c := category.Classify(t.Section.Name)
	label := r.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("[" + c.Label + "]")

	line := fmt.Sprintf("%s %s  %s", label, t.ID, t.Title)
	switch t.Type {
	case models.TicketEpic:
		line += fmt.Sprintf(" (epic, %d children)", len(t.ChildrenIDs))
	case models.TicketChild:
		if t.ParentID != nil {
			line += " (child of " + *t.ParentID + ")"
		}
	}
	return line
}
