package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/danielolaszy/boardsync/internal/directory"
	"github.com/danielolaszy/boardsync/pkg/models"
	"github.com/spf13/cobra"
)

// projectsCmd lists every project the server knows about.
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects",
	Long: `List every project found by the board server, with its ticket count per
stage and the todo.md it is backed by.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		dir := directory.New(client)
		if err := dir.ListProjects(cmd.Context()); err != nil {
			return err
		}

		projects := dir.Projects()
		if len(projects) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No projects found")
			return nil
		}

		return writeProjectTable(cmd.OutOrStdout(), projects)
	},
}

// dashboardCmd prints the cross-project summary.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show ticket totals across all projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		dir := directory.New(client)
		if err := dir.FetchDashboard(cmd.Context()); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		d := dir.Dashboard()
		fmt.Fprintf(out, "%d projects, %d tickets\n", d.TotalProjects, d.TotalTickets)
		fmt.Fprintln(out, stageSummary(d.TotalByStage))

		if len(dir.Projects()) == 0 {
			return nil
		}
		fmt.Fprintln(out)
		return writeProjectTable(out, dir.Projects())
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(dashboardCmd)
}

func writeProjectTable(w io.Writer, projects []models.Project) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTICKETS\tSTAGES\tPATH")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			p.ID, p.Name, countTickets(p.TicketCountByStage), stageSummary(p.TicketCountByStage), p.Path)
	}
	return tw.Flush()
}

// stageSummary renders counts in board order, e.g. "계획 3 · 진행중 1".
// Stages missing from counts are shown as zero.
func stageSummary(counts map[string]int) string {
	parts := make([]string, 0, len(models.Stages))
	for _, stage := range models.Stages {
		parts = append(parts, fmt.Sprintf("%s %d", stage, counts[string(stage)]))
	}
	return strings.Join(parts, " · ")
}

func countTickets(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
