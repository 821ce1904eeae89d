// Package agent renders work orders for the external automation agent.
package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/boardsync/pkg/models"
)

// Mode controls how the agent is told to proceed.
type Mode string

const (
	// ModeInteractive lets the agent ask for confirmation.
	ModeInteractive Mode = "interactive"
	// ModeOneShot tells the agent the work is pre-approved.
	ModeOneShot Mode = "one_shot"
)

// ErrNoTickets is returned when a prompt is requested for no tickets.
var ErrNoTickets = errors.New("no tickets selected")

// ParseMode validates a mode name. An empty name selects ModeInteractive.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeInteractive:
		return ModeInteractive, nil
	case ModeOneShot:
		return ModeOneShot, nil
	default:
		return "", fmt.Errorf("unknown agent mode %q", s)
	}
}

// Request holds what a prompt is built from.
type Request struct {
	// Tickets are the tickets the agent should work on
	Tickets []models.Ticket

	// Board is the full collection, used to describe epic children. May be
	// nil, in which case children are listed by id.
	Board []models.Ticket

	// Instruction is free text appended as the task description
	Instruction string

	Mode Mode
}

// BuildPrompt renders the work order for req.
func BuildPrompt(req Request) (string, error) {
	if len(req.Tickets) == 0 {
		return "", ErrNoTickets
	}

	var b strings.Builder
	b.WriteString("[Kanban work order]\n")

	if len(req.Tickets) > 1 {
		fmt.Fprintf(&b, "## Target tickets (%d)\n", len(req.Tickets))
		for i, t := range req.Tickets {
			fmt.Fprintf(&b, "%d. Title: %s\n   - Section: %s\n   - Current stage: %s\n",
				i+1, t.Title, t.Section.Name, t.Stage)
		}
	} else {
		writeSingle(&b, req.Tickets[0], req.Board)
	}

	if instruction := strings.TrimSpace(req.Instruction); instruction != "" {
		fmt.Fprintf(&b, "\n## Instructions\n%s\n", instruction)
	}

	b.WriteString("\n## Notes\n")
	b.WriteString("- When the work is done, update the markers of the matching items in todo.md.\n")
	b.WriteString("- After everything is finished, end with this final status report:\n")
	b.WriteString("  ---\n")
	b.WriteString("  [Work complete] All work for the ticket is complete. The CLI can be closed.\n")
	b.WriteString("  ---\n")

	if req.Mode == ModeOneShot {
		b.WriteString("\n## Execution mode: one-shot (pre-approved)\n")
		b.WriteString("- This task was approved directly from the kanban board.\n")
		b.WriteString("- Write and finish the code right away without further questions or confirmation.\n")
		b.WriteString("- Do not enter plan mode or wait for approval; act immediately.\n")
	}

	return b.String(), nil
}

func writeSingle(b *strings.Builder, t models.Ticket, board []models.Ticket) {
	b.WriteString("## Target ticket\n")
	fmt.Fprintf(b, "- Title: %s\n", t.Title)
	fmt.Fprintf(b, "- Section: %s\n", t.Section.Name)
	fmt.Fprintf(b, "- Current stage: %s\n", t.Stage)

	if t.Type != models.TicketEpic || len(t.ChildrenIDs) == 0 {
		return
	}

	fmt.Fprintf(b, "- Type: epic (%d child tickets)\n", len(t.ChildrenIDs))
	b.WriteString("\n## Child tickets\n")

	byID := make(map[string]models.Ticket, len(board))
	for _, c := range board {
		byID[c.ID] = c
	}
	for i, id := range t.ChildrenIDs {
		if c, ok := byID[id]; ok {
			fmt.Fprintf(b, "%d. %s (%s)\n", i+1, c.Title, c.Stage)
		} else {
			fmt.Fprintf(b, "%d. %s\n", i+1, id)
		}
	}
}
