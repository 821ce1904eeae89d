// Package models defines data structures shared across the application.
package models

import (
	"fmt"
	"strings"
)

// Stage is one of the fixed, ordered workflow states a ticket occupies.
type Stage string

const (
	StagePlanned    Stage = "계획"
	StageInProgress Stage = "진행중"
	StageDone       Stage = "완료"
	StageQADone     Stage = "QA Done"
	StageDeployed   Stage = "배포"
)

// Stages lists every stage in board order.
var Stages = []Stage{
	StagePlanned,
	StageInProgress,
	StageDone,
	StageQADone,
	StageDeployed,
}

// ParseStage returns the stage whose name matches s, ignoring surrounding
// whitespace and ASCII case.
func ParseStage(s string) (Stage, error) {
	s = strings.TrimSpace(s)
	for _, stage := range Stages {
		if strings.EqualFold(string(stage), s) {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q, expected one of %v", s, Stages)
}

// TicketType distinguishes standalone tickets from epics and their children.
type TicketType string

const (
	TicketStandalone TicketType = "standalone"
	TicketEpic       TicketType = "epic"
	TicketChild      TicketType = "child"
)

// ParseTicketType validates a ticket type name.
func ParseTicketType(s string) (TicketType, error) {
	switch t := TicketType(strings.ToLower(strings.TrimSpace(s))); t {
	case TicketStandalone, TicketEpic, TicketChild:
		return t, nil
	}
	return "", fmt.Errorf("unknown ticket type %q", s)
}

// Section is a named block of the project's TODO file.
type Section struct {
	// Name is the section header text
	Name string `json:"name"`

	// LineNumber is the line the section header was found on
	LineNumber int `json:"line_number"`
}

// Ticket represents a single unit of work on the board.
type Ticket struct {
	// ID is unique within a project and stable across refetches
	ID string `json:"ticket_id"`

	// Title is the free text of the ticket
	Title string `json:"title"`

	// Stage is the only field the client patches locally
	Stage Stage `json:"stage"`

	// Section is the section the ticket was parsed from
	Section Section `json:"section"`

	// LineNumber, RawLine and IndentLevel are provenance fields owned by the
	// server; they are passed through untouched
	LineNumber  int    `json:"line_number"`
	RawLine     string `json:"raw_line"`
	IndentLevel int    `json:"indent_level"`

	// Type is standalone, epic or child
	Type TicketType `json:"ticket_type"`

	// ParentID is set only for children
	ParentID *string `json:"parent_id"`

	// ChildrenIDs is non-empty only for epics
	ChildrenIDs []string `json:"children_ids"`
}

// TicketList is the authoritative snapshot the server returns after reads and
// structural mutations.
type TicketList struct {
	ProjectID string   `json:"project_id"`
	Total     int      `json:"total"`
	Tickets   []Ticket `json:"tickets"`
}

// Project is a board managed by the server.
type Project struct {
	ID                 string         `json:"project_id"`
	Name               string         `json:"name"`
	Path               string         `json:"path"`
	TodoFilePath       string         `json:"todo_file_path"`
	Sections           []Section      `json:"sections"`
	TicketCountByStage map[string]int `json:"ticket_count_by_stage"`
	Color              string         `json:"color"`
}

// Dashboard aggregates every project.
type Dashboard struct {
	TotalProjects int            `json:"total_projects"`
	TotalTickets  int            `json:"total_tickets"`
	TotalByStage  map[string]int `json:"total_by_stage"`
	Projects      []Project      `json:"projects"`
}

// AgentStatus is the lifecycle state of an agent invocation.
type AgentStatus string

const (
	AgentPending   AgentStatus = "pending"
	AgentRunning   AgentStatus = "running"
	AgentCompleted AgentStatus = "completed"
	AgentFailed    AgentStatus = "failed"
)

// AgentInvocation describes one run of the external automation agent.
type AgentInvocation struct {
	ID          string
	Status      AgentStatus
	OutputLines []string
	Error       string
}

// NoteSector is one titled block of a project note, in markdown.
type NoteSector struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ProjectNote is the free-form note the server keeps for a project. A project
// without a saved note reports the server's default sectors with empty
// content.
type ProjectNote struct {
	ProjectID string       `json:"project_id"`
	Sectors   []NoteSector `json:"sectors"`
}

// Sector looks up a sector by name.
func (n *ProjectNote) Sector(name string) (NoteSector, bool) {
	for _, s := range n.Sectors {
		if s.Name == name {
			return s, true
		}
	}
	return NoteSector{}, false
}

// WithSector returns a copy of the sectors with name set to content. A new
// sector is appended when none has that name.
func (n *ProjectNote) WithSector(name, content string) []NoteSector {
	sectors := make([]NoteSector, 0, len(n.Sectors)+1)
	replaced := false
	for _, s := range n.Sectors {
		if s.Name == name {
			s.Content = content
			replaced = true
		}
		sectors = append(sectors, s)
	}
	if !replaced {
		sectors = append(sectors, NoteSector{Name: name, Content: content})
	}
	return sectors
}

// PushResult lists the files a note push wrote into the project directory.
type PushResult struct {
	ProjectID   string   `json:"project_id"`
	PushedFiles []string `json:"pushed_files"`
}
