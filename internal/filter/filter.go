// Package filter applies search, category and type predicates to a ticket
// collection without any I/O.
package filter

import (
	"strings"

	"github.com/danielolaszy/boardsync/internal/category"
	"github.com/danielolaszy/boardsync/pkg/models"
)

// State holds the active filter dimensions. The zero value filters nothing.
//
// Sets are treated as immutable: the toggle helpers return a new State with
// fresh sets so a State handed out earlier never changes underneath its
// holder.
type State struct {
	SearchQuery string
	Categories  map[string]struct{}
	Types       map[models.TicketType]struct{}
}

// IsEmpty reports whether no dimension is set.
func (s State) IsEmpty() bool {
	return s.SearchQuery == "" && len(s.Categories) == 0 && len(s.Types) == 0
}

// WithSearch returns a copy of s with the search query replaced.
func (s State) WithSearch(query string) State {
	s.SearchQuery = query
	return s
}

// ToggleCategory returns a copy of s with label added to or removed from the
// category set.
func (s State) ToggleCategory(label string) State {
	next := make(map[string]struct{}, len(s.Categories)+1)
	for k := range s.Categories {
		next[k] = struct{}{}
	}
	if _, ok := next[label]; ok {
		delete(next, label)
	} else {
		next[label] = struct{}{}
	}
	s.Categories = next
	return s
}

// ToggleType returns a copy of s with t added to or removed from the type
// set.
func (s State) ToggleType(t models.TicketType) State {
	next := make(map[models.TicketType]struct{}, len(s.Types)+1)
	for k := range s.Types {
		next[k] = struct{}{}
	}
	if _, ok := next[t]; ok {
		delete(next, t)
	} else {
		next[t] = struct{}{}
	}
	s.Types = next
	return s
}

// Apply returns the tickets that satisfy every set dimension of state, in
// their original order. When state is empty the input slice itself is
// returned so callers can compare by identity to skip recomputation.
func Apply(tickets []models.Ticket, state State) []models.Ticket {
	if state.IsEmpty() {
		return tickets
	}

	query := category.Lower(state.SearchQuery)
	result := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if query != "" && !strings.Contains(category.Lower(t.Title), query) {
			continue
		}
		if len(state.Categories) > 0 {
			if _, ok := state.Categories[category.Classify(t.Section.Name).Label]; !ok {
				continue
			}
		}
		if len(state.Types) > 0 {
			if _, ok := state.Types[t.Type]; !ok {
				continue
			}
		}
		result = append(result, t)
	}
	return result
}

// StageGroup is the slice of tickets sitting in one stage.
type StageGroup struct {
	Stage   models.Stage
	Tickets []models.Ticket
}

// GroupByStage buckets tickets by stage in board order. Every stage gets a
// group, empty or not. Tickets with a stage outside the catalogue are left
// out.
func GroupByStage(tickets []models.Ticket) []StageGroup {
	groups := make([]StageGroup, len(models.Stages))
	index := make(map[models.Stage]int, len(models.Stages))
	for i, stage := range models.Stages {
		groups[i] = StageGroup{Stage: stage, Tickets: []models.Ticket{}}
		index[stage] = i
	}
	for _, t := range tickets {
		if i, ok := index[t.Stage]; ok {
			groups[i].Tickets = append(groups[i].Tickets, t)
		}
	}
	return groups
}
