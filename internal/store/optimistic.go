package store

import (
	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/pkg/models"
)

// mutation describes one optimistic change to the held collection.
type mutation struct {
	// name identifies the operation in logs
	name string

	// apply computes the projected collection from the current one. It must
	// not modify current. Returning false aborts the operation as a no-op.
	// A nil apply installs no projection.
	apply func(current []models.Ticket) ([]models.Ticket, bool)

	// recount sets total to the projected length
	recount bool
}

// snapshot is the pre-mutation state captured by begin.
type snapshot struct {
	name       string
	tickets    []models.Ticket
	total      int
	projectID  string
	generation uint64
}

// begin captures the current state and installs the projection of m in a
// single transition. It reports false, without touching any state, when no
// project is active or m aborts.
func (s *TicketStore) begin(m mutation) (snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.projectID == "" {
		return snapshot{}, false
	}

	snap := snapshot{
		name:       m.name,
		tickets:    s.tickets,
		total:      s.total,
		projectID:  s.projectID,
		generation: s.generation,
	}

	if m.apply != nil {
		next, ok := m.apply(s.tickets)
		if !ok {
			return snapshot{}, false
		}
		s.tickets = next
		if m.recount {
			s.total = len(next)
		}
	}

	logging.Debug("applied optimistic update",
		"operation", m.name,
		"project_id", snap.projectID,
		"tickets_before", len(snap.tickets),
		"tickets_after", len(s.tickets))

	return snap, true
}

// current reports whether snap was taken under the active project and no
// reset happened since. Callers hold s.mu.
func (s *TicketStore) current(snap snapshot) bool {
	if s.generation == snap.generation {
		return true
	}
	logging.Debug("discarding superseded result",
		"operation", snap.name,
		"project_id", snap.projectID)
	return false
}

// commit replaces the collection and total with the server's snapshot.
func (s *TicketStore) commit(snap snapshot, list *models.TicketList) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(snap) {
		return
	}
	s.tickets = list.Tickets
	if s.tickets == nil {
		s.tickets = []models.Ticket{}
	}
	s.total = list.Total
}

// merge replaces the entries whose ids appear in updated, leaving the rest
// of the collection untouched.
func (s *TicketStore) merge(snap snapshot, updated []models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(snap) || len(updated) == 0 {
		return
	}

	byID := make(map[string]models.Ticket, len(updated))
	for _, t := range updated {
		byID[t.ID] = t
	}
	next := make([]models.Ticket, len(s.tickets))
	for i, t := range s.tickets {
		if u, ok := byID[t.ID]; ok {
			next[i] = u
		} else {
			next[i] = t
		}
	}
	s.tickets = next
}

// rollback restores the collection and total captured in snap and records
// err.
func (s *TicketStore) rollback(snap snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordError(snap, err)
	if !s.current(snap) {
		return
	}

	logging.Warn("rolled back optimistic update",
		"operation", snap.name,
		"project_id", snap.projectID,
		"error", err)

	s.tickets = snap.tickets
	s.total = snap.total
}

// rollbackOnly restores, from snap, just the entries whose ids are in failed
// and records err. Entries that succeeded keep their optimistic value.
func (s *TicketStore) rollbackOnly(snap snapshot, failed map[string]struct{}, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordError(snap, err)
	if !s.current(snap) {
		return
	}

	logging.Warn("partially rolled back optimistic update",
		"operation", snap.name,
		"project_id", snap.projectID,
		"failed", len(failed),
		"error", err)

	previous := make(map[string]models.Ticket, len(failed))
	for _, t := range snap.tickets {
		if _, ok := failed[t.ID]; ok {
			previous[t.ID] = t
		}
	}

	next := make([]models.Ticket, len(s.tickets))
	for i, t := range s.tickets {
		if p, ok := previous[t.ID]; ok {
			next[i] = p
		} else {
			next[i] = t
		}
	}
	s.tickets = next
}

// fail records err for an operation that applied no projection.
func (s *TicketStore) fail(snap snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordError(snap, err)
}

// recordError sets the error message unless the user has since switched to
// another project. Callers hold s.mu.
func (s *TicketStore) recordError(snap snapshot, err error) {
	if s.projectID != snap.projectID {
		return
	}
	s.errMsg = err.Error()
}
