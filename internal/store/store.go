// Package store holds the ticket collection of the active project and keeps
// it in step with the server through optimistic updates.
//
// Every mutating operation follows the same three phases: capture a snapshot,
// apply the projected change locally before any request leaves the process,
// then commit or revert once the request settles. Operations never let a
// transport failure escape as anything other than the store's error state and
// the returned error; guard rejections (no active project, empty id list,
// unknown ticket) are silent no-ops that return nil.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/danielolaszy/boardsync/internal/filter"
	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/pkg/models"
	"github.com/sourcegraph/conc/pool"
)

// TicketAPI is the subset of the REST API the store drives.
type TicketAPI interface {
	FetchTickets(ctx context.Context, projectID string) (*models.TicketList, error)
	MoveTicketStage(ctx context.Context, projectID, ticketID string, stage models.Stage) (*models.Ticket, error)
	MoveEpicStage(ctx context.Context, projectID, ticketID string, stage models.Stage, includeChildren bool) ([]models.Ticket, error)
	DeleteTicket(ctx context.Context, projectID, ticketID string, cascade bool) (*models.TicketList, error)
	BatchDeleteTickets(ctx context.Context, projectID string, ticketIDs []string) (*models.TicketList, error)
	CreateTicket(ctx context.Context, projectID, sectionName, title string) (*models.TicketList, error)
	CreateChildTicket(ctx context.Context, projectID, parentTicketID, title string) (*models.TicketList, error)
}

// BatchMoveError reports the tickets of a batch move whose request failed.
// Those tickets were reverted; the rest kept their new stage.
type BatchMoveError struct {
	// Failed lists the reverted ticket ids in request order
	Failed []string
	// Requested is the number of distinct tickets in the batch
	Requested int
	// Errs holds the per-ticket failure, keyed by ticket id
	Errs map[string]error
}

func (e *BatchMoveError) Error() string {
	return fmt.Sprintf("%d of %d ticket moves failed, rolled back", len(e.Failed), e.Requested)
}

// TicketStore owns the ticket collection of one project at a time. It is safe
// for concurrent use; every state transition happens under one lock and no
// lock is held across a network call.
//
// Slices returned by accessors are shared with the store and must not be
// modified. The store never modifies a slice after publishing it.
type TicketStore struct {
	api TicketAPI

	mu        sync.RWMutex
	tickets   []models.Ticket
	total     int
	projectID string
	loading   bool
	errMsg    string
	filter    filter.State

	// generation increases whenever the active project changes or the store
	// is reset; results of requests issued under an older generation are
	// discarded. Within one generation the last result to arrive wins.
	generation uint64

	// fetching counts the fetches outstanding in the current generation
	fetching int
}

// New creates an empty store with no active project.
func New(api TicketAPI) *TicketStore {
	return &TicketStore{
		api:     api,
		tickets: []models.Ticket{},
	}
}

// Tickets returns the held collection.
func (s *TicketStore) Tickets() []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tickets
}

// Total returns the ticket count last reported by the server, adjusted by
// pending optimistic deletes.
func (s *TicketStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// ProjectID returns the active project, or "" when none is active.
func (s *TicketStore) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// IsLoading reports whether a fetch is outstanding.
func (s *TicketStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last error message, or "" when none is set.
func (s *TicketStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// ClearError dismisses the current error message.
func (s *TicketStore) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

// Ticket looks up a held ticket by id.
func (s *TicketStore) Ticket(id string) (models.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if t.ID == id {
			return t, true
		}
	}
	return models.Ticket{}, false
}

// Filter returns the current filter state.
func (s *TicketStore) Filter() filter.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Visible returns the held collection narrowed by the current filter. With no
// filter set it returns the held slice itself.
func (s *TicketStore) Visible() []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter.Apply(s.tickets, s.filter)
}

// ByStage groups the visible tickets by stage in board order.
func (s *TicketStore) ByStage() []filter.StageGroup {
	return filter.GroupByStage(s.Visible())
}

// SetSearchQuery replaces the title search.
func (s *TicketStore) SetSearchQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = s.filter.WithSearch(query)
}

// ToggleCategory adds or removes a category label from the filter.
func (s *TicketStore) ToggleCategory(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = s.filter.ToggleCategory(label)
}

// ToggleType adds or removes a ticket type from the filter.
func (s *TicketStore) ToggleType(t models.TicketType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = s.filter.ToggleType(t)
}

// ClearFilters resets every filter dimension.
func (s *TicketStore) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter.State{}
}

// Reset drops the active project and everything held for it. Requests still
// in flight are discarded when they settle.
func (s *TicketStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.tickets = []models.Ticket{}
	s.total = 0
	s.projectID = ""
	s.fetching = 0
	s.loading = false
	s.errMsg = ""
	s.filter = filter.State{}
}

// Fetch makes projectID the active project and loads its tickets. Filters are
// reset before the request is sent. The held tickets are replaced only when
// the request succeeds; on failure they stay as they were, even when they
// belong to the previously active project.
func (s *TicketStore) Fetch(ctx context.Context, projectID string) error {
	s.mu.Lock()
	if s.projectID != projectID {
		s.generation++
		s.fetching = 0
	}
	gen := s.generation
	s.fetching++
	s.projectID = projectID
	s.loading = true
	s.errMsg = ""
	s.filter = filter.State{}
	s.mu.Unlock()

	logging.Debug("fetching tickets", "project_id", projectID)

	list, err := s.api.FetchTickets(ctx, projectID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		logging.Debug("discarding superseded fetch", "project_id", projectID)
		return err
	}

	s.fetching--
	s.loading = s.fetching > 0
	if err != nil {
		s.errMsg = err.Error()
		logging.Error("failed to fetch tickets", "project_id", projectID, "error", err)
		return err
	}

	s.tickets = list.Tickets
	if s.tickets == nil {
		s.tickets = []models.Ticket{}
	}
	s.total = list.Total

	logging.Debug("fetched tickets", "project_id", projectID, "total", list.Total)
	return nil
}

// MoveSingle moves one ticket to stage. The new stage is shown immediately
// and kept on success without re-syncing; on failure the whole collection
// reverts.
func (s *TicketStore) MoveSingle(ctx context.Context, ticketID string, stage models.Stage) error {
	snap, ok := s.begin(mutation{
		name: "move",
		apply: func(current []models.Ticket) ([]models.Ticket, bool) {
			return withStage(current, map[string]struct{}{ticketID: {}}, stage), true
		},
	})
	if !ok {
		return nil
	}

	if _, err := s.api.MoveTicketStage(ctx, snap.projectID, ticketID, stage); err != nil {
		s.rollback(snap, err)
		return err
	}
	return nil
}

type moveOutcome struct {
	ticketID string
	err      error
}

// MoveBatch moves several tickets to stage with one concurrent request per
// ticket. Every request is awaited; tickets whose request failed revert
// individually while the others keep the new stage. A partial failure is
// reported as *BatchMoveError.
func (s *TicketStore) MoveBatch(ctx context.Context, ticketIDs []string, stage models.Stage) error {
	ids := distinct(ticketIDs)
	if len(ids) == 0 {
		return nil
	}
	targets := toSet(ids)

	snap, ok := s.begin(mutation{
		name: "move batch",
		apply: func(current []models.Ticket) ([]models.Ticket, bool) {
			return withStage(current, targets, stage), true
		},
	})
	if !ok {
		return nil
	}

	p := pool.NewWithResults[moveOutcome]()
	for _, id := range ids {
		id := id
		p.Go(func() moveOutcome {
			_, err := s.api.MoveTicketStage(ctx, snap.projectID, id, stage)
			return moveOutcome{ticketID: id, err: err}
		})
	}
	outcomes := p.Wait()

	errs := make(map[string]error)
	for _, o := range outcomes {
		if o.err != nil {
			errs[o.ticketID] = o.err
		}
	}
	if len(errs) == 0 {
		return nil
	}

	batchErr := &BatchMoveError{Requested: len(ids), Errs: errs}
	for _, id := range ids {
		if _, failed := errs[id]; failed {
			batchErr.Failed = append(batchErr.Failed, id)
		}
	}
	s.rollbackOnly(snap, toSet(batchErr.Failed), batchErr)
	return batchErr
}

// MoveEpic moves an epic, and its children when includeChildren is set, with
// a single request. Tickets returned by the server replace their entries; on
// failure the whole collection reverts.
func (s *TicketStore) MoveEpic(ctx context.Context, epicID string, stage models.Stage, includeChildren bool) error {
	snap, ok := s.begin(mutation{
		name: "move epic",
		apply: func(current []models.Ticket) ([]models.Ticket, bool) {
			epic, found := find(current, epicID)
			if !found {
				return nil, false
			}
			targets := map[string]struct{}{epicID: {}}
			if includeChildren {
				for _, id := range epic.ChildrenIDs {
					targets[id] = struct{}{}
				}
			}
			return withStage(current, targets, stage), true
		},
	})
	if !ok {
		return nil
	}

	updated, err := s.api.MoveEpicStage(ctx, snap.projectID, epicID, stage, includeChildren)
	if err != nil {
		s.rollback(snap, err)
		return err
	}
	s.merge(snap, updated)
	return nil
}

// DeleteSingle removes a held ticket, together with its children when cascade
// is set. The server's remaining collection replaces the local one on success.
func (s *TicketStore) DeleteSingle(ctx context.Context, ticketID string, cascade bool) error {
	snap, ok := s.begin(mutation{
		name:    "delete",
		recount: true,
		apply: func(current []models.Ticket) ([]models.Ticket, bool) {
			target, found := find(current, ticketID)
			if !found {
				return nil, false
			}
			remove := map[string]struct{}{ticketID: {}}
			if cascade {
				for _, id := range target.ChildrenIDs {
					remove[id] = struct{}{}
				}
			}
			return without(current, remove), true
		},
	})
	if !ok {
		return nil
	}

	list, err := s.api.DeleteTicket(ctx, snap.projectID, ticketID, cascade)
	if err != nil {
		s.rollback(snap, err)
		return err
	}
	s.commit(snap, list)
	return nil
}

// DeleteBatch removes several tickets with a single request. The server's
// remaining collection replaces the local one on success.
func (s *TicketStore) DeleteBatch(ctx context.Context, ticketIDs []string) error {
	ids := distinct(ticketIDs)
	if len(ids) == 0 {
		return nil
	}
	remove := toSet(ids)

	snap, ok := s.begin(mutation{
		name:    "delete batch",
		recount: true,
		apply: func(current []models.Ticket) ([]models.Ticket, bool) {
			return without(current, remove), true
		},
	})
	if !ok {
		return nil
	}

	list, err := s.api.BatchDeleteTickets(ctx, snap.projectID, ids)
	if err != nil {
		s.rollback(snap, err)
		return err
	}
	s.commit(snap, list)
	return nil
}

// Create adds a ticket to a section. Nothing is shown until the server
// answers with the new collection.
func (s *TicketStore) Create(ctx context.Context, sectionName, title string) error {
	snap, ok := s.begin(mutation{name: "create"})
	if !ok {
		return nil
	}

	list, err := s.api.CreateTicket(ctx, snap.projectID, sectionName, title)
	if err != nil {
		s.fail(snap, err)
		return err
	}
	s.commit(snap, list)
	return nil
}

// CreateChild adds a child ticket under parentTicketID. Nothing is shown
// until the server answers with the new collection.
func (s *TicketStore) CreateChild(ctx context.Context, parentTicketID, title string) error {
	snap, ok := s.begin(mutation{name: "create child"})
	if !ok {
		return nil
	}

	list, err := s.api.CreateChildTicket(ctx, snap.projectID, parentTicketID, title)
	if err != nil {
		s.fail(snap, err)
		return err
	}
	s.commit(snap, list)
	return nil
}

// withStage returns a copy of tickets with stage written onto every ticket
// whose id is in ids.
func withStage(tickets []models.Ticket, ids map[string]struct{}, stage models.Stage) []models.Ticket {
	next := make([]models.Ticket, len(tickets))
	for i, t := range tickets {
		if _, ok := ids[t.ID]; ok {
			t.Stage = stage
		}
		next[i] = t
	}
	return next
}

// without returns the tickets whose id is not in ids.
func without(tickets []models.Ticket, ids map[string]struct{}) []models.Ticket {
	next := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if _, ok := ids[t.ID]; !ok {
			next = append(next, t)
		}
	}
	return next
}

func find(tickets []models.Ticket, id string) (models.Ticket, bool) {
	for _, t := range tickets {
		if t.ID == id {
			return t, true
		}
	}
	return models.Ticket{}, false
}

// distinct drops repeated ids, keeping first occurrences in order.
func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
