package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danielolaszy/boardsync/internal/filter"
	"github.com/danielolaszy/boardsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTicketAPI implements TicketAPI for testing. Unset funcs fail.
type MockTicketAPI struct {
	mu    sync.Mutex
	calls []string

	FetchTicketsFunc       func(projectID string) (*models.TicketList, error)
	MoveTicketStageFunc    func(projectID, ticketID string, stage models.Stage) (*models.Ticket, error)
	MoveEpicStageFunc      func(projectID, ticketID string, stage models.Stage, includeChildren bool) ([]models.Ticket, error)
	DeleteTicketFunc       func(projectID, ticketID string, cascade bool) (*models.TicketList, error)
	BatchDeleteTicketsFunc func(projectID string, ticketIDs []string) (*models.TicketList, error)
	CreateTicketFunc       func(projectID, sectionName, title string) (*models.TicketList, error)
	CreateChildTicketFunc  func(projectID, parentTicketID, title string) (*models.TicketList, error)
}

func (m *MockTicketAPI) record(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *MockTicketAPI) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockTicketAPI) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockTicketAPI) FetchTickets(_ context.Context, projectID string) (*models.TicketList, error) {
	m.record("fetch %s", projectID)
	if m.FetchTicketsFunc != nil {
		return m.FetchTicketsFunc(projectID)
	}
	return nil, errors.New("FetchTickets not implemented")
}

func (m *MockTicketAPI) MoveTicketStage(_ context.Context, projectID, ticketID string, stage models.Stage) (*models.Ticket, error) {
	m.record("move %s %s %s", projectID, ticketID, stage)
	if m.MoveTicketStageFunc != nil {
		return m.MoveTicketStageFunc(projectID, ticketID, stage)
	}
	return nil, errors.New("MoveTicketStage not implemented")
}

func (m *MockTicketAPI) MoveEpicStage(_ context.Context, projectID, ticketID string, stage models.Stage, includeChildren bool) ([]models.Ticket, error) {
	m.record("move-epic %s %s %s %t", projectID, ticketID, stage, includeChildren)
	if m.MoveEpicStageFunc != nil {
		return m.MoveEpicStageFunc(projectID, ticketID, stage, includeChildren)
	}
	return nil, errors.New("MoveEpicStage not implemented")
}

func (m *MockTicketAPI) DeleteTicket(_ context.Context, projectID, ticketID string, cascade bool) (*models.TicketList, error) {
	m.record("delete %s %s %t", projectID, ticketID, cascade)
	if m.DeleteTicketFunc != nil {
		return m.DeleteTicketFunc(projectID, ticketID, cascade)
	}
	return nil, errors.New("DeleteTicket not implemented")
}

func (m *MockTicketAPI) BatchDeleteTickets(_ context.Context, projectID string, ticketIDs []string) (*models.TicketList, error) {
	m.record("batch-delete %s %v", projectID, ticketIDs)
	if m.BatchDeleteTicketsFunc != nil {
		return m.BatchDeleteTicketsFunc(projectID, ticketIDs)
	}
	return nil, errors.New("BatchDeleteTickets not implemented")
}

func (m *MockTicketAPI) CreateTicket(_ context.Context, projectID, sectionName, title string) (*models.TicketList, error) {
	m.record("create %s %s %s", projectID, sectionName, title)
	if m.CreateTicketFunc != nil {
		return m.CreateTicketFunc(projectID, sectionName, title)
	}
	return nil, errors.New("CreateTicket not implemented")
}

func (m *MockTicketAPI) CreateChildTicket(_ context.Context, projectID, parentTicketID, title string) (*models.TicketList, error) {
	m.record("create-child %s %s %s", projectID, parentTicketID, title)
	if m.CreateChildTicketFunc != nil {
		return m.CreateChildTicketFunc(projectID, parentTicketID, title)
	}
	return nil, errors.New("CreateChildTicket not implemented")
}

func tk(id string, stage models.Stage) models.Ticket {
	return models.Ticket{
		ID:          id,
		Title:       "ticket " + id,
		Stage:       stage,
		Section:     models.Section{Name: "백엔드", LineNumber: 1},
		Type:        models.TicketStandalone,
		ChildrenIDs: []string{},
	}
}

func epic(id string, stage models.Stage, children ...string) models.Ticket {
	t := tk(id, stage)
	t.Type = models.TicketEpic
	t.ChildrenIDs = children
	return t
}

func child(id, parent string, stage models.Stage) models.Ticket {
	t := tk(id, stage)
	t.Type = models.TicketChild
	t.ParentID = &parent
	return t
}

func listOf(tickets ...models.Ticket) *models.TicketList {
	return &models.TicketList{ProjectID: "pj.1", Total: len(tickets), Tickets: tickets}
}

func stages(tickets []models.Ticket) map[string]models.Stage {
	out := make(map[string]models.Stage, len(tickets))
	for _, t := range tickets {
		out[t.ID] = t.Stage
	}
	return out
}

func idsOf(tickets []models.Ticket) []string {
	out := make([]string, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

// loadedStore returns a store whose active project pj.1 holds tickets.
func loadedStore(t *testing.T, tickets ...models.Ticket) (*TicketStore, *MockTicketAPI) {
	t.Helper()

	api := &MockTicketAPI{
		FetchTicketsFunc: func(string) (*models.TicketList, error) {
			return listOf(tickets...), nil
		},
	}
	s := New(api)
	require.NoError(t, s.Fetch(context.Background(), "pj.1"))
	api.ResetCalls()
	return s, api
}

func TestNewStoreIsEmpty(t *testing.T) {
	s := New(&MockTicketAPI{})

	assert.Empty(t, s.Tickets())
	assert.NotNil(t, s.Tickets())
	assert.Equal(t, "", s.ProjectID())
	assert.False(t, s.IsLoading())
	assert.Equal(t, "", s.Err())
	assert.True(t, s.Filter().IsEmpty())
}

func TestFetch(t *testing.T) {
	t.Run("Replaces collection on success", func(t *testing.T) {
		s, _ := loadedStore(t, tk("a", models.StagePlanned), tk("b", models.StageDone))

		assert.Equal(t, "pj.1", s.ProjectID())
		assert.Equal(t, []string{"a", "b"}, idsOf(s.Tickets()))
		assert.Equal(t, 2, s.Total())
		assert.False(t, s.IsLoading())
		assert.Equal(t, "", s.Err())
	})

	t.Run("Refetch failure keeps stale tickets", func(t *testing.T) {
		s, api := loadedStore(t, tk("a", models.StagePlanned))
		api.FetchTicketsFunc = func(string) (*models.TicketList, error) {
			return nil, errors.New("server unreachable")
		}

		err := s.Fetch(context.Background(), "pj.1")

		assert.EqualError(t, err, "server unreachable")
		assert.Equal(t, "server unreachable", s.Err())
		assert.False(t, s.IsLoading())
		assert.Equal(t, []string{"a"}, idsOf(s.Tickets()))
	})

	t.Run("Failed project switch keeps stale tickets", func(t *testing.T) {
		s, api := loadedStore(t, tk("a", models.StagePlanned))
		api.FetchTicketsFunc = func(projectID string) (*models.TicketList, error) {
			return nil, errors.New("boom")
		}

		err := s.Fetch(context.Background(), "pj.2")

		assert.EqualError(t, err, "boom")
		assert.Equal(t, "pj.2", s.ProjectID())
		assert.Equal(t, []string{"a"}, idsOf(s.Tickets()))
		assert.Equal(t, 1, s.Total())
		assert.Equal(t, "boom", s.Err())
		assert.False(t, s.IsLoading())
	})

	t.Run("Project switch shows previous tickets until the response", func(t *testing.T) {
		s, api := loadedStore(t, tk("a", models.StagePlanned))

		requested := make(chan struct{})
		release := make(chan struct{})
		api.FetchTicketsFunc = func(string) (*models.TicketList, error) {
			close(requested)
			<-release
			return listOf(tk("x", models.StagePlanned)), nil
		}

		done := make(chan error, 1)
		go func() { done <- s.Fetch(context.Background(), "pj.2") }()

		<-requested
		assert.Equal(t, []string{"a"}, idsOf(s.Tickets()))

		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, []string{"x"}, idsOf(s.Tickets()))
	})

	t.Run("Clears previous error", func(t *testing.T) {
		s, api := loadedStore(t, tk("a", models.StagePlanned))
		api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
			return nil, errors.New("move failed")
		}
		_ = s.MoveSingle(context.Background(), "a", models.StageDone)
		require.Equal(t, "move failed", s.Err())

		require.NoError(t, s.Fetch(context.Background(), "pj.1"))
		assert.Equal(t, "", s.Err())
	})
}

func TestFetchResetsFiltersBeforeRequestResolves(t *testing.T) {
	s, api := loadedStore(t, tk("a", models.StagePlanned))
	s.SetSearchQuery("abc")
	s.ToggleCategory("FE")
	s.ToggleType(models.TicketEpic)

	requested := make(chan struct{})
	release := make(chan struct{})
	api.FetchTicketsFunc = func(string) (*models.TicketList, error) {
		close(requested)
		<-release
		return listOf(tk("x", models.StagePlanned)), nil
	}

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background(), "pj.2") }()

	<-requested
	f := s.Filter()
	assert.Equal(t, "", f.SearchQuery)
	assert.Len(t, f.Categories, 0)
	assert.Len(t, f.Types, 0)
	assert.True(t, s.IsLoading())
	assert.Equal(t, "pj.2", s.ProjectID())

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.IsLoading())
	assert.Equal(t, []string{"x"}, idsOf(s.Tickets()))
}

func TestMoveSingle(t *testing.T) {
	t.Run("Keeps optimistic stage on success without refetch", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned), tk("B", models.StagePlanned))
		api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
			return &models.Ticket{}, nil
		}

		require.NoError(t, s.MoveSingle(context.Background(), "A", models.StageInProgress))

		assert.Equal(t, map[string]models.Stage{"A": models.StageInProgress, "B": models.StagePlanned}, stages(s.Tickets()))
		assert.Equal(t, []string{"move pj.1 A 진행중"}, api.Calls())
	})

	t.Run("Applies stage before the request is sent", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))
		var seen models.Stage
		api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
			got, _ := s.Ticket("A")
			seen = got.Stage
			return &models.Ticket{}, nil
		}

		require.NoError(t, s.MoveSingle(context.Background(), "A", models.StageDone))
		assert.Equal(t, models.StageDone, seen)
	})

	t.Run("Rolls back on failure", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned), tk("B", models.StagePlanned))
		api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
			return nil, errors.New("stage change rejected")
		}

		err := s.MoveSingle(context.Background(), "A", models.StageInProgress)

		assert.EqualError(t, err, "stage change rejected")
		assert.Equal(t, models.StagePlanned, stages(s.Tickets())["A"])
		assert.Len(t, s.Tickets(), 2)
		assert.Equal(t, "stage change rejected", s.Err())
		assert.Len(t, api.Calls(), 1)
	})

	t.Run("No active project is a no-op", func(t *testing.T) {
		api := &MockTicketAPI{}
		s := New(api)

		assert.NoError(t, s.MoveSingle(context.Background(), "A", models.StageDone))
		assert.Empty(t, api.Calls())
		assert.Empty(t, s.Tickets())
		assert.Equal(t, "", s.Err())
	})
}

func TestMoveBatch(t *testing.T) {
	t.Run("Partial failure reverts only failed tickets", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned), tk("B", models.StagePlanned), tk("C", models.StagePlanned))
		api.MoveTicketStageFunc = func(_ string, ticketID string, _ models.Stage) (*models.Ticket, error) {
			if ticketID == "B" {
				return nil, errors.New("conflict")
			}
			return &models.Ticket{}, nil
		}

		err := s.MoveBatch(context.Background(), []string{"A", "B", "C"}, models.StageInProgress)

		var batchErr *BatchMoveError
		require.ErrorAs(t, err, &batchErr)
		assert.Equal(t, []string{"B"}, batchErr.Failed)
		assert.Equal(t, 3, batchErr.Requested)
		assert.EqualError(t, batchErr.Errs["B"], "conflict")
		assert.Equal(t, map[string]models.Stage{
			"A": models.StageInProgress,
			"B": models.StagePlanned,
			"C": models.StageInProgress,
		}, stages(s.Tickets()))
		assert.Equal(t, "1 of 3 ticket moves failed, rolled back", s.Err())
		assert.Len(t, api.Calls(), 3)
	})

	t.Run("Requests are issued concurrently", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned), tk("B", models.StagePlanned), tk("C", models.StagePlanned))

		var started sync.WaitGroup
		started.Add(3)
		allStarted := make(chan struct{})
		go func() {
			started.Wait()
			close(allStarted)
		}()
		api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
			started.Done()
			select {
			case <-allStarted:
				return &models.Ticket{}, nil
			case <-time.After(2 * time.Second):
				return nil, errors.New("requests were serialized")
			}
		}

		require.NoError(t, s.MoveBatch(context.Background(), []string{"A", "B", "C"}, models.StageDone))
		assert.Equal(t, map[string]models.Stage{
			"A": models.StageDone,
			"B": models.StageDone,
			"C": models.StageDone,
		}, stages(s.Tickets()))
	})

	t.Run("Success does not clear a prior error", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned), tk("B", models.StagePlanned))
		api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
			return nil, errors.New("first failure")
		}
		_ = s.MoveSingle(context.Background(), "A", models.StageDone)

		api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
			return &models.Ticket{}, nil
		}
		require.NoError(t, s.MoveBatch(context.Background(), []string{"A", "B"}, models.StageDone))

		assert.Equal(t, "first failure", s.Err())
	})

	t.Run("Duplicate ids are requested once", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))
		api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
			return &models.Ticket{}, nil
		}

		require.NoError(t, s.MoveBatch(context.Background(), []string{"A", "A"}, models.StageDone))
		assert.Len(t, api.Calls(), 1)
	})

	t.Run("Empty id list is a no-op", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))
		before := s.Tickets()

		assert.NoError(t, s.MoveBatch(context.Background(), nil, models.StageDone))
		assert.NoError(t, s.MoveBatch(context.Background(), []string{}, models.StageDone))

		assert.Empty(t, api.Calls())
		assert.Same(t, &before[0], &s.Tickets()[0])
	})

	t.Run("No active project is a no-op", func(t *testing.T) {
		api := &MockTicketAPI{}
		s := New(api)

		assert.NoError(t, s.MoveBatch(context.Background(), []string{"A"}, models.StageDone))
		assert.Empty(t, api.Calls())
	})
}

func TestMoveEpic(t *testing.T) {
	t.Run("Moves epic and children and merges server tickets", func(t *testing.T) {
		s, api := loadedStore(t,
			epic("E", models.StagePlanned, "X", "Y"),
			child("X", "E", models.StagePlanned),
			child("Y", "E", models.StagePlanned),
			tk("Z", models.StagePlanned),
		)
		var during map[string]models.Stage
		api.MoveEpicStageFunc = func(_ string, _ string, stage models.Stage, _ bool) ([]models.Ticket, error) {
			during = stages(s.Tickets())
			e := epic("E", stage, "X", "Y")
			e.Title = "renamed by server"
			return []models.Ticket{e, child("X", "E", stage), child("Y", "E", stage)}, nil
		}

		require.NoError(t, s.MoveEpic(context.Background(), "E", models.StageDone, true))

		expected := map[string]models.Stage{
			"E": models.StageDone,
			"X": models.StageDone,
			"Y": models.StageDone,
			"Z": models.StagePlanned,
		}
		assert.Equal(t, expected, during)
		assert.Equal(t, expected, stages(s.Tickets()))
		got, _ := s.Ticket("E")
		assert.Equal(t, "renamed by server", got.Title)
		assert.Equal(t, []string{"move-epic pj.1 E 완료 true"}, api.Calls())
	})

	t.Run("Without children only the epic moves", func(t *testing.T) {
		s, api := loadedStore(t, epic("E", models.StagePlanned, "X"), child("X", "E", models.StagePlanned))
		api.MoveEpicStageFunc = func(string, string, models.Stage, bool) ([]models.Ticket, error) {
			return nil, nil
		}

		require.NoError(t, s.MoveEpic(context.Background(), "E", models.StageDone, false))
		assert.Equal(t, map[string]models.Stage{"E": models.StageDone, "X": models.StagePlanned}, stages(s.Tickets()))
	})

	t.Run("Rolls back on failure", func(t *testing.T) {
		s, api := loadedStore(t, epic("E", models.StagePlanned, "X"), child("X", "E", models.StagePlanned))
		api.MoveEpicStageFunc = func(string, string, models.Stage, bool) ([]models.Ticket, error) {
			return nil, errors.New("epic move failed")
		}

		assert.Error(t, s.MoveEpic(context.Background(), "E", models.StageDone, true))
		assert.Equal(t, map[string]models.Stage{"E": models.StagePlanned, "X": models.StagePlanned}, stages(s.Tickets()))
		assert.Equal(t, "epic move failed", s.Err())
	})

	t.Run("Unknown epic is a no-op", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))

		assert.NoError(t, s.MoveEpic(context.Background(), "missing", models.StageDone, true))
		assert.Empty(t, api.Calls())
	})
}

func TestDeleteSingle(t *testing.T) {
	t.Run("Cascade removes epic and children then resyncs", func(t *testing.T) {
		s, api := loadedStore(t,
			epic("E", models.StagePlanned, "X", "Y"),
			child("X", "E", models.StagePlanned),
			child("Y", "E", models.StageDone),
			tk("Z", models.StagePlanned),
		)
		var during []string
		api.DeleteTicketFunc = func(string, string, bool) (*models.TicketList, error) {
			during = idsOf(s.Tickets())
			z := tk("Z2", models.StagePlanned)
			return &models.TicketList{Total: 7, Tickets: []models.Ticket{z}}, nil
		}

		require.NoError(t, s.DeleteSingle(context.Background(), "E", true))

		assert.Equal(t, []string{"Z"}, during)
		assert.Equal(t, []string{"Z2"}, idsOf(s.Tickets()))
		assert.Equal(t, 7, s.Total())
		assert.Equal(t, []string{"delete pj.1 E true"}, api.Calls())
	})

	t.Run("Without cascade children stay", func(t *testing.T) {
		s, api := loadedStore(t, epic("E", models.StagePlanned, "X"), child("X", "E", models.StagePlanned))
		var during []string
		var duringTotal int
		api.DeleteTicketFunc = func(string, string, bool) (*models.TicketList, error) {
			during = idsOf(s.Tickets())
			duringTotal = s.Total()
			return listOf(child("X", "E", models.StagePlanned)), nil
		}

		require.NoError(t, s.DeleteSingle(context.Background(), "E", false))
		assert.Equal(t, []string{"X"}, during)
		assert.Equal(t, 1, duringTotal)
	})

	t.Run("Rolls back collection and total on failure", func(t *testing.T) {
		s, api := loadedStore(t, epic("E", models.StagePlanned, "X"), child("X", "E", models.StagePlanned))
		api.DeleteTicketFunc = func(string, string, bool) (*models.TicketList, error) {
			return nil, errors.New("delete failed")
		}

		assert.Error(t, s.DeleteSingle(context.Background(), "E", true))
		assert.Equal(t, []string{"E", "X"}, idsOf(s.Tickets()))
		assert.Equal(t, 2, s.Total())
		assert.Equal(t, "delete failed", s.Err())
	})

	t.Run("Unknown ticket is a no-op", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))

		assert.NoError(t, s.DeleteSingle(context.Background(), "missing", true))
		assert.Empty(t, api.Calls())
		assert.Equal(t, 1, s.Total())
	})

	t.Run("No active project is a no-op", func(t *testing.T) {
		api := &MockTicketAPI{}
		s := New(api)

		assert.NoError(t, s.DeleteSingle(context.Background(), "A", false))
		assert.Empty(t, api.Calls())
	})
}

func TestDeleteBatch(t *testing.T) {
	t.Run("Single request then resync", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned), tk("B", models.StagePlanned), tk("C", models.StagePlanned))
		var during []string
		api.BatchDeleteTicketsFunc = func(string, []string) (*models.TicketList, error) {
			during = idsOf(s.Tickets())
			return listOf(tk("B", models.StageDone)), nil
		}

		require.NoError(t, s.DeleteBatch(context.Background(), []string{"A", "C"}))

		assert.Equal(t, []string{"B"}, during)
		assert.Equal(t, []string{"batch-delete pj.1 [A C]"}, api.Calls())
		assert.Equal(t, models.StageDone, stages(s.Tickets())["B"])
		assert.Equal(t, 1, s.Total())
	})

	t.Run("Rolls back on failure", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned), tk("B", models.StagePlanned))
		api.BatchDeleteTicketsFunc = func(string, []string) (*models.TicketList, error) {
			return nil, errors.New("batch delete failed")
		}

		assert.Error(t, s.DeleteBatch(context.Background(), []string{"A", "B"}))
		assert.Equal(t, []string{"A", "B"}, idsOf(s.Tickets()))
		assert.Equal(t, 2, s.Total())
		assert.Equal(t, "batch delete failed", s.Err())
	})

	t.Run("Empty id list is a no-op", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))

		assert.NoError(t, s.DeleteBatch(context.Background(), nil))
		assert.Empty(t, api.Calls())
	})
}

func TestCreate(t *testing.T) {
	t.Run("Replaces collection with server response", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))
		api.CreateTicketFunc = func(string, string, string) (*models.TicketList, error) {
			return listOf(tk("A", models.StagePlanned), tk("N", models.StagePlanned)), nil
		}

		require.NoError(t, s.Create(context.Background(), "백엔드", "New"))

		assert.Equal(t, []string{"A", "N"}, idsOf(s.Tickets()))
		assert.Equal(t, 2, s.Total())
		assert.Equal(t, []string{"create pj.1 백엔드 New"}, api.Calls())
	})

	t.Run("Applies nothing before the response", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))
		var during []string
		api.CreateChildTicketFunc = func(string, string, string) (*models.TicketList, error) {
			during = idsOf(s.Tickets())
			return listOf(tk("A", models.StagePlanned), child("C", "A", models.StagePlanned)), nil
		}

		require.NoError(t, s.CreateChild(context.Background(), "A", "Child"))
		assert.Equal(t, []string{"A"}, during)
		assert.Equal(t, []string{"A", "C"}, idsOf(s.Tickets()))
	})

	t.Run("Failure sets error and keeps collection", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))
		before := s.Tickets()
		api.CreateTicketFunc = func(string, string, string) (*models.TicketList, error) {
			return nil, errors.New("create failed")
		}
		api.CreateChildTicketFunc = func(string, string, string) (*models.TicketList, error) {
			return nil, errors.New("create child failed")
		}

		assert.Error(t, s.Create(context.Background(), "x", "y"))
		assert.Equal(t, "create failed", s.Err())
		assert.Error(t, s.CreateChild(context.Background(), "A", "y"))
		assert.Equal(t, "create child failed", s.Err())
		assert.Same(t, &before[0], &s.Tickets()[0])
	})

	t.Run("No active project is a no-op", func(t *testing.T) {
		api := &MockTicketAPI{}
		s := New(api)

		assert.NoError(t, s.Create(context.Background(), "x", "y"))
		assert.NoError(t, s.CreateChild(context.Background(), "A", "y"))
		assert.NoError(t, s.DeleteBatch(context.Background(), []string{"A"}))
		assert.NoError(t, s.MoveEpic(context.Background(), "A", models.StageDone, true))
		assert.Empty(t, api.Calls())
	})
}

func TestSameProjectRefetchDoesNotDiscardLaterResult(t *testing.T) {
	t.Run("Delete response after refetch wins", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned), tk("X", models.StagePlanned))

		api.DeleteTicketFunc = func(string, string, bool) (*models.TicketList, error) {
			// A refetch reads the board before the delete lands.
			api.FetchTicketsFunc = func(string) (*models.TicketList, error) {
				return listOf(tk("A", models.StagePlanned), tk("X", models.StagePlanned)), nil
			}
			require.NoError(t, s.Fetch(context.Background(), "pj.1"))
			return listOf(tk("A", models.StagePlanned)), nil
		}

		require.NoError(t, s.DeleteSingle(context.Background(), "X", false))

		assert.Equal(t, []string{"A"}, idsOf(s.Tickets()))
		assert.Equal(t, 1, s.Total())
	})

	t.Run("Create response after refetch wins", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned))

		api.CreateTicketFunc = func(string, string, string) (*models.TicketList, error) {
			api.FetchTicketsFunc = func(string) (*models.TicketList, error) {
				return listOf(tk("A", models.StagePlanned)), nil
			}
			require.NoError(t, s.Fetch(context.Background(), "pj.1"))
			return listOf(tk("A", models.StagePlanned), tk("N", models.StagePlanned)), nil
		}

		require.NoError(t, s.Create(context.Background(), "Backlog", "new"))

		assert.Equal(t, []string{"A", "N"}, idsOf(s.Tickets()))
	})

	t.Run("Move failure after refetch reverts", func(t *testing.T) {
		s, api := loadedStore(t, tk("A", models.StagePlanned), tk("B", models.StagePlanned))

		requested := make(chan struct{})
		release := make(chan struct{})
		api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
			close(requested)
			<-release
			return nil, errors.New("late failure")
		}

		done := make(chan error, 1)
		go func() { done <- s.MoveSingle(context.Background(), "A", models.StageDone) }()
		<-requested

		api.FetchTicketsFunc = func(string) (*models.TicketList, error) {
			return listOf(tk("A", models.StageQADone), tk("B", models.StagePlanned)), nil
		}
		require.NoError(t, s.Fetch(context.Background(), "pj.1"))
		assert.Equal(t, models.StageQADone, stages(s.Tickets())["A"])

		close(release)
		require.Error(t, <-done)

		assert.Equal(t, models.StagePlanned, stages(s.Tickets())["A"])
		assert.Equal(t, "late failure", s.Err())
	})
}

func TestOverlappingFetchesOfSameProject(t *testing.T) {
	s, api := loadedStore(t, tk("A", models.StagePlanned))

	firstRequested := make(chan struct{})
	releaseFirst := make(chan struct{})
	var calls int
	var mu sync.Mutex
	api.FetchTicketsFunc = func(string) (*models.TicketList, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(firstRequested)
			<-releaseFirst
			return listOf(tk("old", models.StagePlanned)), nil
		}
		return listOf(tk("new", models.StagePlanned)), nil
	}

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background(), "pj.1") }()
	<-firstRequested

	require.NoError(t, s.Fetch(context.Background(), "pj.1"))
	assert.Equal(t, []string{"new"}, idsOf(s.Tickets()))
	assert.True(t, s.IsLoading())

	close(releaseFirst)
	require.NoError(t, <-done)

	// The later arrival wins.
	assert.Equal(t, []string{"old"}, idsOf(s.Tickets()))
	assert.False(t, s.IsLoading())
}

func TestProjectSwitchDiscardsInflightResult(t *testing.T) {
	s, api := loadedStore(t, tk("A", models.StagePlanned))

	requested := make(chan struct{})
	release := make(chan struct{})
	api.DeleteTicketFunc = func(string, string, bool) (*models.TicketList, error) {
		close(requested)
		<-release
		return listOf(), nil
	}

	done := make(chan error, 1)
	go func() { done <- s.DeleteSingle(context.Background(), "A", false) }()
	<-requested

	api.FetchTicketsFunc = func(string) (*models.TicketList, error) {
		return &models.TicketList{ProjectID: "pj.2", Total: 1, Tickets: []models.Ticket{tk("P2", models.StagePlanned)}}, nil
	}
	require.NoError(t, s.Fetch(context.Background(), "pj.2"))

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, "pj.2", s.ProjectID())
	assert.Equal(t, []string{"P2"}, idsOf(s.Tickets()))
	assert.Equal(t, 1, s.Total())
}

func TestFilters(t *testing.T) {
	fe := tk("F", models.StagePlanned)
	fe.Section.Name = "프론트엔드"
	fe.Title = "Login form"
	s, _ := loadedStore(t, fe, tk("B", models.StageDone), epic("E", models.StagePlanned))

	all := s.Tickets()
	visible := s.Visible()
	assert.Same(t, &all[0], &visible[0])

	s.SetSearchQuery("LOGIN")
	assert.Equal(t, []string{"F"}, idsOf(s.Visible()))

	s.SetSearchQuery("")
	s.ToggleCategory("BE")
	assert.Equal(t, []string{"B", "E"}, idsOf(s.Visible()))

	s.ToggleType(models.TicketEpic)
	assert.Equal(t, []string{"E"}, idsOf(s.Visible()))

	groups := s.ByStage()
	require.Len(t, groups, len(models.Stages))
	assert.Equal(t, []string{"E"}, idsOf(groups[0].Tickets))

	s.ToggleCategory("BE")
	s.ToggleType(models.TicketEpic)
	assert.True(t, s.Filter().IsEmpty())

	s.SetSearchQuery("x")
	s.ClearFilters()
	assert.Equal(t, filter.State{}, s.Filter())
}

func TestResetAndClearError(t *testing.T) {
	s, api := loadedStore(t, tk("A", models.StagePlanned))
	api.MoveTicketStageFunc = func(string, string, models.Stage) (*models.Ticket, error) {
		return nil, errors.New("nope")
	}
	_ = s.MoveSingle(context.Background(), "A", models.StageDone)
	require.Equal(t, "nope", s.Err())

	s.ClearError()
	assert.Equal(t, "", s.Err())

	s.SetSearchQuery("q")
	s.Reset()
	assert.Equal(t, "", s.ProjectID())
	assert.Empty(t, s.Tickets())
	assert.Equal(t, 0, s.Total())
	assert.True(t, s.Filter().IsEmpty())

	api.ResetCalls()
	assert.NoError(t, s.MoveSingle(context.Background(), "A", models.StageDone))
	assert.Empty(t, api.Calls())
}
