// Package directory holds the known projects and the dashboard summary.
package directory

import (
	"context"
	"sync"

	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/pkg/models"
)

// ProjectAPI is the subset of the REST API the directory reads from.
type ProjectAPI interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	FetchDashboard(ctx context.Context) (*models.Dashboard, error)
}

// Directory caches the project list and dashboard. Both are read-only; a
// failed read leaves the previous values in place.
type Directory struct {
	api ProjectAPI

	mu        sync.RWMutex
	projects  []models.Project
	dashboard *models.Dashboard
	selected  string
	loading   bool
	errMsg    string
}

// New creates an empty directory.
func New(api ProjectAPI) *Directory {
	return &Directory{
		api:      api,
		projects: []models.Project{},
	}
}

func (d *Directory) Projects() []models.Project {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.projects
}

// Dashboard returns the last fetched summary, or nil before the first
// successful fetch.
func (d *Directory) Dashboard() *models.Dashboard {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dashboard
}

func (d *Directory) IsLoading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loading
}

func (d *Directory) Err() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.errMsg
}

// Project looks up a listed project by id.
func (d *Directory) Project(id string) (models.Project, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.projects {
		if p.ID == id {
			return p, true
		}
	}
	return models.Project{}, false
}

// SelectProject records the project the user is working in. An empty id
// clears the selection.
func (d *Directory) SelectProject(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = id
}

// Selected returns the selected project id, or "" when none is selected.
func (d *Directory) Selected() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected
}

// ListProjects reloads the project list.
func (d *Directory) ListProjects(ctx context.Context) error {
	d.start()

	projects, err := d.api.ListProjects(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = false
	if err != nil {
		d.errMsg = err.Error()
		logging.Error("failed to list projects", "error", err)
		return err
	}
	if projects == nil {
		projects = []models.Project{}
	}
	d.projects = projects

	logging.Debug("listed projects", "count", len(projects))
	return nil
}

// FetchDashboard reloads the dashboard summary. The project list is replaced
// by the projects the dashboard carries.
func (d *Directory) FetchDashboard(ctx context.Context) error {
	d.start()

	dashboard, err := d.api.FetchDashboard(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = false
	if err != nil {
		d.errMsg = err.Error()
		logging.Error("failed to fetch dashboard", "error", err)
		return err
	}
	d.dashboard = dashboard
	d.projects = dashboard.Projects
	if d.projects == nil {
		d.projects = []models.Project{}
	}

	logging.Debug("fetched dashboard",
		"projects", dashboard.TotalProjects,
		"tickets", dashboard.TotalTickets)
	return nil
}

func (d *Directory) start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = true
	d.errMsg = ""
}
