// Package projects lists, creates, and deletes the logical groupings
// jobs belong to.
package projects

import (
	"context"
	"strings"

	qi "github.com/quantum-inspire/qi-go"
	"github.com/quantum-inspire/qi-go/api"
)

// Manager drives the service's project endpoints.
type Manager struct {
	client *api.Client
}

// NewManager creates a project manager over client.
func NewManager(client *api.Client) *Manager {
	return &Manager{client: client}
}

// Filter narrows List. With Exact set, only projects whose name equals
// Name match; otherwise Name matches as a case-insensitive substring
// of the name or description. An empty Name matches everything.
type Filter struct {
	Name  string
	Exact bool
}

func (f Filter) matches(p qi.Project) bool {
	if f.Name == "" {
		return true
	}
	if f.Exact {
		return p.Name == f.Name
	}
	needle := strings.ToLower(f.Name)
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle)
}

// List returns the projects matching filter, in the order the service
// returned them.
func (m *Manager) List(ctx context.Context, filter Filter) ([]qi.Project, error) {
	var page qi.Page[qi.Project]
	if err := m.client.Get(ctx, "/projects", &page); err != nil {
		return nil, err
	}

	projects := make([]qi.Project, 0, len(page.Items))
	for _, p := range page.Items {
		if p.ID == "" {
			return nil, api.Malformedf("project record is missing id")
		}
		if filter.matches(p) {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

// Create registers a new project.
func (m *Manager) Create(ctx context.Context, name, description string) (qi.Project, error) {
	payload := struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}{Name: name, Description: description}

	var project qi.Project
	if err := m.client.Post(ctx, "/projects", payload, &project); err != nil {
		return qi.Project{}, err
	}
	if project.ID == "" {
		return qi.Project{}, api.Malformedf("created project record is missing id")
	}
	return project, nil
}

// Selector chooses the projects to delete. IDs take precedence over
// the name filter; with neither present, All must be set explicitly.
// Deletion is destructive and not undoable; any confirmation belongs
// to the caller, not here.
type Selector struct {
	IDs   []string
	Name  string
	Exact bool
	All   bool
}

// DeleteReport accounts for one Delete call. Missing ids are partial
// failures, not aborts.
type DeleteReport struct {
	Deleted []string
	Missing []string
}

// AllDeleted reports full success.
func (r DeleteReport) AllDeleted() bool { return len(r.Missing) == 0 }

// Delete removes the selected projects. Ids that the service does not
// know are reported in the returned DeleteReport without stopping the
// remaining deletions; any other failure aborts.
func (m *Manager) Delete(ctx context.Context, sel Selector) (DeleteReport, error) {
	ids := sel.IDs
	if len(ids) == 0 {
		switch {
		case sel.Name != "":
			matched, err := m.List(ctx, Filter{Name: sel.Name, Exact: sel.Exact})
			if err != nil {
				return DeleteReport{}, err
			}
			for _, p := range matched {
				ids = append(ids, p.ID)
			}
		case sel.All:
			all, err := m.List(ctx, Filter{})
			if err != nil {
				return DeleteReport{}, err
			}
			for _, p := range all {
				ids = append(ids, p.ID)
			}
		default:
			return DeleteReport{}, ErrEmptySelection
		}
	}

	var report DeleteReport
	for _, id := range ids {
		err := m.client.Delete(ctx, "/projects/"+id)
		switch {
		case err == nil:
			report.Deleted = append(report.Deleted, id)
		case api.IsNotFound(err):
			report.Missing = append(report.Missing, id)
		default:
			return report, err
		}
	}
	return report, nil
}
