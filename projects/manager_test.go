package projects_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qi "github.com/quantum-inspire/qi-go"
	"github.com/quantum-inspire/qi-go/api"
	"github.com/quantum-inspire/qi-go/auth"
	"github.com/quantum-inspire/qi-go/credentials"
	"github.com/quantum-inspire/qi-go/projects"
	"github.com/stretchr/testify/require"
)

// fakeRegistry serves a fixed project list and records deletions.
// Ids in missing respond 404.
type fakeRegistry struct {
	srv *httptest.Server

	items   []qi.Project
	missing map[string]bool

	deleted   []string
	listCalls int
}

func newFakeRegistry(t *testing.T, items ...qi.Project) *fakeRegistry {
	t.Helper()
	f := &fakeRegistry{items: items, missing: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls++
		json.NewEncoder(w).Encode(qi.Page[qi.Project]{Items: f.items})
	})
	mux.HandleFunc("POST /projects", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		json.NewEncoder(w).Encode(qi.Project{ID: "p-new", Name: in.Name, Description: in.Description})
	})
	mux.HandleFunc("DELETE /projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if f.missing[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.deleted = append(f.deleted, id)
		w.WriteHeader(http.StatusNoContent)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newManager(t *testing.T, f *fakeRegistry) *projects.Manager {
	t.Helper()
	session := auth.NewSession(f.srv.URL, credentials.NewStore(t.TempDir()),
		auth.WithStaticToken("test-token"))
	client := api.New(f.srv.URL, session,
		api.WithRetryPolicy(1, time.Millisecond, time.Millisecond))
	return projects.NewManager(client)
}

func sampleProjects() []qi.Project {
	return []qi.Project{
		{ID: "p-1", Name: "Bell states", Description: "entanglement demos"},
		{ID: "p-2", Name: "Grover search", Description: "amplitude amplification"},
		{ID: "p-3", Name: "bell-calibration", Description: "nightly runs"},
	}
}

func TestListAll(t *testing.T) {
	f := newFakeRegistry(t, sampleProjects()...)
	manager := newManager(t, f)

	got, err := manager.List(context.Background(), projects.Filter{})
	require.NoError(t, err)
	require.Equal(t, sampleProjects(), got)
}

func TestListSubstringFilterIsCaseInsensitive(t *testing.T) {
	f := newFakeRegistry(t, sampleProjects()...)
	manager := newManager(t, f)

	got, err := manager.List(context.Background(), projects.Filter{Name: "BELL"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "p-1", got[0].ID)
	require.Equal(t, "p-3", got[1].ID)
}

func TestListSubstringFilterSearchesDescriptions(t *testing.T) {
	f := newFakeRegistry(t, sampleProjects()...)
	manager := newManager(t, f)

	got, err := manager.List(context.Background(), projects.Filter{Name: "amplitude"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "p-2", got[0].ID)
}

func TestListExactFilter(t *testing.T) {
	f := newFakeRegistry(t, sampleProjects()...)
	manager := newManager(t, f)

	got, err := manager.List(context.Background(), projects.Filter{Name: "Bell states", Exact: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "p-1", got[0].ID)

	got, err = manager.List(context.Background(), projects.Filter{Name: "bell states", Exact: true})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestListRejectsRecordWithoutID(t *testing.T) {
	f := newFakeRegistry(t, qi.Project{Name: "nameless"})
	manager := newManager(t, f)

	_, err := manager.List(context.Background(), projects.Filter{})
	var malformed *api.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestCreate(t *testing.T) {
	f := newFakeRegistry(t)
	manager := newManager(t, f)

	project, err := manager.Create(context.Background(), "my project", "scratch space")
	require.NoError(t, err)
	require.Equal(t, "p-new", project.ID)
	require.Equal(t, "my project", project.Name)
	require.Equal(t, "scratch space", project.Description)
}

func TestDeleteByIDsIgnoresNameFilter(t *testing.T) {
	f := newFakeRegistry(t, sampleProjects()...)
	manager := newManager(t, f)

	report, err := manager.Delete(context.Background(), projects.Selector{
		IDs:  []string{"p-2"},
		Name: "bell",
	})
	require.NoError(t, err)
	require.True(t, report.AllDeleted())
	require.Equal(t, []string{"p-2"}, report.Deleted)
	require.Equal(t, []string{"p-2"}, f.deleted)
	require.Zero(t, f.listCalls, "explicit ids must not trigger a list")
}

func TestDeleteByName(t *testing.T) {
	f := newFakeRegistry(t, sampleProjects()...)
	manager := newManager(t, f)

	report, err := manager.Delete(context.Background(), projects.Selector{Name: "bell"})
	require.NoError(t, err)
	require.Equal(t, []string{"p-1", "p-3"}, report.Deleted)
	require.Equal(t, []string{"p-1", "p-3"}, f.deleted)
}

func TestDeleteAllRequiresExplicitFlag(t *testing.T) {
	f := newFakeRegistry(t, sampleProjects()...)
	manager := newManager(t, f)

	_, err := manager.Delete(context.Background(), projects.Selector{})
	require.ErrorIs(t, err, projects.ErrEmptySelection)
	require.Empty(t, f.deleted)

	report, err := manager.Delete(context.Background(), projects.Selector{All: true})
	require.NoError(t, err)
	require.Equal(t, []string{"p-1", "p-2", "p-3"}, report.Deleted)
}

func TestDeleteReportsMissingIDs(t *testing.T) {
	f := newFakeRegistry(t, sampleProjects()...)
	f.missing["p-gone"] = true
	manager := newManager(t, f)

	report, err := manager.Delete(context.Background(), projects.Selector{
		IDs: []string{"p-1", "p-gone", "p-2"},
	})
	require.NoError(t, err)
	require.False(t, report.AllDeleted())
	require.Equal(t, []string{"p-1", "p-2"}, report.Deleted)
	require.Equal(t, []string{"p-gone"}, report.Missing)
}

func TestDeleteAbortsOnServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	session := auth.NewSession(srv.URL, credentials.NewStore(t.TempDir()),
		auth.WithStaticToken("test-token"))
	client := api.New(srv.URL, session, api.WithRetryPolicy(1, time.Millisecond, time.Millisecond))
	manager := projects.NewManager(client)

	report, err := manager.Delete(context.Background(), projects.Selector{IDs: []string{"p-1", "p-2"}})
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Empty(t, report.Deleted)
}
