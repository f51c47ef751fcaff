package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptvault/promptvault/internal/api/handlers"
	"github.com/promptvault/promptvault/internal/cache"
	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/resolver"
	"github.com/promptvault/promptvault/internal/store"
)

type stubStore struct {
	versions map[string][]models.PromptVersion
}

func (s *stubStore) FetchVersions(_ context.Context, _ uuid.UUID, name string) ([]models.PromptVersion, error) {
	rows := s.versions[name]
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return rows, nil
}

func (s *stubStore) FetchByVersion(_ context.Context, _ uuid.UUID, name string, version int) (*models.PromptVersion, error) {
	for _, v := range s.versions[name] {
		if v.Version == version {
			return &v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) FetchByLabel(_ context.Context, _ uuid.UUID, name string, label string) (*models.PromptVersion, error) {
	for _, v := range s.versions[name] {
		if v.HasLabel(label) {
			return &v, nil
		}
	}
	return nil, store.ErrNotFound
}

func newTestRouter(st store.Store) http.Handler {
	eng := resolver.New(st, resolver.Options{Cache: cache.NewMemoryCache()})
	h := handlers.NewPromptHandler(nil, st, eng, nil)

	r := chi.NewRouter()
	r.Get("/api/v1/prompts/{name}/resolve", h.Resolve)
	return r
}

func TestResolveEndpoint(t *testing.T) {
	st := &stubStore{versions: map[string][]models.PromptVersion{
		"greeting": {
			{Name: "greeting", Version: 2, Body: "Hi, {{ref:farewell}}", Labels: []string{"production"}},
			{Name: "greeting", Version: 1, Body: "Hello, {{ref:farewell@production}}"},
		},
		"farewell": {
			{Name: "farewell", Version: 3, Body: "Goodbye.", Labels: []string{"production"}},
		},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prompts/greeting/resolve", nil)
	rec := httptest.NewRecorder()
	newTestRouter(st).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Name     string `json:"name"`
		Count    int    `json:"count"`
		Versions []struct {
			Version  int    `json:"version"`
			IsActive bool   `json:"is_active"`
			Document *struct {
				Body    string `json:"body"`
				Partial bool   `json:"partial"`
			} `json:"document"`
			Error string `json:"error"`
		} `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "greeting", resp.Name)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Versions, 2)

	assert.Equal(t, 2, resp.Versions[0].Version)
	assert.True(t, resp.Versions[0].IsActive)
	require.NotNil(t, resp.Versions[0].Document)
	assert.Equal(t, "Hi, Goodbye.", resp.Versions[0].Document.Body)

	assert.Equal(t, 1, resp.Versions[1].Version)
	assert.False(t, resp.Versions[1].IsActive)
	require.NotNil(t, resp.Versions[1].Document)
	assert.Equal(t, "Hello, Goodbye.", resp.Versions[1].Document.Body)
}

func TestResolveEndpointReportsCycleInline(t *testing.T) {
	st := &stubStore{versions: map[string][]models.PromptVersion{
		"doc": {
			{Name: "doc", Version: 2, Body: "fine"},
			{Name: "doc", Version: 1, Body: "{{ref:doc@1}}"},
		},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prompts/doc/resolve", nil)
	rec := httptest.NewRecorder()
	newTestRouter(st).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Versions []struct {
			Version int             `json:"version"`
			Doc     json.RawMessage `json:"document"`
			Error   string          `json:"error"`
		} `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Versions, 2)

	assert.Empty(t, resp.Versions[0].Error)
	assert.Contains(t, resp.Versions[1].Error, "cyclic reference")
	assert.Empty(t, resp.Versions[1].Doc)
}

func TestResolveEndpointUnknownPrompt(t *testing.T) {
	st := &stubStore{versions: map[string][]models.PromptVersion{}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prompts/ghost/resolve", nil)
	rec := httptest.NewRecorder()
	newTestRouter(st).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
