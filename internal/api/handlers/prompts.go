package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/promptvault/promptvault/internal/audit"
	"github.com/promptvault/promptvault/internal/project"
	"github.com/promptvault/promptvault/internal/prompt"
	"github.com/promptvault/promptvault/internal/resolver"
	"github.com/promptvault/promptvault/internal/store"
)

type PromptHandler struct {
	svc      *prompt.Service
	store    store.Store
	resolver *resolver.Resolver
	audit    *audit.Service
}

func NewPromptHandler(svc *prompt.Service, st store.Store, r *resolver.Resolver, au *audit.Service) *PromptHandler {
	return &PromptHandler{svc: svc, store: st, resolver: r, audit: au}
}

func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req prompt.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !resolver.ValidName(req.Name) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt name"})
		return
	}

	p, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.auditLog(r, "prompt.create", p.Name)
	writeJSON(w, http.StatusCreated, p)
}

func (h *PromptHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	prompts, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"prompts": prompts, "count": len(prompts)})
}

func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, err := h.svc.Get(r.Context(), name)
	if errors.Is(err, prompt.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "prompt not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	versions, err := h.store.FetchVersions(r.Context(), project.IDFromContext(r.Context()), name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"prompt": p, "versions": versions})
}

func (h *PromptHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req prompt.NewVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	v, err := h.svc.CreateVersion(r.Context(), name, req)
	if errors.Is(err, prompt.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "prompt not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.auditLog(r, "prompt.version.create", name)
	writeJSON(w, http.StatusCreated, v)
}

type setLabelRequest struct {
	Version int `json:"version"`
}

func (h *PromptHandler) SetLabel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	label := chi.URLParam(r, "label")

	if !resolver.ValidName(label) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid label"})
		return
	}

	var req setLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Version <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "version required"})
		return
	}

	v, err := h.svc.SetLabel(r.Context(), name, label, req.Version)
	if errors.Is(err, prompt.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "prompt or version not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.auditLog(r, "prompt.label.move", name)
	writeJSON(w, http.StatusOK, v)
}

type resolvedVersion struct {
	Version  int                        `json:"version"`
	IsActive bool                       `json:"is_active"`
	Document *resolver.ResolvedDocument `json:"document,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// Resolve flattens every version of a prompt name, newest first. A version
// that fails (cycle, store outage) is reported inline without failing its
// siblings.
func (h *PromptHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !resolver.ValidName(name) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt name"})
		return
	}

	results, err := h.resolver.ResolveAllVersions(r.Context(), project.IDFromContext(r.Context()), name)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "prompt not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolution failed"})
		return
	}

	versions := make([]resolvedVersion, len(results))
	for i, res := range results {
		versions[i] = resolvedVersion{
			Version:  res.Version,
			IsActive: res.IsActive,
			Document: res.Document,
		}
		if res.Err != nil {
			versions[i].Error = res.Err.Error()
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":     name,
		"count":    len(versions),
		"versions": versions,
	})
}

func (h *PromptHandler) auditLog(r *http.Request, action, name string) {
	if h.audit == nil {
		return
	}
	// Audit is best-effort on the write path.
	_ = h.audit.Log(r.Context(), audit.LogEntry{
		Action:       action,
		ResourceType: "prompt",
		Details:      map[string]interface{}{"name": name},
		IPAddress:    r.RemoteAddr,
	})
}
