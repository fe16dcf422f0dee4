package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/texflow/internal/checksum"
	"github.com/starford/texflow/internal/models"
	"github.com/starford/texflow/internal/projectservice"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *projectservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *projectservice.Service) *Handler {
	return &Handler{svc: svc}
}

// projectScope rejects requests for projects the caller does not own. A
// foreign project is reported as missing.
func (h *Handler) projectScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.Authorize(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "projectID")); err != nil {
			writeError(w, "authorize project", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// eventScope requires the change feed to be filtered to one project the
// caller owns.
func (h *Handler) eventScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID := r.URL.Query().Get("project")
		if projectID == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("project query parameter is required"))
			return
		}
		if err := h.svc.Authorize(r.Context(), ownerFrom(r.Context()), projectID); err != nil {
			writeError(w, "authorize events", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func writeRecord(w http.ResponseWriter, status int, rec models.Record) {
	if rec.Kind == models.KindFile {
		w.Header().Set("ETag", checksum.ETag(rec.Checksum))
	}
	writeJSON(w, status, rec)
}

// ListProjects handles GET /api/projects.
//
//	@Summary	List the caller's projects
//	@Tags		projects
//	@Produce	json
//	@Success	200	{object}	ProjectListResponse
//	@Security	BearerAuth
//	@Router		/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: projects})
}

// CreateProject handles POST /api/projects.
//
//	@Summary	Create a project seeded with main.tex
//	@Tags		projects
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateProjectRequest	true	"Project to create"
//	@Success	201		{object}	models.Project
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProject(r.Context(), ownerFrom(r.Context()), req.Name)
	if err != nil {
		writeError(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/projects/{projectID}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Tree handles GET /api/projects/{projectID}/tree.
//
//	@Summary	Snapshot of the project's file tree
//	@Tags		records
//	@Produce	json
//	@Param		projectID	path		string	true	"Project ID"
//	@Success	200			{object}	TreeResponse
//	@Failure	404			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/projects/{projectID}/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	tree, err := h.svc.Tree(r.Context(), projectID)
	if err != nil {
		writeError(w, "tree", err)
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{ProjectID: projectID, Tree: tree})
}

// CreateRecord handles POST /api/projects/{projectID}/records.
//
//	@Summary	Create a file or folder
//	@Tags		records
//	@Accept		json
//	@Produce	json
//	@Param		projectID	path		string				true	"Project ID"
//	@Param		body		body		CreateRecordRequest	true	"Record to create"
//	@Success	201			{object}	models.Record
//	@Failure	400			{object}	errResponse
//	@Failure	409			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/projects/{projectID}/records [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.svc.CreateRecord(r.Context(), chi.URLParam(r, "projectID"), projectservice.NewRecord{
		Name:     req.Name,
		Kind:     req.Kind,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		writeError(w, "create record", err)
		return
	}
	writeRecord(w, http.StatusCreated, rec)
}

// GetRecord handles GET /api/projects/{projectID}/records/{recordID}.
// The ETag header carries the file checksum for use in If-Match.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRecord(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, "get record", err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

// UpdateContent handles PUT /api/projects/{projectID}/records/{recordID}.
//
//	@Summary	Replace file content with optimistic concurrency
//	@Tags		records
//	@Accept		json
//	@Produce	json
//	@Param		If-Match	header		string					false	"Checksum from the last read"
//	@Param		body		body		UpdateContentRequest	true	"New content"
//	@Success	200			{object}	models.Record
//	@Failure	404			{object}	errResponse
//	@Failure	409			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/projects/{projectID}/records/{recordID} [put]
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	var req UpdateContentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Content == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	rec, err := h.svc.UpdateContent(r.Context(),
		chi.URLParam(r, "projectID"), chi.URLParam(r, "recordID"),
		*req.Content, checksum.FromIfMatch(r.Header.Get("If-Match")))
	if err != nil {
		writeError(w, "update content", err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

// Rename handles PATCH /api/projects/{projectID}/records/{recordID}.
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.svc.Rename(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "recordID"), req.Name)
	if err != nil {
		writeError(w, "rename", err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/projects/{projectID}/records/{recordID}.
// Deleting a folder soft-deletes everything below it.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "recordID")); err != nil {
		writeError(w, "delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Move handles POST /api/projects/{projectID}/records/{recordID}/move.
//
//	@Summary	Re-parent a record
//	@Tags		records
//	@Accept		json
//	@Produce	json
//	@Param		body	body		MoveRequest	true	"Target folder; empty for root"
//	@Success	200		{object}	MoveResponse
//	@Failure	404		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/projects/{projectID}/records/{recordID}/move [post]
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	moved, err := h.svc.Move(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "recordID"), req.ParentID)
	if err != nil {
		writeError(w, "move", err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Moved: moved})
}

// Preview handles GET /api/projects/{projectID}/records/{recordID}/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	html, err := h.svc.Preview(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}
