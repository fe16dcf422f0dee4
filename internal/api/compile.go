package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Compile handles POST /api/compile.
//
// Any source, including an empty one, renders to a preview. A body without
// a source field is a client error; a body that is not JSON at all fails
// the whole request.
//
//	@Summary	Render LaTeX source to an HTML preview
//	@Tags		preview
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CompileRequest	true	"LaTeX source"
//	@Success	200		{object}	CompileResponse
//	@Failure	400		{object}	errResponse
//	@Failure	500		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/compile [post]
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("compile: unreadable body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorWithMessage("compile failed", err.Error()))
		return
	}
	if req.Source == nil {
		writeJSON(w, http.StatusBadRequest, errorWithMessage("missing source", "request body must include a source field"))
		return
	}
	writeJSON(w, http.StatusOK, CompileResponse{Success: true, HTMLPreview: h.svc.Compile(*req.Source)})
}
