package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Search handles GET /api/projects/{projectID}/search?q=...&limit=N.
//
//	@Summary	Full-text search across a project's files
//	@Tags		records
//	@Produce	json
//	@Param		projectID	path		string	true	"Project ID"
//	@Param		q			query		string	true	"Search terms"
//	@Param		limit		query		int		false	"Maximum results (default 20, max 100)"
//	@Success	200			{object}	SearchResponse
//	@Failure	400			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/projects/{projectID}/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("missing query parameter q"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = n
	}

	results, err := h.svc.Search(r.Context(), chi.URLParam(r, "projectID"), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: results})
}
