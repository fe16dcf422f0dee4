package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/starford/texflow/internal/models"
	"github.com/starford/texflow/internal/projectservice"
	"github.com/starford/texflow/internal/storage"
)

const maxUploadBytes = 10 << 20 // 10 MB

// uploadName validates that the filename is a plain source file name with no
// path components.
func uploadName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Base(filepath.Clean(strings.ReplaceAll(name, `\`, "/")))
	if cleaned != name || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if !storage.IsSource(cleaned) {
		return "", fmt.Errorf("unsupported file type: %s", name)
	}
	return cleaned, nil
}

// Upload handles POST /api/projects/{projectID}/uploads (multipart/form-data,
// field "file", optional field "parentId").
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := uploadName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var buf bytes.Buffer
	written, err := io.Copy(&buf, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}
	if !utf8.Valid(buf.Bytes()) {
		writeJSON(w, http.StatusBadRequest, errorBody("upload is not UTF-8 text"))
		return
	}

	rec, err := h.svc.CreateRecord(r.Context(), chi.URLParam(r, "projectID"), projectservice.NewRecord{
		Name:     name,
		Kind:     models.KindFile,
		ParentID: r.FormValue("parentId"),
		Content:  buf.String(),
	})
	if err != nil {
		writeError(w, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{Record: rec, Size: written})
}
