package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/texflow/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error   string `json:"error" validate:"required"`
	Message string `json:"message,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func errorWithMessage(code, msg string) errResponse {
	return errResponse{Error: code, Message: msg}
}

// writeError maps service errors to HTTP statuses. Unknown errors are logged
// and reported as 500.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorWithMessage("already exists", err.Error()))
	case errors.Is(err, apperr.ErrInvalidMove):
		writeJSON(w, http.StatusUnprocessableEntity, errorWithMessage("invalid move", err.Error()))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorWithMessage("invalid input", err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
