// Package apperr holds the sentinel errors shared by services and handlers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrInvalidMove is returned when a re-parent would create a cycle or
	// targets something that is not a folder.
	ErrInvalidMove = errors.New("invalid move")
)
