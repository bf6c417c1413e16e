package api

import (
	"errors"
	"net/http"
)

// Error kinds. Every failure in the engine wraps exactly one of these, so
// callers match with errors.Is regardless of layer.
var (
	// ErrValidation marks malformed input, detected before any mutation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing node, parent, or key — or one the caller
	// is not allowed to know exists.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied marks a cross-owner mutation attempt.
	ErrAccessDenied = errors.New("access denied")

	// ErrConflict marks a structural integrity violation found at runtime,
	// such as a cycle in the parent chain.
	ErrConflict = errors.New("conflict")

	// ErrInternal marks a store-level failure. Store internals are wrapped,
	// never exposed as a contract.
	ErrInternal = errors.New("internal error")
)

// HTTPStatus maps an error to the status code a transport layer should
// return. Unrecognized errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
