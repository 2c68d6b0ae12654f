package http

import (
	"errors"
	"net/http"
	"strings"

	"finze/internal/core"
	"finze/internal/storage"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// errorResponse maps service errors to a status. Internal errors are not
// echoed to the client.
func errorResponse(err error) *ResponseBuilder {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return BadRequestError(reqErr.Message)
	case errors.Is(err, core.ErrValidation):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return NotFoundError("not found")
	default:
		return InternalServerError(http.StatusText(http.StatusInternalServerError))
	}
}
