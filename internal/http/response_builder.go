// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing API responses.
// Every body is a {status, data, error} envelope.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"finze/internal/categorizer"
)

// ResponseBuilder provides a fluent API for building envelope responses.
type ResponseBuilder struct {
	statusCode int
	data       any
	errMsg     string
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the payload of a success envelope.
func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.data = v
	return b
}

// Error turns the envelope into an error envelope.
func (b *ResponseBuilder) Error(message string) *ResponseBuilder {
	b.errMsg = message
	return b
}

// Envelope returns the envelope Write would send.
func (b *ResponseBuilder) Envelope() (categorizer.Envelope, error) {
	if b.errMsg != "" {
		return categorizer.Envelope{Status: categorizer.StatusError, Error: b.errMsg}, nil
	}
	env := categorizer.Envelope{Status: categorizer.StatusSuccess}
	if b.data != nil {
		raw, err := json.Marshal(b.data)
		if err != nil {
			return categorizer.Envelope{}, err
		}
		env.Data = raw
	}
	return env, nil
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")

	env, err := b.Envelope()
	if err != nil {
		slog.Error("Failed to encode response data", "component", "http", "error", err)
		env = categorizer.Envelope{Status: categorizer.StatusError, Error: "failed to encode response"}
		b.statusCode = http.StatusInternalServerError
	}

	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(env)
}

// Success creates a 200 envelope carrying data.
func Success(data any) *ResponseBuilder {
	return NewResponse().Data(data)
}

// ErrorResponse creates a standard error envelope.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Error(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ServiceUnavailableError creates a 503 response for features whose
// dependency is not configured.
func ServiceUnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// TooManyRequestsError creates a 429 response with a Retry-After hint.
func TooManyRequestsError(retryAfter string) *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "too many requests").
		Header("Retry-After", retryAfter)
}
