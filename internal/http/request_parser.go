// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, receipt uploads and path parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
)

// RequestError is returned for malformed input and maps to 400.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func badRequest(format string, args ...any) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

const maxJSONBytes = 1 << 20

// DecodeJSON reads a single JSON value from the body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return badRequest("content type must be application/json")
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &maxErr):
			return badRequest("request body exceeds %d bytes", maxErr.Limit)
		default:
			return badRequest("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return badRequest("request body must hold a single JSON value")
	}
	return nil
}

// ReceiptUpload is an image posted to the OCR endpoint.
type ReceiptUpload struct {
	UserID      string
	Filename    string
	ContentType string
	Data        []byte
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// ParseReceiptUpload reads the multipart "image" part and the optional
// "userId" field, capping the whole body at maxBytes.
func ParseReceiptUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (ReceiptUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ReceiptUpload{}, badRequest("upload exceeds %d bytes", maxErr.Limit)
		}
		return ReceiptUpload{}, badRequest("invalid multipart form: %v", err)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return ReceiptUpload{}, badRequest("missing image file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ReceiptUpload{}, badRequest("read image: %v", err)
	}
	if len(data) == 0 {
		return ReceiptUpload{}, badRequest("image is empty")
	}

	ct := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if !allowedImageTypes[ct] {
		ct = http.DetectContentType(data)
	}
	if !allowedImageTypes[ct] {
		return ReceiptUpload{}, badRequest("unsupported image type %q", ct)
	}

	return ReceiptUpload{
		UserID:      sanitizeInput(r.FormValue("userId")),
		Filename:    filepath.Base(sanitizeInput(header.Filename)),
		ContentType: ct,
		Data:        data,
	}, nil
}

var userIDPattern = regexp.MustCompile(`^[-_.@0-9A-Za-z]{1,128}$`)

// PathUserID returns the {userId} path value.
func PathUserID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("userId"))
	if !userIDPattern.MatchString(id) {
		return "", badRequest("invalid user id")
	}
	return id, nil
}
