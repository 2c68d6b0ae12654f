package http

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Description string `json:"description"`
	}

	tests := []struct {
		name        string
		body        string
		contentType string
		wantErr     bool
		want        string
	}{
		{"valid", `{"description":"coffee"}`, "application/json", false, "coffee"},
		{"charset param", `{"description":"tea"}`, "application/json; charset=utf-8", false, "tea"},
		{"no content type", `{"description":"x"}`, "", false, "x"},
		{"unknown fields ignored", `{"description":"x","extra":1}`, "application/json", false, "x"},
		{"empty", ``, "application/json", true, ""},
		{"malformed", `{"description":`, "application/json", true, ""},
		{"two values", `{"description":"a"}{"description":"b"}`, "application/json", true, "a"},
		{"form content type", `description=x`, "application/x-www-form-urlencoded", true, ""},
		{"too large", `{"description":"` + strings.Repeat("a", maxJSONBytes) + `"}`, "application/json", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/categorize", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), r, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			var reqErr *RequestError
			if err != nil && !errors.As(err, &reqErr) {
				t.Fatalf("error %v is not a RequestError", err)
			}
			if p.Description != tt.want {
				t.Errorf("Description = %q, want %q", p.Description, tt.want)
			}
		})
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartRequest(t *testing.T, fields map[string]string, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/upload-receipt", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestParseReceiptUpload(t *testing.T) {
	r := multipartRequest(t, map[string]string{"userId": " u1 "}, "dir/receipt.png", "image/png", pngHeader)
	up, err := ParseReceiptUpload(httptest.NewRecorder(), r, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if up.UserID != "u1" || up.Filename != "receipt.png" || up.ContentType != "image/png" || !bytes.Equal(up.Data, pngHeader) {
		t.Fatalf("upload = %+v", up)
	}
}

func TestParseReceiptUpload_SniffsContentType(t *testing.T) {
	r := multipartRequest(t, nil, "scan", "application/octet-stream", pngHeader)
	up, err := ParseReceiptUpload(httptest.NewRecorder(), r, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if up.ContentType != "image/png" {
		t.Fatalf("ContentType = %q", up.ContentType)
	}
}

func TestParseReceiptUpload_Rejects(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
		max  int64
	}{
		{"missing image", func(t *testing.T) *http.Request {
			return multipartRequest(t, map[string]string{"userId": "u1"}, "", "", nil)
		}, 1 << 20},
		{"empty image", func(t *testing.T) *http.Request {
			return multipartRequest(t, nil, "a.png", "image/png", []byte{})
		}, 1 << 20},
		{"not an image", func(t *testing.T) *http.Request {
			return multipartRequest(t, nil, "a.txt", "text/plain", []byte("hello world"))
		}, 1 << 20},
		{"too large", func(t *testing.T) *http.Request {
			return multipartRequest(t, nil, "a.png", "image/png", append(pngHeader, bytes.Repeat([]byte{0}, 4096)...))
		}, 1024},
		{"not multipart", func(t *testing.T) *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/api/upload-receipt", strings.NewReader("{}"))
			r.Header.Set("Content-Type", "application/json")
			return r
		}, 1 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReceiptUpload(httptest.NewRecorder(), tt.req(t), tt.max)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("err = %v, want RequestError", err)
			}
		})
	}
}

func TestPathUserID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"user-1", false},
		{"a.b@example.com", false},
		{"", true},
		{"has space", true},
		{strings.Repeat("x", 129), true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/expenses/x", nil)
			r.SetPathValue("userId", tt.id)
			got, err := PathUserID(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PathUserID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.id {
				t.Errorf("PathUserID() = %q", got)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
