package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, ComponentApp).With(FieldUserID, "u1").WithComponent(ComponentHTTP)
	logger.Info("hello")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=http") {
		t.Fatalf("expected a single http component, got %q", out)
	}
	if !strings.Contains(out, "user_id=u1") {
		t.Fatalf("attributes lost across WithComponent: %q", out)
	}
	if logger.Component() != ComponentHTTP {
		t.Fatalf("Component() = %q", logger.Component())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()).Logger == nil {
		t.Fatal("expected a usable default logger")
	}
}

func TestMiddlewareChainCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, ComponentHTTP)

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	})
	h = RequestIDMiddleware(func(r *http.Request) string { return RequestIDFromContext(r.Context()) })(h)
	h = Middleware(logger)(h)

	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r = r.WithContext(ContextWithRequestID(r.Context(), "req_abc"))
	h.ServeHTTP(httptest.NewRecorder(), r)

	if !strings.Contains(buf.String(), "request_id=req_abc") {
		t.Fatalf("request ID missing: %q", buf.String())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf, ComponentFinance))
	ctx := ContextWithRequestID(context.Background(), "req_1")

	sl.LogTransactionSaved(ctx, "u1", "t1", "expense", 1250, "Food & Dining")
	sl.LogCategorized(ctx, "u1", "Transportation", 0.7, "keyword")
	sl.LogError(ctx, "boom", errors.New("disk full"), OpCreate, NewFields().WithDocument("u1", "budgets", "b1"))

	out := buf.String()
	for _, want := range []string{
		"amount_cents=1250", `category="Food & Dining"`, "category_source=keyword",
		"error=\"disk full\"", "collection=budgets", "request_id=req_1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestLogHTTPEndLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{503, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(bufferLogger(&buf, ComponentHTTP))
		r := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
		sl.LogHTTPEnd(r.Context(), r, tt.status, 3, "127.0.0.1")
		if !strings.Contains(buf.String(), tt.level) {
			t.Errorf("status %d logged as %q, want %s", tt.status, buf.String(), tt.level)
		}
	}
}
