package categorizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"finze/internal/core"
)

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	raw, _ := json.Marshal(data)
	env := Envelope{Status: StatusSuccess, Data: raw}
	if status >= 400 {
		env = Envelope{Status: StatusError, Error: "boom"}
	}
	_ = json.NewEncoder(w).Encode(env)
}

type fakeBackend struct {
	healthy     atomic.Bool
	categorized atomic.Int32
	mux         *http.ServeMux
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{mux: http.NewServeMux()}
	fb.healthy.Store(true)
	fb.mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		if !fb.healthy.Load() {
			writeEnvelope(w, http.StatusServiceUnavailable, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, Health{Status: "healthy"})
	})
	fb.mux.HandleFunc("POST /api/categorize", func(w http.ResponseWriter, r *http.Request) {
		fb.categorized.Add(1)
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeEnvelope(w, http.StatusOK, Result{Category: "Travel", Confidence: 0.93, Source: SourceModel})
	})
	srv := httptest.NewServer(fb.mux)
	t.Cleanup(srv.Close)
	return fb, srv
}

func TestClient_DiscoverPrefersFirstHealthyCandidate(t *testing.T) {
	_, first := newFakeBackend(t)
	_, second := newFakeBackend(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	c := NewClient([]string{down.URL + "/api", second.URL + "/api/", first.URL + "/api"})
	got, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got != second.URL+"/api" {
		t.Fatalf("selected %q, want the first healthy candidate %q", got, second.URL+"/api")
	}
}

func TestClient_DiscoverNoneHealthy(t *testing.T) {
	c := NewClient([]string{"http://127.0.0.1:1/api"})
	if _, err := c.Discover(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if c.BaseURL() != "" {
		t.Fatalf("base should be empty, got %q", c.BaseURL())
	}
}

func TestClient_CategorizeUsesRemoteAndCaches(t *testing.T) {
	fb, srv := newFakeBackend(t)
	c := NewClient([]string{srv.URL + "/api"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := c.Categorize(ctx, Request{Description: "Flight to Goa", UserID: "u1"})
		if res.Category != "Travel" || res.Source != SourceModel || res.Confidence != 0.93 {
			t.Fatalf("unexpected result %+v", res)
		}
	}
	if n := fb.categorized.Load(); n != 1 {
		t.Fatalf("remote called %d times, want 1 (cached)", n)
	}
}

func TestClient_CategorizeFallsBackWhenUnhealthy(t *testing.T) {
	fb, srv := newFakeBackend(t)
	c := NewClient([]string{srv.URL + "/api"})
	ctx := context.Background()
	if _, err := c.Discover(ctx); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	fb.healthy.Store(false)
	res := c.Categorize(ctx, Request{Description: "Restaurant dinner"})
	if res.Category != "Food & Dining" || res.Source != SourceKeyword {
		t.Fatalf("expected keyword fallback, got %+v", res)
	}
	if res.Confidence < 0.5 || res.Confidence > 0.7 {
		t.Fatalf("fallback confidence %v outside [0.5, 0.7]", res.Confidence)
	}
	if fb.categorized.Load() != 0 {
		t.Fatal("categorize must not be called after a failed health check")
	}
	if c.BaseURL() != "" {
		t.Fatal("failed health check should clear the selected backend")
	}
}

func TestClient_CategorizeFallsBackOnTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, nil)
	})
	mux.HandleFunc("POST /api/categorize", func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can observe the client disconnect.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient([]string{srv.URL + "/api"})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res := c.Categorize(ctx, Request{Description: "Taxi ride"})
	if res.Category != "Transportation" || res.Source != SourceKeyword {
		t.Fatalf("expected keyword fallback after timeout, got %+v", res)
	}
}

func TestClient_CategoriesFallsBackToStaticList(t *testing.T) {
	c := NewClient(nil)
	cats := c.Categories(context.Background())
	if len(cats) == 0 || cats[0] != "Food & Dining" {
		t.Fatalf("unexpected fallback categories %v", cats)
	}
}

func TestClient_ScanReceipt(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.mux.HandleFunc("POST /api/upload-receipt", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeEnvelope(w, http.StatusBadRequest, nil)
			return
		}
		if _, _, err := r.FormFile("image"); err != nil {
			writeEnvelope(w, http.StatusBadRequest, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, Receipt{
			Merchant: "Cafe Blue",
			Items: []ReceiptItem{
				{Name: "Latte", Amount: core.Money{Cents: 250}, Category: "Food & Dining"},
				{Name: "Hotel booking fee", Amount: core.Money{Cents: 900}},
			},
			Total: core.Money{Cents: 1150},
		})
	})

	c := NewClient([]string{srv.URL + "/api"})
	rec, err := c.ScanReceipt(context.Background(), "u1", "r.jpg", strings.NewReader("fake-image"))
	if err != nil {
		t.Fatalf("ScanReceipt: %v", err)
	}
	if rec.Total.Cents != 1150 || len(rec.Items) != 2 {
		t.Fatalf("unexpected receipt %+v", rec)
	}
	if rec.Items[0].Category != "Food & Dining" {
		t.Errorf("existing category overwritten: %+v", rec.Items[0])
	}
	if rec.Items[1].Category == "" {
		t.Errorf("uncategorized item left empty: %+v", rec.Items[1])
	}
}

func TestClient_ScanReceiptUnavailable(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.mux.HandleFunc("POST /api/upload-receipt", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusServiceUnavailable, nil)
	})

	c := NewClient([]string{srv.URL + "/api"})
	_, err := c.ScanReceipt(context.Background(), "u1", "r.jpg", strings.NewReader("x"))
	if !IsUnavailable(err) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_ExpensesDecodesEnvelope(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.mux.HandleFunc("GET /api/expenses/{userId}", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, ExpensesResult{
			UserID:   r.PathValue("userId"),
			Count:    1,
			Expenses: []core.Transaction{{ID: "t1", UserID: "u1", Amount: core.Money{Cents: 500}, Type: core.Expense}},
		})
	})

	c := NewClient([]string{srv.URL + "/api"})
	txs, err := c.Expenses(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Expenses: %v", err)
	}
	if len(txs) != 1 || txs[0].Amount.Cents != 500 {
		t.Fatalf("unexpected expenses %+v", txs)
	}
}

func TestClient_SubmitCorrectionDropsCachedResult(t *testing.T) {
	fb, srv := newFakeBackend(t)
	var got CorrectionRequest
	fb.mux.HandleFunc("POST /api/correction", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeEnvelope(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	c := NewClient([]string{srv.URL + "/api"})
	ctx := context.Background()

	c.Categorize(ctx, Request{Description: "Flight to Goa", UserID: "u1"})
	err := c.SubmitCorrection(ctx, CorrectionRequest{
		UserID:            "u1",
		Description:       "Flight to Goa",
		OriginalCategory:  "Travel",
		CorrectedCategory: "Holidays",
	})
	if err != nil {
		t.Fatalf("SubmitCorrection: %v", err)
	}
	if got.UserID != "u1" || got.CorrectedCategory != "Holidays" {
		t.Fatalf("backend received %+v", got)
	}

	c.Categorize(ctx, Request{Description: "flight to goa ", UserID: "u1"})
	if n := fb.categorized.Load(); n != 2 {
		t.Fatalf("remote called %d times, want 2 after the cache entry was dropped", n)
	}
}

func TestClient_SubmitCorrectionUnavailable(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.healthy.Store(false)
	c := NewClient([]string{srv.URL + "/api"})

	err := c.SubmitCorrection(context.Background(), CorrectionRequest{UserID: "u1", Description: "x", CorrectedCategory: "Other"})
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestClient_UserSummaryDecodesDeficit(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.mux.HandleFunc("GET /api/user-summary/{userId}", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, core.Snapshot{
			UserID: r.PathValue("userId"),
			Monthly: core.MonthlySummary{
				Month:         "2024-06",
				TotalIncome:   core.Money{Cents: 1000},
				TotalExpenses: core.Money{Cents: 1400},
				Balance:       core.Money{Cents: -400},
			},
			Budgets: []core.BudgetStatus{{
				Budget:     core.Budget{UserID: "u1", Category: "Food", Amount: core.Money{Cents: 1000}},
				Spent:      core.Money{Cents: 1400},
				Remaining:  core.Money{Cents: -400},
				Percentage: 140,
				Band:       core.BandOver,
			}},
		})
	})

	c := NewClient([]string{srv.URL + "/api"})
	snap, err := c.UserSummary(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserSummary: %v", err)
	}
	if snap.UserID != "u1" || snap.Monthly.Balance.Cents != -400 {
		t.Fatalf("unexpected snapshot %+v", snap.Monthly)
	}
	if len(snap.Budgets) != 1 || snap.Budgets[0].Remaining.Cents != -400 || snap.Budgets[0].Band != core.BandOver {
		t.Fatalf("unexpected budgets %+v", snap.Budgets)
	}
}
