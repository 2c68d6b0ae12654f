package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"finze/internal/categorizer"
	"finze/internal/core"
	"finze/internal/log"
	"finze/internal/services"
)

const (
	statusHealthy     = "healthy"
	statusUnavailable = "unavailable"
	anonymousUser     = "anonymous"
)

// fail writes the envelope for err and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	if resp.statusCode >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), "Request failed", err, op, log.NewFields().
			WithRequestID(log.RequestIDFromContext(r.Context())))
	}
	resp.Write(w)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	Success(map[string]string{
		"status": "ok",
		"uptime": time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// storageStatus runs a lightweight read against the store.
func (s *Server) storageStatus(ctx context.Context) categorizer.ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.finance.Categories(ctx); err != nil {
		return categorizer.ServiceStatus{Status: statusUnavailable, Detail: err.Error()}
	}
	return categorizer.ServiceStatus{Status: statusHealthy, Detail: s.backend}
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	st := s.storageStatus(r.Context())
	if st.Status != statusHealthy {
		ServiceUnavailableError("storage: " + st.Detail).Write(w)
		return
	}
	Success(map[string]any{
		"status":         "ready",
		"summaryEntries": s.summaryCache.Size(),
		"activeClients":  s.rateLimiter.ActiveClients(),
	}).Write(w)
}

// handleHealth answers the health check clients use to pick a backend. Only
// storage decides the status code; optional services are reported.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	deps := map[string]categorizer.ServiceStatus{
		"storage": s.storageStatus(r.Context()),
	}
	if s.categorization.ModelEnabled() {
		deps["model"] = categorizer.ServiceStatus{Status: statusHealthy, Detail: s.modelName}
	} else {
		deps["model"] = categorizer.ServiceStatus{Status: statusUnavailable, Detail: "not configured"}
	}
	if s.analyzer.AdvisorEnabled() {
		deps["advisor"] = categorizer.ServiceStatus{Status: statusHealthy, Detail: s.modelName}
	} else {
		deps["advisor"] = categorizer.ServiceStatus{Status: statusUnavailable, Detail: "rule-based insights only"}
	}
	if s.archive != nil {
		deps["receipt_archive"] = categorizer.ServiceStatus{Status: statusHealthy}
	} else {
		deps["receipt_archive"] = categorizer.ServiceStatus{Status: statusUnavailable, Detail: "not configured"}
	}

	if deps["storage"].Status != statusHealthy {
		ServiceUnavailableError("storage unavailable").Write(w)
		return
	}
	Success(categorizer.Health{Status: statusHealthy, Services: deps}).Write(w)
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req categorizer.Request
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCategorize, err)
		return
	}
	req.Description = sanitizeInput(req.Description)
	req.Merchant = sanitizeInput(req.Merchant)
	req.UserID = sanitizeInput(req.UserID)

	res, err := s.categorization.Categorize(r.Context(), req)
	if err != nil {
		s.fail(w, r, log.OpCategorize, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.categorizations, 1)
	s.structured.LogCategorized(r.Context(), req.UserID, res.Category, res.Confidence, string(res.Source))
	Success(res).Write(w)
}

func (s *Server) handleCategorizeBatch(w http.ResponseWriter, r *http.Request) {
	var req categorizer.BatchRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCategorize, err)
		return
	}
	req.UserID = sanitizeInput(req.UserID)
	for i := range req.Expenses {
		req.Expenses[i].Description = sanitizeInput(req.Expenses[i].Description)
		req.Expenses[i].Merchant = sanitizeInput(req.Expenses[i].Merchant)
		req.Expenses[i].UserID = sanitizeInput(req.Expenses[i].UserID)
	}

	results, err := s.categorization.CategorizeBatch(r.Context(), req.UserID, req.Expenses)
	if err != nil {
		s.fail(w, r, log.OpCategorize, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.categorizations, int64(len(results)))
	Success(categorizer.BatchResult{Results: results}).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.finance.Categories(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	Success(categorizer.CategoriesResult{Categories: cats}).Write(w)
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req categorizer.CorrectionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	c, err := s.finance.RecordCorrection(r.Context(), core.Correction{
		UserID:            sanitizeInput(req.UserID),
		Description:       sanitizeInput(req.Description),
		OriginalCategory:  sanitizeInput(req.OriginalCategory),
		CorrectedCategory: sanitizeInput(req.CorrectedCategory),
	})
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	Success(c).Write(w)
}

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.categorization.ModelEnabled() {
		ServiceUnavailableError(services.ErrOCRUnavailable.Error()).Write(w)
		return
	}

	upload, err := ParseReceiptUpload(w, r, s.maxUpload)
	if err != nil {
		s.fail(w, r, log.OpScan, err)
		return
	}

	rec, err := s.categorization.ScanReceipt(r.Context(), upload.UserID, upload.Data, upload.ContentType)
	if err != nil {
		if errors.Is(err, services.ErrOCRUnavailable) {
			ServiceUnavailableError(err.Error()).Write(w)
			return
		}
		s.structured.LogError(r.Context(), "Receipt extraction failed", err, log.OpScan, log.NewFields().
			WithRequestID(log.RequestIDFromContext(r.Context())))
		ErrorResponse(http.StatusBadGateway, "receipt extraction failed").Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.receiptsScanned, 1)

	if s.archive != nil {
		owner := upload.UserID
		if owner == "" {
			owner = anonymousUser
		}
		uri, err := s.archive.Save(r.Context(), owner, upload.Filename, upload.ContentType, upload.Data)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to archive receipt", "error", err)
		} else {
			rec.ArchiveURI = uri
		}
	}

	Success(rec).Write(w)
}

func (s *Server) handleSaveExpense(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := DecodeJSON(w, r, &tx); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	tx.UserID = sanitizeInput(tx.UserID)
	tx.Title = sanitizeInput(tx.Title)
	tx.Description = sanitizeInput(tx.Description)
	tx.Category = sanitizeInput(tx.Category)
	if tx.Type == "" {
		tx.Type = core.Expense
	}

	saved, err := s.finance.AddTransaction(r.Context(), tx)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.summaryCache.Delete(saved.UserID)
	atomic.AddInt64(&s.appMetrics.totalExpenses, 1)
	s.structured.LogTransactionSaved(r.Context(), saved.UserID, saved.ID, string(saved.Type), saved.Amount.Cents, saved.Category)

	Success(saved).Status(http.StatusCreated).Write(w)
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := PathUserID(r)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	txs, err := s.finance.Transactions(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	Success(categorizer.ExpensesResult{UserID: userID, Count: len(txs), Expenses: txs}).Write(w)
}

func (s *Server) handleUserSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := PathUserID(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	if snap, ok := s.summaryCache.Get(userID); ok {
		Success(snap).Write(w)
		return
	}

	snap, err := s.finance.Snapshot(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	s.summaryCache.Set(userID, snap)
	Success(snap).Write(w)
}

type analyzeSpendingRequest struct {
	UserID   string             `json:"userId,omitempty"`
	Expenses []core.Transaction `json:"expenses"`
}

// handleAnalyzeSpending scores the posted expenses. Nothing is stored.
func (s *Server) handleAnalyzeSpending(w http.ResponseWriter, r *http.Request) {
	var req analyzeSpendingRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpAnalyze, err)
		return
	}
	for i := range req.Expenses {
		req.Expenses[i].Category = sanitizeInput(req.Expenses[i].Category)
		req.Expenses[i].Title = sanitizeInput(req.Expenses[i].Title)
		req.Expenses[i].Description = sanitizeInput(req.Expenses[i].Description)
	}

	an, err := s.analyzer.Analyze(r.Context(), req.Expenses)
	if err != nil {
		s.fail(w, r, log.OpAnalyze, err)
		return
	}
	an.UserID = sanitizeInput(req.UserID)
	atomic.AddInt64(&s.appMetrics.analyses, 1)
	Success(an).Write(w)
}

// handleInsights analyses the user's stored data and saves new insights as
// suggestions, which changes the cached summary.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	userID, err := PathUserID(r)
	if err != nil {
		s.fail(w, r, log.OpAnalyze, err)
		return
	}
	an, err := s.analyzer.Insights(r.Context(), userID)
	if an.SuggestionsCreated > 0 {
		s.summaryCache.Delete(userID)
	}
	if err != nil {
		s.fail(w, r, log.OpAnalyze, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.analyses, 1)
	Success(an).Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("no such endpoint").Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheStats := s.summaryCache.Stats()

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors)
	metric("http_response_time_microseconds", "Smoothed response time", "gauge", traceMetrics.AverageResponseTime)
	metric("expenses_total", "Total number of expenses saved", "counter", atomic.LoadInt64(&s.appMetrics.totalExpenses))
	metric("categorizations_total", "Descriptions categorized", "counter", atomic.LoadInt64(&s.appMetrics.categorizations))
	metric("receipts_scanned_total", "Receipts extracted", "counter", atomic.LoadInt64(&s.appMetrics.receiptsScanned))
	metric("spending_analyses_total", "Spending analyses served", "counter", atomic.LoadInt64(&s.appMetrics.analyses))
	metric("cache_hits_total", "User summary cache hits", "counter", cacheStats.Hits)
	metric("cache_misses_total", "User summary cache misses", "counter", cacheStats.Misses)
	metric("cache_entries", "Current user summary cache entries", "gauge", cacheStats.Size)
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "Requests rejected by the detector", "counter", securityMetrics.BlockedRequests)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}
