package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finze/internal/cache"
	"finze/internal/core"
	"finze/internal/log"
	"finze/internal/middleware/ratelimit"
	"finze/internal/middleware/security"
	"finze/internal/middleware/trace"
	"finze/internal/receipts"
	"finze/internal/services"
)

const (
	defaultSummaryCacheSize = 256
	defaultSummaryCacheTTL  = 2 * time.Minute
	defaultMaxUploadBytes   = 10 << 20
	cacheCleanupInterval    = time.Minute
)

// Options wires the server to its services. Categorization, Analyzer and
// Archive are optional; without them the corresponding endpoints degrade.
type Options struct {
	Finance        *services.FinanceService
	Categorization *services.CategorizationService
	Analyzer       *services.SpendingAnalyzer
	Archive        receipts.Archive
	Logger         *log.Logger

	Backend   string // reported by the health endpoint
	ModelName string

	SummaryCacheSize   int
	SummaryCacheTTL    time.Duration
	RateLimitPerMinute int
	MaxUploadBytes     int64
}

type Server struct {
	http.Server
	finance        *services.FinanceService
	categorization *services.CategorizationService
	analyzer       *services.SpendingAnalyzer
	archive        receipts.Archive
	logger         *log.Logger
	structured     *log.StructuredLogger

	backend   string
	modelName string
	maxUpload int64

	summaryCache *cache.LRUCache[core.Snapshot]
	caches       *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	totalExpenses   int64
	categorizations int64
	receiptsScanned int64
	analyses        int64
	uptime          time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	categorization := opts.Categorization
	if categorization == nil {
		categorization = services.NewCategorizationService(opts.Finance, nil)
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = services.NewSpendingAnalyzer(opts.Finance, nil)
	}

	size := opts.SummaryCacheSize
	if size <= 0 {
		size = defaultSummaryCacheSize
	}
	ttl := opts.SummaryCacheTTL
	if ttl < 0 {
		ttl = defaultSummaryCacheTTL
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	limiterConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	detector := security.NewDetector()

	s := &Server{
		finance:          opts.Finance,
		categorization:   categorization,
		analyzer:         analyzer,
		archive:          opts.Archive,
		logger:           logger,
		structured:       log.NewStructuredLogger(logger),
		backend:          opts.Backend,
		modelName:        opts.ModelName,
		maxUpload:        maxUpload,
		summaryCache:     cache.NewLRUCache[core.Snapshot](size, ttl),
		caches:           cache.NewManager(),
		rateLimiter:      ratelimit.NewLimiter(limiterConfig),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	s.caches.Register("user_summary", s.summaryCache)
	s.caches.StartCleanup(cacheCleanupInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/categorize", s.handleCategorize)
	mux.HandleFunc("POST /api/categorize-batch", s.handleCategorizeBatch)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("POST /api/correction", s.handleCorrection)
	mux.HandleFunc("POST /api/upload-receipt", s.handleUploadReceipt)
	mux.HandleFunc("POST /api/save-expense", s.handleSaveExpense)
	mux.HandleFunc("GET /api/expenses/{userId}", s.handleExpenses)
	mux.HandleFunc("GET /api/user-summary/{userId}", s.handleUserSummary)
	mux.HandleFunc("POST /api/ai/analyze-spending", s.handleAnalyzeSpending)
	mux.HandleFunc("GET /api/ai-insights/{userId}", s.handleInsights)
	mux.HandleFunc("/api/", s.handleNotFound)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware applies, outermost first: security headers, tracing, the
// request-scoped logger, suspicious request detection and the write rate
// limit.
func (s *Server) middleware(h http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError("60").Write(w)
	}
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, onLimit, http.MethodPost)(h)
	h = s.securityDetector.Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = log.Middleware(s.logger)(h)
	h = s.traceMiddleware.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return h
}

// Shutdown stops background workers and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.caches.Stop()
	})
	return s.Server.Shutdown(ctx)
}
