package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"finze/internal/cli"
	"finze/internal/gemini"
	apphttp "finze/internal/http"
	"finze/internal/receipts"
	"finze/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap("finze")
	ctx := context.Background()

	be := cli.MustInitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	finance := services.NewFinanceService(be.Store, be.Publisher)

	var model services.Model
	var advisor services.Advisor
	modelName := ""
	if cfg.GeminiAPIKey != "" {
		gc, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Failed to initialize Gemini, using keyword categorization only", "error", err)
		} else {
			model = gc
			advisor = gc
			modelName = gc.Model()
			logger.Info("Gemini enabled", "model", modelName)
		}
	} else {
		logger.Info("GEMINI_API_KEY not set, receipt OCR disabled")
	}

	var archive receipts.Archive
	if cfg.ReceiptBucket != "" {
		gcs, err := receipts.NewGCSArchive(ctx, cfg.ReceiptBucket, cfg.GoogleCredentialsFile)
		if err != nil {
			logger.Warn("Failed to initialize receipt archive", "error", err, "bucket", cfg.ReceiptBucket)
		} else {
			defer gcs.Close()
			archive = gcs
			logger.Info("Receipt archive enabled", "bucket", cfg.ReceiptBucket)
		}
	}

	srv := apphttp.NewServer(cfg.Addr(), apphttp.Options{
		Finance:            finance,
		Categorization:     services.NewCategorizationService(finance, model),
		Analyzer:           services.NewSpendingAnalyzer(finance, advisor),
		Archive:            archive,
		Logger:             logger,
		Backend:            cfg.DataBackend,
		ModelName:          modelName,
		SummaryCacheSize:   cfg.SummaryCacheSize,
		SummaryCacheTTL:    cfg.SummaryCacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	})
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting finze server", "addr", srv.Addr, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "addr", srv.Addr)
		_ = be.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
