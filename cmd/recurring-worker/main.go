package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"finze/internal/cli"
	"finze/internal/log"
	"finze/internal/services"
)

func main() {
	once := flag.Bool("once", false, "process due recurrences once and exit")
	flag.Parse()

	cfg, logger := cli.Bootstrap("recurring-worker")
	logger.Info("Starting recurring-worker")

	be := cli.MustInitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	processor := services.NewRecurringProcessor(be.Store, be.Publisher)
	worker := logger.WithComponent(log.ComponentWorker)

	run := func(ctx context.Context) {
		start := time.Now()
		count, err := processor.ProcessDue(ctx, start)
		if err != nil {
			worker.Error("Processing failed", "error", err, "transactions_created", count)
			return
		}
		worker.Info("Processing complete",
			"transactions_created", count,
			"duration_ms", time.Since(start).Milliseconds())
	}

	if *once {
		run(context.Background())
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	})

	if _, err := c.AddFunc(cfg.RecurringSchedule, func() { run(ctx) }); err != nil {
		logger.Error("Failed to add cron job", "error", err, "schedule", cfg.RecurringSchedule)
		_ = be.Close()
		os.Exit(1)
	}

	logger.Info("Recurring processor scheduled", "schedule", cfg.RecurringSchedule, "backend", cfg.DataBackend)
	run(ctx)
	c.Start()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker stopped")
}
