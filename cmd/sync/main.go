package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fleet-sync/internal/config"
	"fleet-sync/internal/reconcile"

	"go.uber.org/zap"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "log planned writes without applying them")
	passList := flag.String("passes", "", "comma separated passes to run: drivers,vehicles,trips (default all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	if *dryRun {
		cfg.Sync.DryRun = true
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer logger.Sync()

	passes, err := reconcile.ParsePasses(*passList)
	if err != nil {
		logger.Fatal("Invalid -passes flag", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := reconcile.NewRunner(reconcile.MongoOpener(cfg, logger), cfg.Sync, passes, logger)
	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("Sync failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Sync finished",
		zap.String("run_id", report.RunID),
		zap.Bool("dry_run", report.DryRun),
		zap.Duration("duration", report.Duration()),
	)
}
