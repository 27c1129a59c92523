package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabflow/auth"
	"collabflow/catalog"
	"collabflow/config"
	"collabflow/db"
	"collabflow/ledger"
	"collabflow/overdue"
	"collabflow/record"
	"collabflow/stats"
	"collabflow/workflow"
)

func main() {
	configPath := flag.String("config", os.Getenv("COLLABFLOW_CONFIG"), "path to TOML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := run(logger, *configPath); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	cat, err := catalog.New(cfg.StageDefinitions())
	if err != nil {
		return err
	}

	classifier := overdue.NewClassifier(cfg.Thresholds.WarningMaxHours, cfg.Thresholds.CriticalMaxHours)

	server := &Server{
		logger:        logger,
		authService:   auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL()),
		recordService: record.NewService(record.NewRepository(pool)),
		engine:        workflow.NewEngine(pool, nil, cat),
		ledgerStore:   ledger.NewStore(pool),
		detector:      overdue.NewDetector(cat, classifier),
		aggregator:    stats.NewAggregator(cat),
		composer:      stats.NewComposer(cfg.Report.TopIssues),
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
