package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crowdfund/internal/infra"
	"crowdfund/internal/reconcile"
	"crowdfund/internal/store"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg, "worker")
	if err := cfg.RequirePersistentStore("reconciliation"); err != nil {
		logger.Fatal().Err(err).Msg("worker: refusing to audit an empty in-process store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: store open failed")
	}
	defer st.Close()

	auditor := reconcile.NewAuditor(st, cfg.ReconcileParallelism, logger)
	logger.Info().Dur("interval", cfg.ReconcileInterval).Msg("worker: reconciliation started")
	run(ctx, auditor, cfg.ReconcileInterval, logger)
	logger.Info().Msg("worker: stopped")
}

func run(ctx context.Context, auditor *reconcile.Auditor, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pass(ctx, auditor, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pass(ctx context.Context, auditor *reconcile.Auditor, logger zerolog.Logger) {
	report, err := auditor.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error().Err(err).Msg("worker: reconcile pass failed")
		}
		return
	}
	for _, f := range report.Findings {
		logger.Error().
			Str("campaign", f.ID).
			Str("address", string(f.Campaign)).
			Str("problem", string(f.Problem)).
			Uint64("expected", f.Expected).
			Uint64("actual", f.Actual).
			Msg("worker: ledger inconsistency")
	}
	logger.Info().Int("checked", report.Checked).Int("findings", len(report.Findings)).
		Dur("duration", report.Duration).Msg("worker: reconcile pass")
}
