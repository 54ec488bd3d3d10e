// Package main заполняет колонку microbial_risk таблицы water_potability
// по правилам порогов ВОЗ
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"water-risk-service/internal/assessor"
	"water-risk-service/internal/config"
	"water-risk-service/internal/logger"
	"water-risk-service/internal/models"
	"water-risk-service/internal/store"
	"water-risk-service/internal/thresholds"
)

type flags struct {
	batchSize      int
	workers        int
	dryRun         bool
	thresholdsFile string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Label stored samples with microbial risk",
		Long: `Pages through the water_potability table, scores every row against
the threshold table and writes the resulting microbial risk tier back.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, f)
		},
	}

	cmd.Flags().IntVar(&f.batchSize, "batch-size", 500, "Rows fetched per page")
	cmd.Flags().IntVar(&f.workers, "workers", runtime.NumCPU(), "Parallel assessment workers")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Assess rows without writing results")
	cmd.Flags().StringVar(&f.thresholdsFile, "thresholds", "", "Threshold table file (.toml or .yaml); embedded WHO table if empty")

	return cmd
}

func run(ctx context.Context, f flags) error {
	if f.batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", f.batchSize)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log, "water-risk-backfill")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	path := f.thresholdsFile
	if path == "" {
		path = cfg.Assessment.ThresholdsFile
	}
	table, err := thresholds.LoadFile(path)
	if err != nil {
		return err
	}

	db, err := store.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := assessor.DefaultOptions()
	opts.MaxScore = cfg.Assessment.MaxScore

	b := &backfiller{
		repo:      store.NewSampleRepository(db, log),
		assessor:  assessor.New(table, opts),
		logger:    log,
		batchSize: f.batchSize,
		workers:   f.workers,
		dryRun:    f.dryRun,
	}

	log.Info("Starting backfill",
		zap.Int("batch_size", f.batchSize),
		zap.Int("workers", f.workers),
		zap.Bool("dry_run", f.dryRun),
	)

	rep, err := b.run(ctx)
	if err != nil {
		log.Error("Backfill aborted", zap.Int("processed", rep.Processed), zap.Error(err))
		return err
	}

	log.Info("Backfill finished",
		zap.Int("processed", rep.Processed),
		zap.Int("updated", rep.Updated),
		zap.Int("failed", rep.Failed),
		zap.Int("low", rep.Tiers[models.RiskLow]),
		zap.Int("medium", rep.Tiers[models.RiskMedium]),
		zap.Int("high", rep.Tiers[models.RiskHigh]),
	)
	return nil
}
