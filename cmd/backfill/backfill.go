package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"water-risk-service/internal/assessor"
	"water-risk-service/internal/models"
)

type sampleRepository interface {
	FetchPage(ctx context.Context, offset, limit int) ([]models.SampleResult, error)
	UpdateMicrobialRisk(ctx context.Context, id string, tier models.RiskTier) error
}

// report итоги прохода по таблице
type report struct {
	Processed int
	Updated   int
	Failed    int
	Tiers     map[models.RiskTier]int
}

type backfiller struct {
	repo      sampleRepository
	assessor  *assessor.Assessor
	logger    *zap.Logger
	batchSize int
	workers   int
	dryRun    bool
}

// run постранично оценивает пробы и записывает уровень риска.
// Ошибка записи одной пробы не прерывает проход
func (b *backfiller) run(ctx context.Context) (report, error) {
	rep := report{Tiers: make(map[models.RiskTier]int)}

	for offset := 0; ; {
		page, err := b.repo.FetchPage(ctx, offset, b.batchSize)
		if err != nil {
			return rep, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		results, err := b.assessor.AssessAll(ctx, page, b.workers)
		if err != nil {
			return rep, err
		}

		for _, res := range results {
			rep.Processed++
			rep.Tiers[res.Microbial.RiskLevel]++
			if b.dryRun {
				continue
			}
			if err := b.repo.UpdateMicrobialRisk(ctx, res.SampleID, res.Microbial.RiskLevel); err != nil {
				rep.Failed++
				b.logger.Warn("Failed to update sample",
					zap.String("sample_id", res.SampleID),
					zap.Error(err),
				)
				continue
			}
			rep.Updated++
		}

		b.logger.Info("Backfill progress",
			zap.Int("offset", offset),
			zap.Int("page", len(page)),
			zap.Int("processed", rep.Processed),
			zap.Int("failed", rep.Failed),
		)

		if len(page) < b.batchSize {
			break
		}
		offset += len(page)
	}

	return rep, nil
}
