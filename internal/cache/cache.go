// Package cache реализует кэширование результатов оценки проб
package cache

import (
	"context"
	"errors"
	"time"

	"water-risk-service/internal/models"
)

const (
	// AssessmentKeyPrefix префикс для ключей оценок
	AssessmentKeyPrefix = "assessment:"
	// LatestAssessmentsKey ключ списка последних оценок
	LatestAssessmentsKey = "assessments:latest"
	// TotalAssessmentsKey счетчик всех оценок
	TotalAssessmentsKey = "assessments:total"
	// LatestLimit сколько последних оценок хранится
	LatestLimit = 1000
	// AssessmentTTL время жизни оценки
	AssessmentTTL = 1 * time.Hour
)

// ErrNotFound оценка отсутствует в кэше
var ErrNotFound = errors.New("assessment not found")

// Store хранилище оценок и счетчиков
type Store interface {
	RecordAssessment(ctx context.Context, a models.SampleAssessment) error
	GetAssessment(ctx context.Context, id string) (models.SampleAssessment, error)
	GetLatestAssessments(ctx context.Context, count int64) ([]models.SampleAssessment, error)
	GetCounter(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// StatusCounterKey ключ счетчика по статусу пробы
func StatusCounterKey(status models.SampleStatus) string {
	return "status:" + string(status)
}

// TierCounterKey ключ счетчика по уровню микробиологического риска
func TierCounterKey(tier models.RiskTier) string {
	return "tier:" + string(tier)
}

func counterKeys(a models.SampleAssessment) []string {
	return []string{
		TotalAssessmentsKey,
		StatusCounterKey(a.Status),
		TierCounterKey(a.Microbial.RiskLevel),
	}
}
