package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"water-risk-service/internal/models"
)

// MemoryCache хранит оценки в памяти процесса; используется,
// когда Redis недоступен
type MemoryCache struct {
	items *gocache.Cache

	mu     sync.Mutex
	latest []models.SampleAssessment
}

// NewMemoryCache создает кэш в памяти
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: gocache.New(AssessmentTTL, 10*time.Minute),
	}
}

// RecordAssessment сохраняет оценку и обновляет счетчики
func (m *MemoryCache) RecordAssessment(_ context.Context, a models.SampleAssessment) error {
	m.items.Set(AssessmentKeyPrefix+a.ID, a, gocache.DefaultExpiration)

	m.mu.Lock()
	m.latest = append([]models.SampleAssessment{a}, m.latest...)
	if len(m.latest) > LatestLimit {
		m.latest = m.latest[:LatestLimit]
	}
	for _, key := range counterKeys(a) {
		// Add возвращает ошибку, если счетчик уже существует
		_ = m.items.Add(key, int64(0), gocache.NoExpiration)
		if _, err := m.items.IncrementInt64(key, 1); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Unlock()

	return nil
}

// GetAssessment возвращает оценку по идентификатору
func (m *MemoryCache) GetAssessment(_ context.Context, id string) (models.SampleAssessment, error) {
	v, ok := m.items.Get(AssessmentKeyPrefix + id)
	if !ok {
		return models.SampleAssessment{}, ErrNotFound
	}
	return v.(models.SampleAssessment), nil
}

// GetLatestAssessments возвращает последние N оценок, новые первыми
func (m *MemoryCache) GetLatestAssessments(_ context.Context, count int64) ([]models.SampleAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int(count)
	if n > len(m.latest) || n < 0 {
		n = len(m.latest)
	}
	return append([]models.SampleAssessment(nil), m.latest[:n]...), nil
}

// GetCounter возвращает значение счетчика
func (m *MemoryCache) GetCounter(_ context.Context, key string) (int64, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return 0, nil
	}
	return v.(int64), nil
}

// Ping всегда успешен
func (m *MemoryCache) Ping(context.Context) error {
	return nil
}

// Close очищает кэш
func (m *MemoryCache) Close() error {
	m.items.Flush()
	return nil
}
