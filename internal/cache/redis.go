package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"water-risk-service/internal/models"
)

// RedisCache реализует кэширование в Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient оборачивает готовый клиент
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// RecordAssessment сохраняет оценку и обновляет счетчики
func (r *RedisCache) RecordAssessment(ctx context.Context, a models.SampleAssessment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, AssessmentKeyPrefix+a.ID, data, AssessmentTTL)
	pipe.LPush(ctx, LatestAssessmentsKey, data)
	pipe.LTrim(ctx, LatestAssessmentsKey, 0, LatestLimit-1)
	for _, key := range counterKeys(a) {
		pipe.Incr(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache assessment: %w", err)
	}
	return nil
}

// GetAssessment возвращает оценку по идентификатору
func (r *RedisCache) GetAssessment(ctx context.Context, id string) (models.SampleAssessment, error) {
	var a models.SampleAssessment
	data, err := r.client.Get(ctx, AssessmentKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("failed to get assessment: %w", err)
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("failed to unmarshal assessment: %w", err)
	}
	return a, nil
}

// GetLatestAssessments возвращает последние N оценок, новые первыми
func (r *RedisCache) GetLatestAssessments(ctx context.Context, count int64) ([]models.SampleAssessment, error) {
	data, err := r.client.LRange(ctx, LatestAssessmentsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest assessments: %w", err)
	}

	out := make([]models.SampleAssessment, 0, len(data))
	for _, d := range data {
		var a models.SampleAssessment
		if err := json.Unmarshal([]byte(d), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}
