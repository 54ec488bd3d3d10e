package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"water-risk-service/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisCacheFromClient(client)
}

func assessment(id string, status models.SampleStatus, tier models.RiskTier) models.SampleAssessment {
	return models.SampleAssessment{
		ID:         id,
		SampleID:   "sample-" + id,
		AssessedAt: time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC),
		RiskLevel:  "watch",
		Status:     status,
		Microbial:  models.MicrobialAssessment{RiskLevel: tier, Score: 5, MaxScore: 14},
	}
}

// stores возвращает обе реализации для общих тестов
func stores(t *testing.T) map[string]Store {
	_, rc := setupTestRedis(t)
	return map[string]Store{
		"redis":  rc,
		"memory": NewMemoryCache(),
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a := assessment("a-1", models.StatusReview, models.RiskMedium)
			require.NoError(t, s.RecordAssessment(ctx, a))

			got, err := s.GetAssessment(ctx, "a-1")
			require.NoError(t, err)
			assert.Equal(t, a.SampleID, got.SampleID)
			assert.Equal(t, a.Status, got.Status)
			assert.Equal(t, 5, got.Microbial.Score)
			assert.True(t, a.AssessedAt.Equal(got.AssessedAt))

			_, err = s.GetAssessment(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Counters(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.RecordAssessment(ctx, assessment("1", models.StatusAlert, models.RiskHigh)))
			require.NoError(t, s.RecordAssessment(ctx, assessment("2", models.StatusAlert, models.RiskLow)))
			require.NoError(t, s.RecordAssessment(ctx, assessment("3", models.StatusCleared, models.RiskLow)))

			total, err := s.GetCounter(ctx, TotalAssessmentsKey)
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)

			alerts, err := s.GetCounter(ctx, StatusCounterKey(models.StatusAlert))
			require.NoError(t, err)
			assert.Equal(t, int64(2), alerts)

			low, err := s.GetCounter(ctx, TierCounterKey(models.RiskLow))
			require.NoError(t, err)
			assert.Equal(t, int64(2), low)

			unknown, err := s.GetCounter(ctx, StatusCounterKey(models.StatusReview))
			require.NoError(t, err)
			assert.Zero(t, unknown)
		})
	}
}

func TestStore_LatestNewestFirst(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, s.RecordAssessment(ctx, assessment(fmt.Sprint(i), models.StatusReview, models.RiskLow)))
			}

			latest, err := s.GetLatestAssessments(ctx, 3)
			require.NoError(t, err)
			require.Len(t, latest, 3)
			assert.Equal(t, "4", latest[0].ID)
			assert.Equal(t, "3", latest[1].ID)
			assert.Equal(t, "2", latest[2].ID)

			all, err := s.GetLatestAssessments(ctx, 100)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestStore_LatestIsTrimmed(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < LatestLimit+10; i++ {
				require.NoError(t, s.RecordAssessment(ctx, assessment(fmt.Sprint(i), models.StatusReview, models.RiskLow)))
			}

			latest, err := s.GetLatestAssessments(ctx, LatestLimit+10)
			require.NoError(t, err)
			assert.Len(t, latest, LatestLimit)
			assert.Equal(t, fmt.Sprint(LatestLimit+9), latest[0].ID)
		})
	}
}

func TestRedisCache_AssessmentTTL(t *testing.T) {
	mr, rc := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.RecordAssessment(ctx, assessment("ttl", models.StatusReview, models.RiskLow)))
	assert.Equal(t, AssessmentTTL, mr.TTL(AssessmentKeyPrefix+"ttl"))

	mr.FastForward(AssessmentTTL + time.Second)
	_, err := rc.GetAssessment(ctx, "ttl")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisCache_Unavailable(t *testing.T) {
	mr, rc := setupTestRedis(t)
	ctx := context.Background()
	mr.Close()

	assert.Error(t, rc.Ping(ctx))
	assert.Error(t, rc.RecordAssessment(ctx, assessment("x", models.StatusReview, models.RiskLow)))
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rc, err := NewRedisCache(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	assert.NoError(t, rc.Ping(ctx))
	require.NoError(t, rc.Close())

	mr.Close()
	_, err = NewRedisCache(ctx, mr.Addr(), "", 0)
	assert.Error(t, err)
}

func TestMemoryCache_Ping(t *testing.T) {
	m := NewMemoryCache()
	assert.NoError(t, m.Ping(context.Background()))
	assert.NoError(t, m.Close())
}
