package assessor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"water-risk-service/internal/models"
	"water-risk-service/internal/thresholds"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ptr(v float64) *float64 { return &v }

func sample(id string, probability float64, risk string, params map[string]float64) models.SampleResult {
	s := models.SampleResult{ID: id, Probability: probability, RiskLevel: risk}
	for _, field := range []string{"ph", "hardness", "solids", "chloramines", "sulfate", "conductivity", "organic_carbon", "trihalomethanes", "turbidity"} {
		if v, ok := params[field]; ok {
			s.Readings = append(s.Readings, models.ParameterReading{Field: field, Value: ptr(v)})
		}
	}
	return s
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
}

func newTestAssessor() *Assessor {
	opts := DefaultOptions()
	opts.Now = fixedNow
	return New(thresholds.Default(), opts)
}

func TestAssessSync(t *testing.T) {
	a := newTestAssessor()

	result := a.AssessSync(sample("s-1", 0.58, "watch", map[string]float64{
		"ph":        9.2,
		"turbidity": 6.1,
		"sulfate":   120,
	}))

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "s-1", result.SampleID)
	assert.Equal(t, fixedNow(), result.AssessedAt)
	assert.Equal(t, models.StatusReview, result.Status)

	assert.Equal(t, 5, result.Microbial.Score)
	assert.Equal(t, 14, result.Microbial.MaxScore)
	assert.Equal(t, models.RiskMedium, result.Microbial.RiskLevel)
	require.Len(t, result.Microbial.Violations, 2)
	assert.Equal(t, "ph", result.Microbial.Violations[0].Field)
	assert.Equal(t, "turbidity", result.Microbial.Violations[1].Field)

	assert.Equal(t, models.VerdictWeak, result.Confidence.Verdict)
}

func TestAssessSync_CleanSample(t *testing.T) {
	a := newTestAssessor()

	result := a.AssessSync(sample("s-2", 0.92, "safe", map[string]float64{"ph": 7.1, "turbidity": 2}))

	assert.True(t, result.Microbial.Clean)
	assert.Equal(t, models.RiskLow, result.Microbial.RiskLevel)
	assert.Equal(t, models.StatusCleared, result.Status)
	assert.Equal(t, models.VerdictStrong, result.Confidence.Verdict)
}

func TestAssessSync_MaxScoreOverride(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxScore = 4
	a := New(thresholds.Default(), opts)

	result := a.AssessSync(sample("s", 0.5, "", map[string]float64{"turbidity": 9, "ph": 3}))
	assert.Equal(t, 4, result.Microbial.Score)
	assert.Equal(t, 4, a.MaxScore())
}

func TestAssessor_BaselinesFeedZScore(t *testing.T) {
	a := newTestAssessor()

	// Prime the turbidity window
	for i := 0; i < 20; i++ {
		a.AssessSync(sample("warmup", 0.5, "watch", map[string]float64{"turbidity": 4.5 + float64(i%3)*0.5}))
	}

	baselines := a.Baselines()
	assert.Equal(t, 20, baselines["turbidity"].Count)
	assert.InDelta(t, 5.0, baselines["turbidity"].Mean, 0.05)
	assert.Equal(t, 0, baselines["ph"].Count)

	result := a.AssessSync(sample("spike", 0.5, "watch", map[string]float64{"turbidity": 12, "ph": 9}))
	require.Len(t, result.Microbial.Violations, 2)

	ph := result.Microbial.Violations[0]
	assert.Nil(t, ph.ZScore, "no history for ph yet")

	turbidity := result.Microbial.Violations[1]
	require.NotNil(t, turbidity.ZScore)
	assert.Greater(t, *turbidity.ZScore, 3.0)
}

func TestAssessor_WorkerPool(t *testing.T) {
	a := newTestAssessor()
	a.Start(4)
	defer a.Stop()

	const n = 100
	for i := 0; i < n; i++ {
		require.True(t, a.Submit(sample("s", 0.3, "unsafe", map[string]float64{"ph": 5})))
	}

	timeout := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case r := <-a.Results():
			assert.Equal(t, models.StatusAlert, r.Status)
		case <-timeout:
			t.Fatalf("received %d of %d results", i, n)
		}
	}
}

func TestAssessor_StopClosesResults(t *testing.T) {
	a := newTestAssessor()
	a.Start(2)
	a.Stop()
	a.Stop()

	_, ok := <-a.Results()
	assert.False(t, ok)
}

func TestAssessAll_PreservesOrder(t *testing.T) {
	a := newTestAssessor()

	samples := make([]models.SampleResult, 50)
	for i := range samples {
		samples[i] = sample(string(rune('a'+i%26)), float64(i)/50, "safe", map[string]float64{"ph": 7})
	}

	results, err := a.AssessAll(context.Background(), samples, 8)
	require.NoError(t, err)
	require.Len(t, results, len(samples))
	for i := range samples {
		assert.Equal(t, samples[i].ID, results[i].SampleID)
		assert.InDelta(t, samples[i].Probability, results[i].Confidence.Probability, 1e-12)
	}
}

func TestAssessAll_Cancelled(t *testing.T) {
	a := newTestAssessor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.AssessAll(ctx, []models.SampleResult{sample("x", 0.5, "", map[string]float64{"ph": 7})}, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, a.Baselines()["ph"].Count, "windows must not advance on a cancelled batch")
}

// driftingSamples пробы с меняющимися значениями, чтобы z-score зависел
// от того, какие пробы уже попали в окна
func driftingSamples(n int) []models.SampleResult {
	samples := make([]models.SampleResult, n)
	for i := range samples {
		samples[i] = sample(fmt.Sprintf("s-%d", i), 0.5, "watch", map[string]float64{
			"ph":        6 + float64(i%7)*0.5,
			"turbidity": 2 + float64(i%11)*0.6,
			"sulfate":   200 + float64(i%5)*40,
		})
	}
	return samples
}

func TestAssessAll_MatchesSequentialAssessment(t *testing.T) {
	samples := driftingSamples(60)

	sequential := newTestAssessor()
	want := make([]models.SampleAssessment, len(samples))
	for i, s := range samples {
		want[i] = sequential.AssessSync(s)
	}

	for run := 0; run < 5; run++ {
		a := newTestAssessor()
		got, err := a.AssessAll(context.Background(), samples, 8)
		require.NoError(t, err)
		require.Len(t, got, len(samples))

		for i := range samples {
			assert.Equal(t, want[i].Microbial, got[i].Microbial, "run %d sample %d", run, i)
		}
		assert.Equal(t, sequential.Baselines(), a.Baselines())
	}
}

func BenchmarkAssessSync(b *testing.B) {
	a := New(thresholds.Default(), DefaultOptions())
	s := sample("bench", 0.64, "watch", map[string]float64{
		"ph": 8.9, "hardness": 210, "solids": 21000, "chloramines": 7.3, "sulfate": 330,
		"conductivity": 420, "organic_carbon": 14, "trihalomethanes": 66, "turbidity": 4.2,
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.AssessSync(s)
	}
}
