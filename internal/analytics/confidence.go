package analytics

import (
	"math"

	"water-risk-service/internal/models"
)

const (
	// DefaultDecisionThreshold порог вероятности для признания пробы пригодной
	DefaultDecisionThreshold = 0.5
	// DefaultStabilityBuffer отступ от порога, при котором предсказание полностью стабильно
	DefaultStabilityBuffer = 0.15
)

// ConfidenceConfig настраиваемые константы расчета уверенности.
// Пороги вердиктов предварительные и не откалиброваны
type ConfidenceConfig struct {
	StabilityBuffer     float64
	StrongCertainty     float64
	StrongStability     float64
	ModerateCertainty   float64
	ModerateStability   float64
	BorderlineStability float64
}

// DefaultConfidenceConfig возвращает конфигурацию, совместимую с текущими экранами
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		StabilityBuffer:     DefaultStabilityBuffer,
		StrongCertainty:     0.7,
		StrongStability:     0.6,
		ModerateCertainty:   0.4,
		ModerateStability:   0.3,
		BorderlineStability: 0.3,
	}
}

// ComputeConfidence считает метрики уверенности с конфигурацией по умолчанию
func ComputeConfidence(probability, threshold float64) models.ConfidenceMetrics {
	return DefaultConfidenceConfig().Compute(probability, threshold)
}

// Compute считает certainty, margin, signal strength, stability и вердикт.
// Вероятность NaN считается нулем и ограничивается [0, 1];
// порог вне (0, 1) заменяется на DefaultDecisionThreshold
func (c ConfidenceConfig) Compute(probability, threshold float64) models.ConfidenceMetrics {
	p := clamp01(probability)
	if math.IsNaN(threshold) || threshold <= 0 || threshold >= 1 {
		threshold = DefaultDecisionThreshold
	}
	buffer := c.StabilityBuffer
	if math.IsNaN(buffer) || buffer <= 0 {
		buffer = DefaultStabilityBuffer
	}

	distance := math.Abs(p - threshold)

	certainty := math.Abs(p-0.5) * 2
	margin := math.Min(distance/threshold, 1)
	signal := p
	if p < 0.5 {
		signal = 1 - p
	}
	stability := math.Min(distance/buffer, 1)

	verdict := c.verdict(certainty, stability)

	return models.ConfidenceMetrics{
		Probability:    p,
		Threshold:      threshold,
		Certainty:      certainty,
		Margin:         margin,
		SignalStrength: signal,
		Stability:      stability,
		Verdict:        verdict,
		VerdictMessage: verdict.Message(),
	}
}

// verdict правила проверяются строго по порядку, срабатывает первое
func (c ConfidenceConfig) verdict(certainty, stability float64) models.Verdict {
	switch {
	case certainty >= c.StrongCertainty && stability >= c.StrongStability:
		return models.VerdictStrong
	case certainty >= c.ModerateCertainty && stability >= c.ModerateStability:
		return models.VerdictModerate
	case stability < c.BorderlineStability:
		return models.VerdictBorderline
	default:
		return models.VerdictWeak
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
