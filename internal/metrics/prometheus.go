// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"water-risk-service/internal/models"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterrisk_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waterrisk_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// InFlightRequests запросы в обработке
	InFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waterrisk_in_flight_requests",
			Help: "Number of requests currently being served",
		},
	)

	// SamplesAssessed количество оцененных проб
	SamplesAssessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waterrisk_samples_assessed_total",
			Help: "Total number of water samples assessed",
		},
	)

	// SamplesDropped пробы, не принятые в очередь
	SamplesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waterrisk_samples_dropped_total",
			Help: "Samples rejected because the assessment queue was full",
		},
	)

	// AssessmentsByTier оценки по уровню микробиологического риска
	AssessmentsByTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterrisk_assessments_by_tier_total",
			Help: "Assessments grouped by microbial risk tier",
		},
		[]string{"tier"},
	)

	// AssessmentsByStatus оценки по статусу пробы
	AssessmentsByStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterrisk_assessments_by_status_total",
			Help: "Assessments grouped by sample status",
		},
		[]string{"status"},
	)

	// ViolationsByField нарушения порогов по параметру
	ViolationsByField = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterrisk_violations_total",
			Help: "Threshold violations grouped by parameter",
		},
		[]string{"field"},
	)

	// Certainty распределение уверенности модели
	Certainty = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waterrisk_prediction_certainty",
			Help:    "Distribution of prediction certainty",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// CacheHits успешные записи и чтения кэша
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waterrisk_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses ошибки и промахи кэша
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waterrisk_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waterrisk_active_goroutines",
			Help: "Number of active goroutines",
		},
	)

	// BaselineMean скользящее среднее параметра
	BaselineMean = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waterrisk_baseline_mean",
			Help: "Rolling mean of a water-quality parameter",
		},
		[]string{"field"},
	)

	// AssessmentLatency время выполнения оценки
	AssessmentLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waterrisk_assessment_latency_seconds",
			Help:    "Assessment computation latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05},
		},
	)
)

// ObserveAssessment обновляет метрики по результату оценки
func ObserveAssessment(a models.SampleAssessment) {
	SamplesAssessed.Inc()
	AssessmentsByTier.WithLabelValues(string(a.Microbial.RiskLevel)).Inc()
	AssessmentsByStatus.WithLabelValues(string(a.Status)).Inc()
	for _, v := range a.Microbial.Violations {
		ViolationsByField.WithLabelValues(v.Field).Inc()
	}
	Certainty.Observe(a.Confidence.Certainty)
}

// UpdateBaselines выставляет текущие средние по параметрам
func UpdateBaselines(baselines map[string]models.Baseline) {
	for field, b := range baselines {
		if b.Count == 0 {
			continue
		}
		BaselineMean.WithLabelValues(field).Set(b.Mean)
	}
}
