// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"water-risk-service/internal/analytics"
	"water-risk-service/internal/assessor"
	"water-risk-service/internal/cache"
	"water-risk-service/internal/ingest"
	"water-risk-service/internal/metrics"
	"water-risk-service/internal/models"
)

const (
	maxBodyBytes      = 8 << 20
	defaultLatestSize = 50
	maxLatestSize     = 1000
)

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	assessor     *assessor.Assessor
	store        cache.Store
	decoder      *ingest.Decoder
	logger       *zap.Logger
	batchWorkers int
	startTime    time.Time
	now          func() time.Time
}

// NewHandler создает новый обработчик. store может быть nil
func NewHandler(a *assessor.Assessor, store cache.Store, decoder *ingest.Decoder, logger *zap.Logger) *Handler {
	if decoder == nil {
		decoder = ingest.NewDecoder(a.DecisionThreshold())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		assessor:     a,
		store:        store,
		decoder:      decoder,
		logger:       logger,
		batchWorkers: runtime.NumCPU(),
		startTime:    time.Now(),
		now:          time.Now,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/assess", h.AssessHandler).Methods(http.MethodPost)
	router.HandleFunc("/assess/batch", h.BatchAssessHandler).Methods(http.MethodPost)
	router.HandleFunc("/microbial-risk", h.MicrobialRiskHandler).Methods(http.MethodPost)
	router.HandleFunc("/confidence", h.ConfidenceHandler).Methods(http.MethodGet)
	router.HandleFunc("/status", h.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/aggregate", h.AggregateHandler).Methods(http.MethodPost)
	router.HandleFunc("/thresholds", h.ThresholdsHandler).Methods(http.MethodGet)
	router.HandleFunc("/assessments/latest", h.LatestAssessmentsHandler).Methods(http.MethodGet)
	router.HandleFunc("/assessments/{id}", h.AssessmentHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)
}

// AssessHandler обрабатывает POST /assess - оценка одной пробы
func (h *Handler) AssessHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/assess"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	body, ok := h.readBody(w, r, endpoint)
	if !ok {
		return
	}

	sample, err := h.decoder.DecodeSample(body)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	result := h.assess(r, sample)

	h.succeed(w, r, endpoint, result, http.StatusOK)
}

// BatchAssessHandler обрабатывает POST /assess/batch - массовая оценка проб.
// С ?async=true пробы ставятся в очередь пула воркеров
func (h *Handler) BatchAssessHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/assess/batch"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	body, ok := h.readBody(w, r, endpoint)
	if !ok {
		return
	}

	samples, err := h.decoder.DecodeBatch(body)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		accepted, dropped := 0, 0
		for _, s := range samples {
			if h.assessor.Submit(s) {
				accepted++
			} else {
				dropped++
				metrics.SamplesDropped.Inc()
			}
		}
		if dropped > 0 {
			h.logger.Warn("Assessment queue full", zap.Int("dropped", dropped))
		}
		h.succeed(w, r, endpoint, map[string]int{
			"accepted": accepted,
			"dropped":  dropped,
		}, http.StatusAccepted)
		return
	}

	start := time.Now()
	results, err := h.assessor.AssessAll(r.Context(), samples, h.batchWorkers)
	if err != nil {
		h.fail(w, r, endpoint, "Assessment cancelled: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	metrics.AssessmentLatency.Observe(time.Since(start).Seconds())

	alerts := 0
	for _, res := range results {
		metrics.ObserveAssessment(res)
		h.record(r, res)
		if res.Status == models.StatusAlert {
			alerts++
		}
	}

	h.succeed(w, r, endpoint, models.BatchResponse{
		Processed: len(results),
		Alerts:    alerts,
		Results:   results,
	}, http.StatusOK)
}

// MicrobialRiskHandler обрабатывает POST /microbial-risk - только микробиологический риск
func (h *Handler) MicrobialRiskHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/microbial-risk"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	body, ok := h.readBody(w, r, endpoint)
	if !ok {
		return
	}

	sample, err := h.decoder.DecodeSample(body)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	if analytics.NumericCount(sample.Readings) < 2 {
		h.fail(w, r, endpoint, "At least two numeric parameters are required for microbial-risk assessment", http.StatusBadRequest)
		return
	}

	violations := analytics.DetectViolations(sample.Readings, h.assessor.Table())
	assessment := analytics.ScoreMicrobialRisk(violations, h.assessor.MaxScore())

	h.succeed(w, r, endpoint, assessment, http.StatusOK)
}

// ConfidenceHandler обрабатывает GET /confidence?probability=&threshold=
func (h *Handler) ConfidenceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/confidence"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	query := r.URL.Query()

	// некорректная вероятность трактуется как 0
	probability, _ := strconv.ParseFloat(query.Get("probability"), 64)

	threshold := h.assessor.DecisionThreshold()
	if v := query.Get("threshold"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = t
		}
	}

	h.succeed(w, r, endpoint, h.assessor.Confidence(probability, threshold), http.StatusOK)
}

// StatusHandler обрабатывает GET /status?risk_level=
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/status"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	riskLevel := r.URL.Query().Get("risk_level")

	h.succeed(w, r, endpoint, map[string]string{
		"risk_level": riskLevel,
		"status":     string(analytics.MapStatus(riskLevel)),
	}, http.StatusOK)
}

// AggregateHandler обрабатывает POST /aggregate - сводная статистика по пробам
func (h *Handler) AggregateHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/aggregate"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	body, ok := h.readBody(w, r, endpoint)
	if !ok {
		return
	}

	samples, err := h.decoder.DecodeBatch(body)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	h.succeed(w, r, endpoint, analytics.Aggregate(samples, h.assessor.Table(), h.now()), http.StatusOK)
}

// ThresholdsHandler обрабатывает GET /thresholds - активная таблица порогов
func (h *Handler) ThresholdsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/thresholds"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	table := h.assessor.Table()
	h.succeed(w, r, endpoint, map[string]interface{}{
		"max_score": h.assessor.MaxScore(),
		"rules":     table.Rules(),
	}, http.StatusOK)
}

// LatestAssessmentsHandler возвращает последние оценки из кэша
func (h *Handler) LatestAssessmentsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/assessments/latest"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	count := int64(defaultLatestSize)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= maxLatestSize {
			count = c
		}
	}

	if h.store == nil {
		h.fail(w, r, endpoint, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	latest, err := h.store.GetLatestAssessments(r.Context(), count)
	if err != nil {
		metrics.CacheMisses.Inc()
		h.fail(w, r, endpoint, "Failed to get assessments: "+err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.CacheHits.Inc()

	h.succeed(w, r, endpoint, latest, http.StatusOK)
}

// AssessmentHandler обрабатывает GET /assessments/{id}
func (h *Handler) AssessmentHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/assessments/{id}"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	if h.store == nil {
		h.fail(w, r, endpoint, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	a, err := h.store.GetAssessment(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, cache.ErrNotFound):
		metrics.CacheMisses.Inc()
		h.fail(w, r, endpoint, "Assessment not found", http.StatusNotFound)
		return
	case err != nil:
		metrics.CacheMisses.Inc()
		h.fail(w, r, endpoint, "Failed to get assessment: "+err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.CacheHits.Inc()

	h.succeed(w, r, endpoint, a, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/health"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	cacheStatus := "disconnected"
	switch {
	case h.store == nil:
	case h.store.Ping(r.Context()) != nil:
	default:
		cacheStatus = "connected"
		if _, inMemory := h.store.(*cache.MemoryCache); inMemory {
			cacheStatus = "memory"
		}
	}

	h.respondJSON(w, models.HealthStatus{
		Status:    "healthy",
		Timestamp: h.now(),
		Cache:     cacheStatus,
		Uptime:    time.Since(h.startTime).String(),
	}, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/stats"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	response := models.StatsResponse{
		StatusCounts: make(map[models.SampleStatus]int64),
		TierCounts:   make(map[models.RiskTier]int64),
		Baselines:    h.assessor.Baselines(),
	}

	if h.store != nil {
		ctx := r.Context()
		response.TotalAssessments, _ = h.store.GetCounter(ctx, cache.TotalAssessmentsKey)
		for _, s := range []models.SampleStatus{models.StatusCleared, models.StatusReview, models.StatusAlert} {
			response.StatusCounts[s], _ = h.store.GetCounter(ctx, cache.StatusCounterKey(s))
		}
		for _, t := range []models.RiskTier{models.RiskLow, models.RiskMedium, models.RiskHigh} {
			response.TierCounts[t], _ = h.store.GetCounter(ctx, cache.TierCounterKey(t))
		}
	}

	metrics.UpdateBaselines(response.Baselines)

	h.succeed(w, r, endpoint, response, http.StatusOK)
}

// assess оценивает пробу, сохраняет результат и обновляет метрики
func (h *Handler) assess(r *http.Request, sample models.SampleResult) models.SampleAssessment {
	start := time.Now()
	result := h.assessor.AssessSync(sample)
	metrics.AssessmentLatency.Observe(time.Since(start).Seconds())
	metrics.ObserveAssessment(result)

	h.record(r, result)
	return result
}

// record кэширует оценку; ошибка кэша не прерывает запрос
func (h *Handler) record(r *http.Request, a models.SampleAssessment) {
	if h.store == nil {
		return
	}
	if err := h.store.RecordAssessment(r.Context(), a); err != nil {
		metrics.CacheMisses.Inc()
		h.logger.Warn("Failed to cache assessment",
			zap.String("assessment_id", a.ID),
			zap.Error(err),
		)
		return
	}
	metrics.CacheHits.Inc()
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, endpoint string) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, endpoint, "Failed to read body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		h.fail(w, r, endpoint, "Empty request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (h *Handler) succeed(w http.ResponseWriter, r *http.Request, endpoint string, data interface{}, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	h.respondJSON(w, data, status)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, endpoint, message string, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	h.respondError(w, message, status)
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	h.respondJSON(w, map[string]string{"error": message}, status)
}
