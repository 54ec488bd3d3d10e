// Package main запускает сервис оценки риска питьевой воды
// Сервис реализует:
// - HTTP API для оценки проб воды по порогам ВОЗ
// - Микробиологический балл риска и индекс вероятных бактерий
// - Метрики уверенности предсказания модели пригодности
// - Скользящие базовые значения параметров (окно 50 проб) для z-score
// - Кэширование в Redis с запасным кэшем в памяти
// - Экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"water-risk-service/internal/analytics"
	"water-risk-service/internal/assessor"
	"water-risk-service/internal/cache"
	"water-risk-service/internal/config"
	"water-risk-service/internal/handlers"
	"water-risk-service/internal/ingest"
	"water-risk-service/internal/logger"
	"water-risk-service/internal/metrics"
	"water-risk-service/internal/models"
	"water-risk-service/internal/thresholds"
)

const serviceName = "water-risk-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Water Risk Service",
		zap.String("go_version", runtime.Version()),
		zap.Int("num_cpu", runtime.NumCPU()),
	)

	table, err := thresholds.LoadFile(cfg.Assessment.ThresholdsFile)
	if err != nil {
		log.Fatal("Failed to load threshold table",
			zap.String("path", cfg.Assessment.ThresholdsFile),
			zap.Error(err),
		)
	}
	log.Info("Threshold table loaded",
		zap.Int("rules", table.Len()),
		zap.Int("max_score", table.MaxScore()),
	)

	// Инициализируем оценщик проб
	opts := assessor.DefaultOptions()
	opts.DecisionThreshold = cfg.Assessment.DecisionThreshold
	opts.MaxScore = cfg.Assessment.MaxScore
	opts.WindowSize = cfg.Assessment.BaselineWindow
	opts.BufferSize = cfg.BufferSize
	opts.Confidence = analytics.DefaultConfidenceConfig()
	opts.Confidence.StabilityBuffer = cfg.Assessment.StabilityBuffer

	a := assessor.New(table, opts)
	a.Start(cfg.WorkerCount)
	log.Info("Assessment engine started", zap.Int("workers", cfg.WorkerCount))

	store := connectCache(cfg.Redis, log)

	handler := handlers.NewHandler(a, store, ingest.NewDecoder(cfg.Assessment.DecisionThreshold), log)

	// Настраиваем маршруты
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	router.Use(loggingMiddleware(log))
	router.Use(metricsMiddleware)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go updateMetricsLoop(ctx, a)

	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		processAssessmentResults(a, store, log)
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-stop
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	cancel()
	a.Stop()
	<-resultsDone

	if err := store.Close(); err != nil {
		log.Warn("Failed to close cache", zap.Error(err))
	}

	log.Info("Server stopped")
}

// connectCache подключается к Redis с повторами; при неудаче
// возвращает кэш в памяти
func connectCache(cfg config.RedisConfig, log *zap.Logger) cache.Store {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.NewRedisCache(ctx, cfg.Addr, cfg.Password, cfg.DB)
		cancel()
		if err == nil {
			log.Info("Connected to Redis", zap.String("addr", cfg.Addr))
			return rc
		}
		lastErr = err
		log.Warn("Redis connection attempt failed",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		if i < retries-1 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	log.Warn("Failed to connect to Redis, using in-memory cache", zap.Error(lastErr))
	return cache.NewMemoryCache()
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// metricsMiddleware учитывает запросы в обработке
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.InFlightRequests.Inc()
		defer metrics.InFlightRequests.Dec()
		next.ServeHTTP(w, r)
	})
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(ctx context.Context, a *assessor.Assessor) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.UpdateBaselines(a.Baselines())
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		case <-ctx.Done():
			return
		}
	}
}

// processAssessmentResults сохраняет результаты асинхронной оценки
func processAssessmentResults(a *assessor.Assessor, store cache.Store, log *zap.Logger) {
	for result := range a.Results() {
		metrics.ObserveAssessment(result)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := store.RecordAssessment(ctx, result); err != nil {
			metrics.CacheMisses.Inc()
			log.Warn("Failed to cache assessment", zap.String("assessment_id", result.ID), zap.Error(err))
		}
		cancel()

		if result.Status == models.StatusAlert || result.Microbial.RiskLevel == models.RiskHigh {
			log.Info("High-risk sample",
				zap.String("sample_id", result.SampleID),
				zap.String("status", string(result.Status)),
				zap.String("microbial_risk", string(result.Microbial.RiskLevel)),
				zap.Int("score", result.Microbial.Score),
			)
		}
	}
}
