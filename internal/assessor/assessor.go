// Package assessor связывает расчеты analytics с состоянием сервиса:
// скользящие исторические окна параметров для z-score и пул воркеров
// для асинхронной и пакетной оценки проб
package assessor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"water-risk-service/internal/analytics"
	"water-risk-service/internal/models"
	"water-risk-service/internal/thresholds"
)

// Options параметры оценщика
type Options struct {
	DecisionThreshold float64
	MaxScore          int
	Confidence        analytics.ConfidenceConfig
	WindowSize        int
	BufferSize        int
	Now               func() time.Time
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		DecisionThreshold: analytics.DefaultDecisionThreshold,
		Confidence:        analytics.DefaultConfidenceConfig(),
		WindowSize:        analytics.DefaultWindowSize,
		BufferSize:        1000,
		Now:               time.Now,
	}
}

// Assessor оценивает пробы по таблице порогов
type Assessor struct {
	table    *thresholds.Table
	opts     Options
	maxScore int

	mu      sync.RWMutex
	windows map[string]*analytics.SlidingWindow

	samplesChan chan models.SampleResult
	resultsChan chan models.SampleAssessment
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// New создает оценщик. Если MaxScore не задан, берется сумма весов таблицы
func New(table *thresholds.Table, opts Options) *Assessor {
	if table == nil {
		table = thresholds.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if math.IsNaN(opts.DecisionThreshold) || opts.DecisionThreshold <= 0 || opts.DecisionThreshold >= 1 {
		opts.DecisionThreshold = analytics.DefaultDecisionThreshold
	}
	if opts.Confidence == (analytics.ConfidenceConfig{}) {
		opts.Confidence = analytics.DefaultConfidenceConfig()
	}

	maxScore := opts.MaxScore
	if maxScore <= 0 {
		maxScore = table.MaxScore()
	}

	windows := make(map[string]*analytics.SlidingWindow, table.Len())
	for _, r := range table.Rules() {
		windows[r.Field] = analytics.NewSlidingWindow(opts.WindowSize)
	}

	return &Assessor{
		table:       table,
		opts:        opts,
		maxScore:    maxScore,
		windows:     windows,
		samplesChan: make(chan models.SampleResult, opts.BufferSize),
		resultsChan: make(chan models.SampleAssessment, opts.BufferSize),
		stopChan:    make(chan struct{}),
	}
}

// Table возвращает активную таблицу порогов
func (a *Assessor) Table() *thresholds.Table {
	return a.table
}

// MaxScore возвращает максимальный микробиологический балл
func (a *Assessor) MaxScore() int {
	return a.maxScore
}

// DecisionThreshold возвращает порог решения по умолчанию
func (a *Assessor) DecisionThreshold() float64 {
	return a.opts.DecisionThreshold
}

// Confidence считает метрики уверенности с настройками оценщика
func (a *Assessor) Confidence(probability, threshold float64) models.ConfidenceMetrics {
	return a.opts.Confidence.Compute(probability, threshold)
}

// Start запускает горутины для обработки проб
func (a *Assessor) Start(numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
}

// worker горутина для обработки проб
func (a *Assessor) worker() {
	defer a.wg.Done()
	for {
		select {
		case sample := <-a.samplesChan:
			result := a.assess(sample)
			select {
			case a.resultsChan <- result:
			default:
				// Канал результатов переполнен, пропускаем
			}
		case <-a.stopChan:
			return
		}
	}
}

// assess выполняет оценку одной пробы
func (a *Assessor) assess(s models.SampleResult) models.SampleAssessment {
	return a.assessWith(s, a.observe(s.Readings))
}

// assessWith оценивает пробу относительно заданной статистики окон
func (a *Assessor) assessWith(s models.SampleResult, baselines map[string]models.Baseline) models.SampleAssessment {
	violations := analytics.DetectViolationsWithBaselines(s.Readings, a.table, baselines)
	microbial := analytics.ScoreMicrobialRisk(violations, a.maxScore)
	confidence := a.Confidence(s.Probability, a.opts.DecisionThreshold)

	return models.SampleAssessment{
		ID:           uuid.NewString(),
		SampleID:     s.ID,
		AssessedAt:   a.opts.Now(),
		ModelVersion: s.ModelVersion,
		RiskLevel:    s.RiskLevel,
		Status:       analytics.MapStatus(s.RiskLevel),
		Microbial:    microbial,
		Confidence:   confidence,
	}
}

// observe возвращает статистику окон до добавления новых значений
// и затем добавляет значения пробы в окна
func (a *Assessor) observe(readings []models.ParameterReading) map[string]models.Baseline {
	a.mu.Lock()
	defer a.mu.Unlock()

	baselines := snapshot(a.windows)
	a.push(a.windows, readings)
	return baselines
}

func snapshot(windows map[string]*analytics.SlidingWindow) map[string]models.Baseline {
	baselines := make(map[string]models.Baseline, len(windows))
	for field, w := range windows {
		baselines[field] = w.Baseline()
	}
	return baselines
}

// push добавляет в окна первое присутствующее значение каждого параметра
func (a *Assessor) push(windows map[string]*analytics.SlidingWindow, readings []models.ParameterReading) {
	seen := make(map[string]bool, len(readings))
	for _, r := range readings {
		if r.Value == nil || math.IsNaN(*r.Value) || math.IsInf(*r.Value, 0) {
			continue
		}
		rule, ok := a.table.Lookup(r.Field)
		if !ok || seen[rule.Field] {
			continue
		}
		seen[rule.Field] = true
		windows[rule.Field].Add(*r.Value)
	}
}

// Submit отправляет пробу на асинхронную обработку
func (a *Assessor) Submit(s models.SampleResult) bool {
	select {
	case a.samplesChan <- s:
		return true
	default:
		return false
	}
}

// AssessSync синхронно оценивает пробу
func (a *Assessor) AssessSync(s models.SampleResult) models.SampleAssessment {
	return a.assess(s)
}

// AssessAll оценивает пробы параллельно, сохраняя порядок входа.
// Статистика окон для i-й пробы учитывает пробы 0..i-1 пакета, поэтому
// результат не зависит от числа воркеров. Окна оценщика сдвигаются
// только если оценен весь пакет
func (a *Assessor) AssessAll(ctx context.Context, samples []models.SampleResult, workers int) ([]models.SampleAssessment, error) {
	if workers <= 0 {
		workers = 1
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	windows := make(map[string]*analytics.SlidingWindow, len(a.windows))
	for field, w := range a.windows {
		windows[field] = w.Clone()
	}
	a.mu.RUnlock()

	baselines := make([]map[string]models.Baseline, len(samples))
	for i, s := range samples {
		baselines[i] = snapshot(windows)
		a.push(windows, s.Readings)
	}

	results := make([]models.SampleAssessment, len(samples))
	idx := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				results[i] = a.assessWith(samples[i], baselines[i])
			}
		}()
	}

	var err error
feed:
	for i := range samples {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case idx <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(idx)
	wg.Wait()

	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	for _, s := range samples {
		a.push(a.windows, s.Readings)
	}
	a.mu.Unlock()

	return results, nil
}

// Results возвращает канал результатов
func (a *Assessor) Results() <-chan models.SampleAssessment {
	return a.resultsChan
}

// Baselines возвращает текущую статистику окон по параметрам
func (a *Assessor) Baselines() map[string]models.Baseline {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]models.Baseline, len(a.windows))
	for field, w := range a.windows {
		out[field] = w.Baseline()
	}
	return out
}

// Stop останавливает воркеры и закрывает канал результатов
func (a *Assessor) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.wg.Wait()
		close(a.resultsChan)
	})
}
