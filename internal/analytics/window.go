package analytics

import (
	"math"

	"water-risk-service/internal/models"
)

// DefaultWindowSize размер окна исторических значений параметра
const DefaultWindowSize = 50

// SlidingWindow реализует скользящее окно для хранения значений
type SlidingWindow struct {
	values []float64
	size   int
	index  int
	count  int
	sum    float64
	sumSq  float64
}

// NewSlidingWindow создает новое скользящее окно заданного размера
func NewSlidingWindow(size int) *SlidingWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &SlidingWindow{
		values: make([]float64, size),
		size:   size,
	}
}

// Add добавляет новое значение в окно
func (sw *SlidingWindow) Add(value float64) {
	if sw.count >= sw.size {
		oldValue := sw.values[sw.index]
		sw.sum -= oldValue
		sw.sumSq -= oldValue * oldValue
	} else {
		sw.count++
	}

	sw.values[sw.index] = value
	sw.sum += value
	sw.sumSq += value * value

	sw.index = (sw.index + 1) % sw.size
}

// Clone возвращает независимую копию окна
func (sw *SlidingWindow) Clone() *SlidingWindow {
	c := *sw
	c.values = append([]float64(nil), sw.values...)
	return &c
}

// Mean возвращает среднее значение
func (sw *SlidingWindow) Mean() float64 {
	if sw.count == 0 {
		return 0
	}
	return sw.sum / float64(sw.count)
}

// StdDev возвращает выборочное стандартное отклонение
func (sw *SlidingWindow) StdDev() float64 {
	if sw.count < 2 {
		return 0
	}
	n := float64(sw.count)
	variance := (sw.sumSq - (sw.sum*sw.sum)/n) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// ZScore вычисляет z-score для заданного значения
func (sw *SlidingWindow) ZScore(value float64) float64 {
	return zScore(value, sw.Baseline())
}

// Count возвращает количество элементов в окне
func (sw *SlidingWindow) Count() int {
	return sw.count
}

// Baseline снимок статистики окна
func (sw *SlidingWindow) Baseline() models.Baseline {
	return models.Baseline{
		Mean:   sw.Mean(),
		StdDev: sw.StdDev(),
		Count:  sw.count,
	}
}

func zScore(value float64, b models.Baseline) float64 {
	if b.StdDev <= 0 {
		return 0
	}
	return (value - b.Mean) / b.StdDev
}
