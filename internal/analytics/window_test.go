package analytics

import (
	"math"
	"testing"
)

func TestSlidingWindow_Add(t *testing.T) {
	sw := NewSlidingWindow(5)

	values := []float64{10, 20, 30, 40, 50}
	for _, v := range values {
		sw.Add(v)
	}

	if sw.Count() != 5 {
		t.Errorf("Expected count 5, got %d", sw.Count())
	}

	expectedMean := 30.0
	if math.Abs(sw.Mean()-expectedMean) > 0.001 {
		t.Errorf("Expected mean %.2f, got %.2f", expectedMean, sw.Mean())
	}
}

func TestSlidingWindow_RollingBehavior(t *testing.T) {
	sw := NewSlidingWindow(3)

	sw.Add(10)
	sw.Add(20)
	sw.Add(30)

	if math.Abs(sw.Mean()-20.0) > 0.001 {
		t.Errorf("Expected mean 20, got %.2f", sw.Mean())
	}

	// Pushes out 10
	sw.Add(40)

	if math.Abs(sw.Mean()-30.0) > 0.001 {
		t.Errorf("Expected mean 30, got %.2f", sw.Mean())
	}
	if sw.Count() != 3 {
		t.Errorf("Expected count 3, got %d", sw.Count())
	}
}

func TestSlidingWindow_StdDev(t *testing.T) {
	sw := NewSlidingWindow(5)
	for i := 0; i < 5; i++ {
		sw.Add(7.2)
	}
	if sw.StdDev() > 1e-9 {
		t.Errorf("Expected stddev 0 for identical values, got %.6f", sw.StdDev())
	}

	sw2 := NewSlidingWindow(5)
	for _, v := range []float64{2, 4, 4, 4, 5} {
		sw2.Add(v)
	}
	// sample stddev of [2,4,4,4,5] = sqrt(1.2)
	if math.Abs(sw2.StdDev()-math.Sqrt(1.2)) > 0.001 {
		t.Errorf("Expected stddev %.3f, got %.3f", math.Sqrt(1.2), sw2.StdDev())
	}
}

func TestSlidingWindow_ZScore(t *testing.T) {
	sw := NewSlidingWindow(DefaultWindowSize)
	for i := 0; i < DefaultWindowSize; i++ {
		sw.Add(3.0)
	}
	if z := sw.ZScore(10); z != 0 {
		t.Errorf("Expected zero z-score with zero stddev, got %.2f", z)
	}

	sw2 := NewSlidingWindow(DefaultWindowSize)
	for i := 0; i < DefaultWindowSize; i++ {
		sw2.Add(float64(2 + i%4)) // 2..5
	}
	if z := sw2.ZScore(12); z < 3 {
		t.Errorf("Expected high z-score for outlier, got %.2f", z)
	}

	b := sw2.Baseline()
	if b.Count != DefaultWindowSize {
		t.Errorf("Expected baseline count %d, got %d", DefaultWindowSize, b.Count)
	}
}

func TestNewSlidingWindow_InvalidSize(t *testing.T) {
	sw := NewSlidingWindow(0)
	sw.Add(1)
	if sw.Count() != 1 {
		t.Errorf("Expected count 1, got %d", sw.Count())
	}
}

func BenchmarkSlidingWindowAdd(b *testing.B) {
	sw := NewSlidingWindow(DefaultWindowSize)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sw.Add(float64(i % 100))
	}
}
