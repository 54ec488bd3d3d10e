package analytics

import (
	"sort"
	"time"

	"water-risk-service/internal/models"
	"water-risk-service/internal/thresholds"
)

const (
	// TrendDays количество дней в гистограмме объема проб
	TrendDays = 7

	dayLayout = "2006-01-02"
)

// Aggregate считает сводную статистику по коллекции проб.
// Параметры группируются по именам правил table, синонимы сливаются;
// при nil используется таблица ВОЗ. Гистограмма строится за TrendDays
// календарных дней, заканчивая днем now в часовом поясе now
func Aggregate(samples []models.SampleResult, table *thresholds.Table, now time.Time) models.SummaryStats {
	if table == nil {
		table = thresholds.Default()
	}

	stats := models.SummaryStats{
		Total:        len(samples),
		Parameters:   make(map[string]models.ParameterStat),
		StatusCounts: make(map[models.SampleStatus]int),
		Daily:        dailyBuckets(now),
	}

	loc := now.Location()
	dayIndex := make(map[string]int, len(stats.Daily))
	for i, b := range stats.Daily {
		dayIndex[b.Day] = i
	}

	values := make(map[string][]float64)
	order := make([]string, 0)

	for _, s := range samples {
		if s.IsPotable {
			stats.PotableCount++
		}
		stats.StatusCounts[MapStatus(s.RiskLevel)]++

		if !s.CollectedAt.IsZero() {
			if i, ok := dayIndex[s.CollectedAt.In(loc).Format(dayLayout)]; ok {
				stats.Daily[i].Count++
			}
		}

		counted := make(map[string]bool, len(s.Readings))
		for _, r := range s.Readings {
			v, ok := presentValue(r.Value)
			if !ok {
				continue
			}
			key := table.Canonical(r.Field)
			if key == "" || counted[key] {
				continue
			}
			counted[key] = true
			if _, seen := values[key]; !seen {
				order = append(order, key)
			}
			values[key] = append(values[key], v)
		}
	}

	if stats.Total > 0 {
		stats.PotableRate = float64(stats.PotableCount) / float64(stats.Total)
	}

	for _, key := range order {
		stats.Parameters[key] = summarize(values[key])
	}

	return stats
}

// Median возвращает медиану; для пустого набора 0
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func summarize(values []float64) models.ParameterStat {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return models.ParameterStat{
		Count:   len(values),
		Average: sum / float64(len(values)),
		Median:  Median(values),
	}
}

func dailyBuckets(now time.Time) []models.DayBucket {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	buckets := make([]models.DayBucket, TrendDays)
	for i := 0; i < TrendDays; i++ {
		day := today.AddDate(0, 0, i-(TrendDays-1))
		buckets[i] = models.DayBucket{Day: day.Format(dayLayout)}
	}
	return buckets
}
