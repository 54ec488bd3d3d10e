// Package analytics реализует расчеты оценки риска пробы воды:
// поиск нарушений порогов, микробиологический балл, метрики уверенности
// предсказания, статус пробы и сводную статистику.
// Все функции чистые: без ввода-вывода и общего изменяемого состояния
package analytics

import (
	"math"
	"sort"

	"water-risk-service/internal/models"
	"water-risk-service/internal/thresholds"
)

// DetectViolations сравнивает показания с таблицей порогов.
// Отсутствующие значения и неизвестные параметры пропускаются
func DetectViolations(readings []models.ParameterReading, table *thresholds.Table) []models.Violation {
	return DetectViolationsWithBaselines(readings, table, nil)
}

// DetectViolationsWithBaselines то же, что DetectViolations, но заполняет
// z-score нарушения, если для параметра известна историческая статистика
func DetectViolationsWithBaselines(
	readings []models.ParameterReading,
	table *thresholds.Table,
	baselines map[string]models.Baseline,
) []models.Violation {
	type hit struct {
		pos int
		v   models.Violation
	}

	hits := make([]hit, 0, len(readings))
	seen := make(map[int]bool, len(readings))

	for _, r := range readings {
		value, ok := presentValue(r.Value)
		if !ok {
			continue
		}
		pos, ok := table.Position(r.Field)
		if !ok || seen[pos] {
			continue
		}
		// Первое присутствующее значение параметра считается основным
		seen[pos] = true

		rule, _ := table.Lookup(r.Field)
		if rule.Range.Contains(value) {
			continue
		}

		v := models.Violation{
			Field:         rule.Field,
			ObservedValue: value,
			Rule:          rule,
		}
		if b, ok := baselines[rule.Field]; ok && b.StdDev > 0 {
			z := zScore(value, b)
			v.ZScore = &z
		}
		hits = append(hits, hit{pos: pos, v: v})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]models.Violation, len(hits))
	for i, h := range hits {
		out[i] = h.v
	}
	return out
}

// NumericCount количество показаний с пригодным числовым значением
func NumericCount(readings []models.ParameterReading) int {
	n := 0
	for _, r := range readings {
		if _, ok := presentValue(r.Value); ok {
			n++
		}
	}
	return n
}

func presentValue(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
