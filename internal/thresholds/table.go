// Package thresholds содержит справочную таблицу допустимых диапазонов
// параметров качества воды. Таблица загружается один раз при старте
// и после этого не изменяется
package thresholds

import (
	"errors"
	"fmt"
	"strings"

	"water-risk-service/internal/models"
)

const (
	// MinSeverityWeight минимальный вес правила
	MinSeverityWeight = 1
	// MaxSeverityWeight максимальный вес правила
	MaxSeverityWeight = 3
)

// ErrInvalidTable возвращается при нарушении инвариантов таблицы
var ErrInvalidTable = errors.New("invalid threshold table")

// Table неизменяемый набор правил в каноническом порядке
type Table struct {
	rules []models.ThresholdRule
	index map[string]int
	max   int
}

// NormalizeField приводит имя параметра к ключу таблицы:
// "Organic Carbon" и "organic-carbon" дают "organic_carbon"
func NormalizeField(field string) string {
	key := strings.ToLower(strings.TrimSpace(field))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(key)
}

// New проверяет правила и строит таблицу. Порядок правил становится
// каноническим порядком вывода нарушений
func New(rules []models.ThresholdRule) (*Table, error) {
	t := &Table{
		rules: make([]models.ThresholdRule, 0, len(rules)),
		index: make(map[string]int, len(rules)),
	}

	for i, r := range rules {
		key := NormalizeField(r.Field)
		if key == "" {
			return nil, fmt.Errorf("%w: rule %d has empty field", ErrInvalidTable, i)
		}
		if r.SeverityWeight < MinSeverityWeight || r.SeverityWeight > MaxSeverityWeight {
			return nil, fmt.Errorf("%w: %s weight %d outside [%d, %d]",
				ErrInvalidTable, key, r.SeverityWeight, MinSeverityWeight, MaxSeverityWeight)
		}
		if r.Range.Low == nil && r.Range.High == nil {
			return nil, fmt.Errorf("%w: %s has no bounds", ErrInvalidTable, key)
		}
		if r.Range.Low != nil && r.Range.High != nil && *r.Range.Low > *r.Range.High {
			return nil, fmt.Errorf("%w: %s low bound above high bound", ErrInvalidTable, key)
		}

		r = cloneRule(r)
		r.Field = key
		pos := len(t.rules)
		for _, name := range append([]string{key}, r.Aliases...) {
			alias := NormalizeField(name)
			if alias == "" {
				continue
			}
			if _, dup := t.index[alias]; dup {
				return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidTable, alias)
			}
			t.index[alias] = pos
		}

		t.rules = append(t.rules, r)
		t.max += r.SeverityWeight
	}

	return t, nil
}

// Lookup ищет правило по имени параметра без учета регистра
func (t *Table) Lookup(field string) (models.ThresholdRule, bool) {
	pos, ok := t.Position(field)
	if !ok {
		return models.ThresholdRule{}, false
	}
	return t.rules[pos], true
}

// Canonical возвращает имя правила для параметра с учетом синонимов.
// Для неизвестного параметра возвращается нормализованное имя
func (t *Table) Canonical(field string) string {
	if rule, ok := t.Lookup(field); ok {
		return rule.Field
	}
	return NormalizeField(field)
}

// Position возвращает место правила в каноническом порядке
func (t *Table) Position(field string) (int, bool) {
	if t == nil {
		return 0, false
	}
	pos, ok := t.index[NormalizeField(field)]
	return pos, ok
}

// Rules возвращает копию правил в каноническом порядке
func (t *Table) Rules() []models.ThresholdRule {
	if t == nil {
		return nil
	}
	out := make([]models.ThresholdRule, len(t.rules))
	for i, r := range t.rules {
		out[i] = cloneRule(r)
	}
	return out
}

// Len количество правил
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// MaxScore сумма весов всех правил
func (t *Table) MaxScore() int {
	if t == nil {
		return 0
	}
	return t.max
}

func cloneRule(r models.ThresholdRule) models.ThresholdRule {
	r.Aliases = append([]string(nil), r.Aliases...)
	r.AssociatedBacteria = append([]string(nil), r.AssociatedBacteria...)
	if r.Range.Low != nil {
		low := *r.Range.Low
		r.Range.Low = &low
	}
	if r.Range.High != nil {
		high := *r.Range.High
		r.Range.High = &high
	}
	return r
}
