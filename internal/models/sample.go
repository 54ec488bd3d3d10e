// Package models содержит структуры данных для оценки качества воды:
// показания параметров, правила порогов, нарушения и производные метрики
package models

import "time"

// ParameterReading одно измерение параметра пробы (ph, turbidity, ...)
// Value == nil означает, что значение отсутствует или не распознано
type ParameterReading struct {
	Field string   `json:"field"`
	Value *float64 `json:"value"`
	Unit  string   `json:"unit,omitempty"`
}

// Range допустимый диапазон значения, границы включительные.
// Отсутствующая граница означает одностороннее правило
type Range struct {
	Low  *float64 `json:"low,omitempty" toml:"low" yaml:"low"`
	High *float64 `json:"high,omitempty" toml:"high" yaml:"high"`
}

// Contains проверяет, попадает ли значение в диапазон
func (r Range) Contains(v float64) bool {
	if r.Low != nil && v < *r.Low {
		return false
	}
	if r.High != nil && v > *r.High {
		return false
	}
	return true
}

// ThresholdRule справочное правило для одного параметра
type ThresholdRule struct {
	Field              string   `json:"field" toml:"field" yaml:"field"`
	Label              string   `json:"label" toml:"label" yaml:"label"`
	Aliases            []string `json:"aliases,omitempty" toml:"aliases" yaml:"aliases"`
	Range              Range    `json:"recommended_range" toml:"range" yaml:"range"`
	SeverityWeight     int      `json:"severity_weight" toml:"weight" yaml:"weight"`
	AssociatedBacteria []string `json:"associated_bacteria" toml:"bacteria" yaml:"bacteria"`
	HealthRisk         string   `json:"health_risk" toml:"health_risk" yaml:"health_risk"`
	BiofilmNote        string   `json:"biofilm_note,omitempty" toml:"biofilm" yaml:"biofilm"`
	Unit               string   `json:"unit,omitempty" toml:"unit" yaml:"unit"`
}

// Violation выход значения параметра за допустимый диапазон
type Violation struct {
	Field         string        `json:"field"`
	ObservedValue float64       `json:"observed_value"`
	Rule          ThresholdRule `json:"rule"`
	ZScore        *float64      `json:"z_score,omitempty"`
}

// RiskTier уровень микробиологического риска
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// BacteriaEvidence организм и параметры, которые на него указывают
type BacteriaEvidence struct {
	Organism string   `json:"organism"`
	Fields   []string `json:"fields"`
}

// MicrobialAssessment результат оценки микробиологического риска
type MicrobialAssessment struct {
	RiskLevel        RiskTier           `json:"risk_level"`
	Score            int                `json:"score"`
	MaxScore         int                `json:"max_score"`
	Clean            bool               `json:"clean"`
	Violations       []Violation        `json:"violations"`
	BacteriaIndex    []BacteriaEvidence `json:"bacteria_index"`
	PossibleBacteria []string           `json:"possible_bacteria"`
}

// Verdict качественная оценка надежности предсказания
type Verdict string

const (
	VerdictStrong     Verdict = "strong"
	VerdictModerate   Verdict = "moderate"
	VerdictBorderline Verdict = "borderline"
	VerdictWeak       Verdict = "weak"
)

var verdictMessages = map[Verdict]string{
	VerdictStrong:     "Strong prediction, stable margin.",
	VerdictModerate:   "Moderate prediction, monitor sensitivity.",
	VerdictBorderline: "Borderline, small changes could flip the outcome.",
	VerdictWeak:       "Weak signal, additional data recommended.",
}

// Message возвращает текст вердикта для отображения
func (v Verdict) Message() string {
	return verdictMessages[v]
}

// ConfidenceMetrics метрики уверенности для пары (вероятность, порог)
type ConfidenceMetrics struct {
	Probability    float64 `json:"probability"`
	Threshold      float64 `json:"threshold"`
	Certainty      float64 `json:"certainty"`
	Margin         float64 `json:"margin"`
	SignalStrength float64 `json:"signal_strength"`
	Stability      float64 `json:"stability"`
	Verdict        Verdict `json:"verdict"`
	VerdictMessage string  `json:"verdict_message"`
}

// SampleStatus операционный статус пробы для списков
type SampleStatus string

const (
	StatusCleared SampleStatus = "Cleared"
	StatusReview  SampleStatus = "Review"
	StatusAlert   SampleStatus = "Alert"
)

// SampleResult проба после нормализации на границе системы
type SampleResult struct {
	ID           string             `json:"id,omitempty"`
	CollectedAt  time.Time          `json:"collected_at"`
	Probability  float64            `json:"probability"`
	IsPotable    bool               `json:"is_potable"`
	RiskLevel    string             `json:"risk_level"`
	ModelVersion string             `json:"model_version,omitempty"`
	Readings     []ParameterReading `json:"readings"`
}

// ParameterStat среднее и медиана параметра по выборке
type ParameterStat struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
}

// DayBucket количество проб за календарный день
type DayBucket struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// SummaryStats сводная статистика по коллекции проб
type SummaryStats struct {
	Total        int                      `json:"total"`
	PotableCount int                      `json:"potable_count"`
	PotableRate  float64                  `json:"potable_rate"`
	Parameters   map[string]ParameterStat `json:"parameters"`
	StatusCounts map[SampleStatus]int     `json:"status_counts"`
	Daily        []DayBucket              `json:"daily"`
}
