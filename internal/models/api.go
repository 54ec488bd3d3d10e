package models

import "time"

// SampleAssessment полный результат оценки одной пробы
type SampleAssessment struct {
	ID           string              `json:"id"`
	SampleID     string              `json:"sample_id,omitempty"`
	AssessedAt   time.Time           `json:"assessed_at"`
	ModelVersion string              `json:"model_version,omitempty"`
	RiskLevel    string              `json:"risk_level"`
	Status       SampleStatus        `json:"status"`
	Microbial    MicrobialAssessment `json:"microbial"`
	Confidence   ConfidenceMetrics   `json:"confidence"`
}

// BatchResponse ответ на пакетную оценку
type BatchResponse struct {
	Processed int                `json:"processed"`
	Alerts    int                `json:"alerts"`
	Results   []SampleAssessment `json:"results"`
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Cache     string    `json:"cache"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	TotalAssessments int64                  `json:"total_assessments"`
	StatusCounts     map[SampleStatus]int64 `json:"status_counts"`
	TierCounts       map[RiskTier]int64     `json:"tier_counts"`
	Baselines        map[string]Baseline    `json:"baselines"`
}

// Baseline историческое среднее и стандартное отклонение параметра
type Baseline struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}
