package analytics

import (
	"strings"

	"water-risk-service/internal/models"
)

// statusByRisk таблица соответствия метки риска и статуса пробы
var statusByRisk = map[string]models.SampleStatus{
	"safe":       models.StatusCleared,
	"borderline": models.StatusCleared,
	"watch":      models.StatusReview,
	"unsafe":     models.StatusAlert,
}

// MapStatus переводит метку риска в статус. Неизвестная метка требует
// ручной проверки и никогда не дает Cleared
func MapStatus(riskLevel string) models.SampleStatus {
	if status, ok := statusByRisk[strings.ToLower(strings.TrimSpace(riskLevel))]; ok {
		return status
	}
	return models.StatusReview
}
