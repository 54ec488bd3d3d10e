package analytics

import (
	"sort"

	"water-risk-service/internal/models"
)

const (
	// DefaultMaxScore максимальный балл (сумма весов таблицы WHO)
	DefaultMaxScore = 14
	// MediumRiskRatio доля от максимума, начиная с которой риск средний
	MediumRiskRatio = 0.2
	// HighRiskRatio доля от максимума, начиная с которой риск высокий
	HighRiskRatio = 0.4
)

// ScoreMicrobialRisk суммирует веса нарушений и определяет уровень риска.
// maxScore <= 0 заменяется на DefaultMaxScore
func ScoreMicrobialRisk(violations []models.Violation, maxScore int) models.MicrobialAssessment {
	if maxScore <= 0 {
		maxScore = DefaultMaxScore
	}

	score := 0
	for _, v := range violations {
		score += v.Rule.SeverityWeight
	}
	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}

	index, organisms := bacteriaIndex(violations)

	out := models.MicrobialAssessment{
		RiskLevel:        RiskTierFor(score, maxScore),
		Score:            score,
		MaxScore:         maxScore,
		Clean:            len(violations) == 0,
		Violations:       append([]models.Violation{}, violations...),
		BacteriaIndex:    index,
		PossibleBacteria: organisms,
	}
	return out
}

// RiskTierFor переводит балл в уровень риска по доле от максимума
func RiskTierFor(score, maxScore int) models.RiskTier {
	if maxScore <= 0 {
		maxScore = DefaultMaxScore
	}
	ratio := float64(score) / float64(maxScore)
	switch {
	case ratio < MediumRiskRatio:
		return models.RiskLow
	case ratio < HighRiskRatio:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

// bacteriaIndex строит индекс организм -> параметры, упорядоченный
// по числу подтверждающих параметров, при равенстве по первому появлению
func bacteriaIndex(violations []models.Violation) ([]models.BacteriaEvidence, []string) {
	index := make([]models.BacteriaEvidence, 0)
	organisms := make([]string, 0)
	pos := make(map[string]int)

	for _, v := range violations {
		for _, organism := range v.Rule.AssociatedBacteria {
			i, ok := pos[organism]
			if !ok {
				i = len(index)
				pos[organism] = i
				index = append(index, models.BacteriaEvidence{Organism: organism})
				organisms = append(organisms, organism)
			}
			if !containsString(index[i].Fields, v.Field) {
				index[i].Fields = append(index[i].Fields, v.Field)
			}
		}
	}

	sort.SliceStable(index, func(i, j int) bool {
		return len(index[i].Fields) > len(index[j].Fields)
	})
	return index, organisms
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
