// Package ingest нормализует слабо типизированные JSON-данные от сервиса
// предсказаний и распознавания бланков в строгие внутренние типы.
// После нормализации отсутствующие значения представлены только через nil
package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"water-risk-service/internal/analytics"
	"water-risk-service/internal/models"
)

// ErrInvalidPayload возвращается, если конверт запроса не соответствует схеме
var ErrInvalidPayload = errors.New("invalid sample payload")

//go:embed sample.schema.json
var sampleSchemaJSON string

var sampleSchema = jsonschema.MustCompileString("sample.schema.json", sampleSchemaJSON)

// PredictionPayload ответ внешнего сервиса предсказаний
type PredictionPayload struct {
	Probability  any    `json:"probability"`
	IsPotable    *bool  `json:"is_potable"`
	RiskLevel    string `json:"risk_level"`
	ModelVersion string `json:"model_version"`
}

// ReadingPayload одно показание в виде списка
type ReadingPayload struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Unit  string `json:"unit"`
}

// SamplePayload проба в том виде, в каком она приходит извне
type SamplePayload struct {
	ID          any                `json:"id"`
	CollectedAt string             `json:"collected_at"`
	Prediction  *PredictionPayload `json:"prediction"`
	Parameters  map[string]any     `json:"parameters"`
	Readings    []ReadingPayload   `json:"readings"`
}

type batchPayload struct {
	Samples []json.RawMessage `json:"samples"`
}

// Decoder разбирает и нормализует пробы
type Decoder struct {
	decisionThreshold float64
}

// NewDecoder создает декодер; порог используется, когда сервис
// предсказаний не передал признак пригодности
func NewDecoder(decisionThreshold float64) *Decoder {
	if math.IsNaN(decisionThreshold) || decisionThreshold <= 0 || decisionThreshold >= 1 {
		decisionThreshold = analytics.DefaultDecisionThreshold
	}
	return &Decoder{decisionThreshold: decisionThreshold}
}

// DecodeSample разбирает одну пробу. Числа читаются как json.Number,
// поэтому длинные числовые идентификаторы не теряют точность
func (d *Decoder) DecodeSample(data []byte) (models.SampleResult, error) {
	var instance any
	if err := decodeJSON(data, &instance); err != nil {
		return models.SampleResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := sampleSchema.Validate(instance); err != nil {
		return models.SampleResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var p SamplePayload
	if err := decodeJSON(data, &p); err != nil {
		return models.SampleResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return d.Normalize(p), nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}

// DecodeBatch разбирает пакет вида {"samples": [...]}
func (d *Decoder) DecodeBatch(data []byte) ([]models.SampleResult, error) {
	var batch batchPayload
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	out := make([]models.SampleResult, 0, len(batch.Samples))
	for i, raw := range batch.Samples {
		s, err := d.DecodeSample(raw)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Normalize переводит внешнюю пробу во внутреннее представление.
// Нечисловые значения считаются отсутствующими, отсутствующая вероятность равна 0
func (d *Decoder) Normalize(p SamplePayload) models.SampleResult {
	s := models.SampleResult{
		ID:          normalizeID(p.ID),
		CollectedAt: parseTime(p.CollectedAt),
		Readings:    make([]models.ParameterReading, 0, len(p.Readings)+len(p.Parameters)),
	}

	if p.Prediction != nil {
		if prob := ParseNumber(p.Prediction.Probability); prob != nil {
			s.Probability = math.Max(0, math.Min(1, *prob))
		}
		s.RiskLevel = strings.TrimSpace(p.Prediction.RiskLevel)
		s.ModelVersion = p.Prediction.ModelVersion
		if p.Prediction.IsPotable != nil {
			s.IsPotable = *p.Prediction.IsPotable
		} else {
			s.IsPotable = s.Probability >= d.decisionThreshold
		}
	}

	for _, r := range p.Readings {
		s.Readings = append(s.Readings, models.ParameterReading{
			Field: r.Field,
			Value: ParseNumber(r.Value),
			Unit:  r.Unit,
		})
	}

	fields := make([]string, 0, len(p.Parameters))
	for field := range p.Parameters {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		s.Readings = append(s.Readings, models.ParameterReading{
			Field: field,
			Value: ParseNumber(p.Parameters[field]),
		})
	}

	return s
}

// ParseNumber извлекает конечное число из значения JSON.
// Числовые строки (результат OCR) принимаются, остальное дает nil
func ParseNumber(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func normalizeID(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
