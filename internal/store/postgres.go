// Package store читает исторические пробы из PostgreSQL и записывает
// обратно рассчитанный уровень микробиологического риска
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"water-risk-service/internal/config"
	"water-risk-service/internal/models"
)

// SampleColumns колонки параметров таблицы water_potability
var SampleColumns = []string{
	"ph", "hardness", "solids", "chloramines", "sulfate",
	"conductivity", "organic_carbon", "trihalomethanes", "turbidity",
}

const (
	fetchPageQuery = `SELECT id, ph, hardness, solids, chloramines, sulfate, conductivity,
		organic_carbon, trihalomethanes, turbidity
		FROM water_potability ORDER BY id LIMIT $1 OFFSET $2`

	updateRiskQuery = `UPDATE water_potability SET microbial_risk = $1 WHERE id = $2`
)

// Open создает подключение к PostgreSQL
func Open(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// SampleRepository доступ к таблице проб
type SampleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSampleRepository создает репозиторий
func NewSampleRepository(db *sql.DB, logger *zap.Logger) *SampleRepository {
	return &SampleRepository{db: db, logger: logger}
}

// FetchPage возвращает страницу проб, упорядоченных по id.
// NULL в колонке параметра означает отсутствующее значение.
// Предсказание модели в таблице не хранится, поля прогноза остаются нулевыми
func (r *SampleRepository) FetchPage(ctx context.Context, offset, limit int) ([]models.SampleResult, error) {
	rows, err := r.db.QueryContext(ctx, fetchPageQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []models.SampleResult
	for rows.Next() {
		var (
			id     int64
			values = make([]sql.NullFloat64, len(SampleColumns))
		)
		dest := make([]any, 0, len(values)+1)
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}

		s := models.SampleResult{
			ID:       strconv.FormatInt(id, 10),
			Readings: make([]models.ParameterReading, 0, len(SampleColumns)),
		}
		for i, v := range values {
			if !v.Valid {
				continue
			}
			value := v.Float64
			s.Readings = append(s.Readings, models.ParameterReading{Field: SampleColumns[i], Value: &value})
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}

	r.logger.Debug("Fetched samples page",
		zap.Int("offset", offset),
		zap.Int("limit", limit),
		zap.Int("count", len(samples)),
	)
	return samples, nil
}

// UpdateMicrobialRisk записывает уровень риска для пробы
func (r *SampleRepository) UpdateMicrobialRisk(ctx context.Context, id string, tier models.RiskTier) error {
	res, err := r.db.ExecContext(ctx, updateRiskQuery, string(tier), id)
	if err != nil {
		return fmt.Errorf("failed to update sample %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update sample %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("sample %s: %w", id, sql.ErrNoRows)
	}
	return nil
}
