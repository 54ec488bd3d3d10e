package thresholds

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"water-risk-service/internal/models"
)

//go:embed who.toml
var whoTable []byte

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// tableFile формат файла таблицы
type tableFile struct {
	Rules []models.ThresholdRule `toml:"rule" yaml:"rules"`
}

// Default возвращает встроенную таблицу порогов WHO
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := ParseTOML(whoTable)
		if err != nil {
			panic(fmt.Sprintf("embedded threshold table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// ParseTOML разбирает таблицу в формате TOML
func ParseTOML(data []byte) (*Table, error) {
	var f tableFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("failed to decode toml table: %w", err)
	}
	return New(f.Rules)
}

// ParseYAML разбирает таблицу в формате YAML
func ParseYAML(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode yaml table: %w", err)
	}
	return New(f.Rules)
}

// LoadFile загружает таблицу из файла; формат определяется по расширению.
// Пустой путь означает встроенную таблицу
func LoadFile(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read threshold table: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return ParseTOML(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("%w: unsupported table format %q", ErrInvalidTable, filepath.Ext(path))
	}
}
