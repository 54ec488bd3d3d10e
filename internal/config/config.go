// Package config загружает конфигурацию сервиса из переменных окружения
// и необязательного файла
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig некорректная конфигурация
var ErrInvalidConfig = errors.New("invalid config")

// ServerConfig настройки HTTP сервера
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// RedisConfig настройки Redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Retries  int    `mapstructure:"retries"`
}

// DatabaseConfig настройки PostgreSQL
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// GetDSN возвращает строку подключения к базе
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LogConfig настройки логирования
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AssessmentConfig параметры расчета риска
type AssessmentConfig struct {
	ThresholdsFile    string  `mapstructure:"thresholds_file"`
	DecisionThreshold float64 `mapstructure:"decision_threshold"`
	StabilityBuffer   float64 `mapstructure:"stability_buffer"`
	MaxScore          int     `mapstructure:"max_score"`
	BaselineWindow    int     `mapstructure:"baseline_window"`
}

// Config содержит конфигурацию сервиса
type Config struct {
	Server      ServerConfig     `mapstructure:"server"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Log         LogConfig        `mapstructure:"log"`
	Assessment  AssessmentConfig `mapstructure:"assessment"`
	WorkerCount int              `mapstructure:"worker_count"`
	BufferSize  int              `mapstructure:"buffer_size"`
}

// плоские переменные окружения, которые не следуют схеме section_key
var envAliases = map[string]string{
	"server.addr":                   "SERVER_ADDR",
	"assessment.thresholds_file":    "THRESHOLDS_FILE",
	"assessment.decision_threshold": "DECISION_THRESHOLD",
	"assessment.stability_buffer":   "STABILITY_BUFFER",
	"assessment.max_score":          "MAX_SCORE",
	"assessment.baseline_window":    "BASELINE_WINDOW",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.retries", 5)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "water")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_idle", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("assessment.thresholds_file", "")
	v.SetDefault("assessment.decision_threshold", 0.5)
	v.SetDefault("assessment.stability_buffer", 0.15)
	v.SetDefault("assessment.max_score", 0)
	v.SetDefault("assessment.baseline_window", 50)

	v.SetDefault("worker_count", runtime.NumCPU())
	v.SetDefault("buffer_size", 10000)
}

// Load читает конфигурацию. Файл из CONFIG_FILE необязателен,
// переменные окружения имеют приоритет над ним
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server address is empty", ErrInvalidConfig)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer_size must be positive, got %d", ErrInvalidConfig, c.BufferSize)
	}
	if t := c.Assessment.DecisionThreshold; t <= 0 || t >= 1 {
		return fmt.Errorf("%w: decision_threshold must be in (0, 1), got %v", ErrInvalidConfig, t)
	}
	if c.Assessment.StabilityBuffer <= 0 {
		return fmt.Errorf("%w: stability_buffer must be positive, got %v", ErrInvalidConfig, c.Assessment.StabilityBuffer)
	}
	if c.Assessment.MaxScore < 0 {
		return fmt.Errorf("%w: max_score must not be negative, got %d", ErrInvalidConfig, c.Assessment.MaxScore)
	}
	if c.Assessment.BaselineWindow <= 0 {
		return fmt.Errorf("%w: baseline_window must be positive, got %d", ErrInvalidConfig, c.Assessment.BaselineWindow)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}
