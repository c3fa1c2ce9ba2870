// Package config loads the rgadiag settings from an optional YAML file
// and RGADIAG_* environment variables, in that order of precedence from
// low to high.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/524D/rgadiag/internal/analysis"
	"github.com/524D/rgadiag/internal/diagnosis"
	"github.com/524D/rgadiag/internal/semtracker"
)

// EnvPrefix is the prefix of all environment overrides
const EnvPrefix = "RGADIAG_"

// SEM history backends
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
	StoreRedis  = "redis"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("config: invalid")

// Log settings
type Log struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// SEM history settings
type SEM struct {
	Store      string `yaml:"store" validate:"oneof=memory badger redis"`
	BadgerPath string `yaml:"badgerPath" validate:"required_if=Store badger"`
	RedisURL   string `yaml:"redisURL" validate:"required_if=Store redis"`
	Key        string `yaml:"key" validate:"required"`
	Capacity   int    `yaml:"capacity" validate:"gte=5"`
}

// Config holds all settings
type Config struct {
	Level         string           `yaml:"level" validate:"omitempty,oneof=basic standard advanced precision"`
	Unit          string           `yaml:"unit" validate:"omitempty,oneof=mbar Pa Torr"`
	MinConfidence float64          `yaml:"minConfidence" validate:"gte=0,lte=1"`
	Workers       int              `yaml:"workers" validate:"gte=1,lte=256"`
	MetricsFile   string           `yaml:"metricsFile"`
	Log           Log              `yaml:"log"`
	SEM           SEM              `yaml:"sem"`
	Limits        []analysis.Limit `yaml:"limits" validate:"dive"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Level:         "standard",
		Unit:          "mbar",
		MinConfidence: diagnosis.DefaultMinConfidence,
		Workers:       4,
		Log:           Log{Level: "info"},
		SEM: SEM{
			Store:    StoreMemory,
			Key:      semtracker.HistoryKey,
			Capacity: semtracker.DefaultCapacity,
		},
	}
}

// Load reads path (skipped when empty), applies the environment and
// validates the result
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if err := Decode(f, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode reads YAML into cfg. Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// ApplyEnv overrides cfg with RGADIAG_* variables found by lookup
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("LEVEL", &cfg.Level)
	str("UNIT", &cfg.Unit)
	str("METRICS_FILE", &cfg.MetricsFile)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("SEM_STORE", &cfg.SEM.Store)
	str("SEM_KEY", &cfg.SEM.Key)
	str("BADGER_PATH", &cfg.SEM.BadgerPath)
	str("REDIS_URL", &cfg.SEM.RedisURL)

	if v, ok := lookup(EnvPrefix + "MIN_CONFIDENCE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: %sMIN_CONFIDENCE: %v", ErrInvalid, EnvPrefix, err)
		}
		cfg.MinConfidence = f
	}
	if v, ok := lookup(EnvPrefix + "WORKERS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sWORKERS: %v", ErrInvalid, EnvPrefix, err)
		}
		cfg.Workers = n
	}
	if v, ok := lookup(EnvPrefix + "LOG_JSON"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sLOG_JSON: %v", ErrInvalid, EnvPrefix, err)
		}
		cfg.Log.JSON = b
	}
	return nil
}

var validate = validator.New()

// Validate checks all fields
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
