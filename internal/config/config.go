// Package config loads runtime settings from flags, environment variables,
// and an optional YAML config file, and reads character mapping files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/pipeline"
	"github.com/rcliao/sprite-memory/internal/store"
)

// EnvPrefix prefixes every environment variable, e.g. SPRITE_MEMORY_DB.
const EnvPrefix = "SPRITE_MEMORY"

// Keys.
const (
	KeyConfig       = "config"
	KeyDB           = "db"
	KeyWeights      = "weights"
	KeyListen       = "listen"
	KeyLearningRate = "learning_rate"
	KeyDecayRate    = "decay_rate"
	KeyDimensions   = "dimensions"
	KeyLogLevel     = "log_level"
	KeyCharacters   = "characters"
	KeyBaseScore    = "base_score"
	KeyConcurrency  = "concurrency"
	KeyGenerator    = "generator"
	KeyGeneratorURL = "generator_url"
	KeyGeneratorKey = "generator_key"
)

// Config holds resolved settings.
type Config struct {
	DB           string   `mapstructure:"db"`
	Weights      string   `mapstructure:"weights"`
	Listen       string   `mapstructure:"listen"`
	LearningRate float64  `mapstructure:"learning_rate"`
	DecayRate    float64  `mapstructure:"decay_rate"`
	Dimensions   []string `mapstructure:"dimensions"`
	LogLevel     string   `mapstructure:"log_level"`
	Characters   string   `mapstructure:"characters"`
	BaseScore    float64  `mapstructure:"base_score"`
	Concurrency  int      `mapstructure:"concurrency"`
	Generator    string   `mapstructure:"generator"`
	GeneratorURL string   `mapstructure:"generator_url"`
	GeneratorKey string   `mapstructure:"generator_key"`
}

// DataDir returns the default directory for the database and weights.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sprite-memory")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()

	dir := DataDir()
	v.SetDefault(KeyDB, filepath.Join(dir, "sprites.db"))
	v.SetDefault(KeyWeights, filepath.Join(dir, "weights.json"))
	v.SetDefault(KeyListen, ":8080")
	v.SetDefault(KeyLearningRate, learn.DefaultLearningRate)
	v.SetDefault(KeyDecayRate, learn.DefaultDecayRate)
	v.SetDefault(KeyDimensions, store.DefaultDimensions)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyBaseScore, pipeline.DefaultBaseScore)
	v.SetDefault(KeyConcurrency, pipeline.DefaultConcurrency)
	v.SetDefault(KeyGenerator, "")
	v.SetDefault(KeyGeneratorURL, "")
	v.SetDefault(KeyGeneratorKey, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file named by the "config" key, if any, and
// returns the resolved settings. Flags and environment variables override
// the file.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	// Comma-separated values arrive as one string from the environment.
	cfg.Dimensions = splitList(strings.Join(cfg.Dimensions, ","))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if err := learn.CheckRates(c.LearningRate, c.DecayRate); err != nil {
		errs = append(errs, err)
	}
	if c.BaseScore < 0 || c.BaseScore > 1 {
		errs = append(errs, fmt.Errorf("base_score must be in [0,1], got %g", c.BaseScore))
	}
	switch c.Generator {
	case "", "template", "http":
	default:
		errs = append(errs, fmt.Errorf("generator must be template or http, got %q", c.Generator))
	}
	if c.Generator != "" && c.GeneratorURL == "" {
		errs = append(errs, fmt.Errorf("generator %s needs generator_url", c.Generator))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	return errors.Join(errs...)
}

// Level returns the configured log level, Info when unrecognised.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
