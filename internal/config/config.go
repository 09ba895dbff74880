package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training run. The network topology is fixed and
// deliberately absent.
type Config struct {
	SampleCount     int     `yaml:"sample_count"`
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	ValidationSplit float64 `yaml:"validation_split"`
	Seed            int64   `yaml:"seed"`
	SaveDir         string  `yaml:"save_dir"`
	ModelName       string  `yaml:"model_name"`
	LogEvery        int     `yaml:"log_every"`
}

// Overrides captures CLI supplied values. Zero values, and a negative ValidationSplit, leave
// the config untouched.
type Overrides struct {
	SampleCount     int
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Seed            int64
	SaveDir         string
	ModelName       string
	LogEvery        int
}

// Default returns the stock run: 50,000 samples, 10 epochs of 256-row batches, 10% held out,
// saved to saved_pong_ai/pong_model.
func Default() *Config {
	return &Config{
		SampleCount:     50000,
		Epochs:          10,
		BatchSize:       256,
		ValidationSplit: 0.1,
		SaveDir:         "saved_pong_ai",
		ModelName:       "pong_model",
		LogEvery:        50,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any set override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.SampleCount > 0 {
		c.SampleCount = o.SampleCount
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.ValidationSplit >= 0 {
		c.ValidationSplit = o.ValidationSplit
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.SaveDir != "" {
		c.SaveDir = o.SaveDir
	}
	if o.ModelName != "" {
		c.ModelName = o.ModelName
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.SampleCount <= 0 {
		return fmt.Errorf("sample_count must be > 0 (got %d)", c.SampleCount)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("validation_split must be in [0,1) (got %g)", c.ValidationSplit)
	}
	if c.SaveDir == "" {
		return errors.New("save_dir must be set")
	}
	if c.ModelName == "" || strings.ContainsAny(c.ModelName, `/\`) {
		return fmt.Errorf("model_name must be a bare file name (got %q)", c.ModelName)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	return nil
}
