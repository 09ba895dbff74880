package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "PONGAI_"

// LoadDotEnv looks for a .env file in dir and up to four parents and loads the first one
// found. Variables already present in the environment win.
func LoadDotEnv(dir string) error {
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return godotenv.Load(envPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil
}

// ApplyEnv updates cfg from PONGAI_* variables.
func (c *Config) ApplyEnv() error {
	ints := []struct {
		key string
		dst *int
	}{
		{"SAMPLE_COUNT", &c.SampleCount},
		{"EPOCHS", &c.Epochs},
		{"BATCH_SIZE", &c.BatchSize},
		{"LOG_EVERY", &c.LogEvery},
	}
	for _, e := range ints {
		v, ok := os.LookupEnv(EnvPrefix + e.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, e.key, err)
		}
		*e.dst = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "VALIDATION_SPLIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env %sVALIDATION_SPLIT: %w", EnvPrefix, err)
		}
		c.ValidationSplit = f
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("env %sSEED: %w", EnvPrefix, err)
		}
		c.Seed = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SAVE_DIR"); ok {
		c.SaveDir = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "MODEL_NAME"); ok {
		c.ModelName = v
	}
	return nil
}
