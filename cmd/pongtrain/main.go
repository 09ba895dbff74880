package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/klauspost/cpuid/v2"

	"pongai/internal/config"
	"pongai/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	samples := flag.Int("samples", 0, "Number of generated samples")
	epochs := flag.Int("epochs", 0, "Number of passes over the training rows")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	validationSplit := flag.Float64("validation-split", -1, "Fraction of rows held out for validation")
	seed := flag.Int64("seed", 0, "PRNG seed (0 picks one)")
	saveDir := flag.String("save-dir", "", "Model output directory")
	modelName := flag.String("model-name", "", "Model file name prefix")
	logEvery := flag.Int("log-every", 0, "Log every N steps at -v=1")
	resume := flag.Bool("resume", false, "Continue from the model already in the save dir")

	_ = flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			glog.Exitf("failed to load config: %v", err)
		}
	}

	if wd, err := os.Getwd(); err == nil {
		if err := config.LoadDotEnv(wd); err != nil {
			glog.Exitf("failed to load .env: %v", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		glog.Exitf("invalid environment: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		SampleCount:     *samples,
		Epochs:          *epochs,
		BatchSize:       *batchSize,
		ValidationSplit: *validationSplit,
		Seed:            *seed,
		SaveDir:         *saveDir,
		ModelName:       *modelName,
		LogEvery:        *logEvery,
	})

	if err := cfg.Validate(); err != nil {
		glog.Exitf("invalid config: %v", err)
	}

	glog.V(1).Infof("cpu=%q cores=%d avx2=%t", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.Supports(cpuid.AVX2))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg := trainer.RunConfig{
		SampleCount:     cfg.SampleCount,
		Epochs:          cfg.Epochs,
		BatchSize:       cfg.BatchSize,
		ValidationSplit: cfg.ValidationSplit,
		Seed:            cfg.Seed,
		SaveDir:         cfg.SaveDir,
		ModelName:       cfg.ModelName,
		LogEvery:        cfg.LogEvery,
		Resume:          *resume,
	}

	if _, err := trainer.Run(ctx, runCfg); err != nil {
		glog.Exitf("training failed: %v", err)
	}
}
