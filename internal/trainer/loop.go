package trainer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/golang/glog"

	"pongai/internal/dataset"
	"pongai/internal/metrics"
	"pongai/internal/model"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	SampleCount     int
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	// Seed drives sampling, shuffling and initialisation. Zero picks a time-based seed.
	Seed      int64
	SaveDir   string
	ModelName string
	LogEvery  int
	// Resume starts from the parameters already saved under SaveDir/ModelName, if any.
	Resume bool
}

// EpochStats summarises one pass over the training rows.
type EpochStats struct {
	Epoch   int
	Steps   int
	Elapsed time.Duration
	Loss    float64
	MAE     float64
	ValLoss float64
	ValMAE  float64
}

// String renders the per-epoch progress line.
func (s EpochStats) String() string {
	return fmt.Sprintf("steps=%d elapsed=%s loss=%.4f mae=%.4f val_loss=%.4f val_mae=%.4f",
		s.Steps,
		s.Elapsed.Round(time.Millisecond),
		s.Loss,
		s.MAE,
		s.ValLoss,
		s.ValMAE,
	)
}

// Result is what a completed run produced.
type Result struct {
	Seed   int64
	Epochs []EpochStats
	Params model.Params
}

// Run generates the dataset, trains the network and saves it.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.SampleCount <= 0 {
		return nil, errors.New("trainer: sample count must be > 0")
	}
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("trainer: batch size must be > 0")
	}
	if cfg.SaveDir == "" || cfg.ModelName == "" {
		return nil, errors.New("trainer: save dir and model name must be set")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	ds, err := dataset.Generate(cfg.SampleCount, rng)
	if err != nil {
		return nil, err
	}
	train, val, err := ds.Split(cfg.ValidationSplit)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("samples=%d train=%d val=%d seed=%d", ds.Len(), train.Len(), val.Len(), cfg.Seed)

	opts := model.Options{BatchSize: cfg.BatchSize, Seed: cfg.Seed}
	if cfg.Resume {
		initial, err := resumeParams(cfg.SaveDir, cfg.ModelName)
		if err != nil {
			return nil, err
		}
		opts.Init = initial
	}
	mdl, err := model.NewMLP(opts)
	if err != nil {
		return nil, err
	}
	defer mdl.Close()

	res, err := fit(ctx, mdl, train, val, cfg, rng)
	if err != nil {
		return nil, err
	}

	last := res.Epochs[len(res.Epochs)-1]
	summary := &model.TrainingSummary{
		Samples:         cfg.SampleCount,
		Epochs:          cfg.Epochs,
		BatchSize:       cfg.BatchSize,
		ValidationSplit: cfg.ValidationSplit,
		Seed:            cfg.Seed,
		Loss:            last.Loss,
		MAE:             last.MAE,
		ValLoss:         last.ValLoss,
		ValMAE:          last.ValMAE,
	}
	if err := model.Save(cfg.SaveDir, cfg.ModelName, res.Params, model.Manifest{Training: summary}); err != nil {
		return nil, fmt.Errorf("trainer: save model: %w", err)
	}
	glog.Infof("Model saved into: %s", displayPath(cfg.SaveDir))
	return res, nil
}

func fit(ctx context.Context, mdl model.Model, train, val *dataset.Dataset, cfg RunConfig, rng *rand.Rand) (*Result, error) {
	res := &Result{Seed: cfg.Seed, Epochs: make([]EpochStats, 0, cfg.Epochs)}
	valBatch := val.All()
	var window metrics.Window
	step := 0

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		batches, err := train.Batches(cfg.BatchSize, rng)
		if err != nil {
			return nil, err
		}
		for _, batch := range batches {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			startCompute := time.Now()
			out, err := mdl.TrainStep(batch)
			if err != nil {
				return nil, fmt.Errorf("trainer: epoch %d step %d: %w", epoch, step+1, err)
			}
			window.Record(batch.Size(), time.Since(startCompute), out.Loss, out.MAE)
			step++

			if step%cfg.LogEvery == 0 {
				glog.V(1).Infof("step=%d loss=%.4f mae=%.4f", step, out.Loss, out.MAE)
			}
		}

		snap := window.Snapshot()
		stats := EpochStats{
			Epoch: epoch,
			Steps: snap.Steps,
			Loss:  snap.Loss,
			MAE:   snap.MAE,
		}
		if val.Len() > 0 {
			pr, err := model.NewPredictor(mdl.Params())
			if err != nil {
				return nil, err
			}
			ev, err := pr.Evaluate(valBatch)
			if err != nil {
				return nil, err
			}
			stats.ValLoss, stats.ValMAE = ev.Loss, ev.MAE
		}
		stats.Elapsed = time.Since(start)
		res.Epochs = append(res.Epochs, stats)

		glog.Infof("epoch=%d/%d %s", epoch, cfg.Epochs, stats)
		glog.V(1).Infof("epoch=%d samples_per_sec=%.1f compute_ms=%.2f", epoch, snap.SamplesPerSec, snap.AvgComputeMS)
	}

	res.Params = mdl.Params()
	return res, nil
}

func resumeParams(dir, name string) (*model.Params, error) {
	p, m, err := model.Load(dir, name)
	if errors.Is(err, fs.ErrNotExist) {
		glog.V(1).Infof("no saved model under %s, starting fresh", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trainer: resume: %w", err)
	}
	glog.V(1).Infof("resuming from run_id=%s", m.RunID)
	return &p, nil
}

// displayPath prefixes relative directories with "./" for the confirmation line.
func displayPath(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return "./" + dir
}
