package metrics

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Window accumulates per-step training results across an epoch.
type Window struct {
	losses  []float64
	maes    []float64
	weights []float64
	samples int
	compute time.Duration
}

// Record adds one step's mean loss and MAE over batchSize rows.
func (w *Window) Record(batchSize int, computeTime time.Duration, loss, mae float64) {
	w.losses = append(w.losses, loss)
	w.maes = append(w.maes, mae)
	w.weights = append(w.weights, float64(batchSize))
	w.samples += batchSize
	w.compute += computeTime
}

// Steps returns the number of recorded steps since the last snapshot.
func (w *Window) Steps() int { return len(w.losses) }

// Snapshot returns row-weighted means and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Steps: len(w.losses), Samples: w.samples}
	if snap.Steps > 0 {
		snap.Loss = stat.Mean(w.losses, w.weights)
		snap.MAE = stat.Mean(w.maes, w.weights)
		snap.LastLoss = w.losses[len(w.losses)-1]
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(snap.Steps)
	}
	if w.compute > 0 {
		snap.SamplesPerSec = float64(w.samples) / w.compute.Seconds()
	}

	w.losses = w.losses[:0]
	w.maes = w.maes[:0]
	w.weights = w.weights[:0]
	w.samples = 0
	w.compute = 0
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Steps         int
	Samples       int
	Loss          float64
	MAE           float64
	LastLoss      float64
	SamplesPerSec float64
	AvgComputeMS  float64
}
