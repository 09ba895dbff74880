package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(256, 20*time.Millisecond, 1.0, 0.5)
	w.Record(256, 10*time.Millisecond, 0.5, 0.25)
	w.Record(128, 10*time.Millisecond, 0.0, 0.0)
	assert.Equal(t, 3, w.Steps())

	snap := w.Snapshot()
	assert.Equal(t, 3, snap.Steps)
	assert.Equal(t, 640, snap.Samples)
	assert.InDelta(t, (256*1.0+256*0.5)/640, snap.Loss, 1e-12)
	assert.InDelta(t, (256*0.5+256*0.25)/640, snap.MAE, 1e-12)
	assert.Equal(t, 0.0, snap.LastLoss)
	assert.InDelta(t, 16000, snap.SamplesPerSec, 1e-6)
	assert.InDelta(t, 40.0/3, snap.AvgComputeMS, 1e-9)

	assert.Zero(t, w.Steps(), "window was not reset")
	assert.Zero(t, w.samples)
}

func TestEmptyWindow(t *testing.T) {
	var w Window
	assert.Equal(t, Snapshot{}, w.Snapshot())
}
