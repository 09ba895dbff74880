package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongai/internal/dataset"
)

func zeroParams() Params {
	specs := Topology()
	p := Params{Layers: make([]LayerParams, len(specs))}
	for i, spec := range specs {
		p.Layers[i] = LayerParams{
			Kernel: make([]float32, spec.Inputs*spec.Units),
			Bias:   make([]float32, spec.Units),
		}
	}
	return p
}

func TestPredictorForward(t *testing.T) {
	p := zeroParams()
	// Route ball_y through unit 0 of each layer.
	p.Layers[0].Kernel[dataset.BallY*32] = 2
	p.Layers[1].Kernel[0] = 1
	p.Layers[2].Kernel[0] = 1
	p.Layers[2].Bias[0] = -0.5

	pr, err := NewPredictor(p)
	require.NoError(t, err)
	out, err := pr.Predict([]float32{
		0.9, 0.25, 0.001, -0.001, 0.1,
		0.1, 0.75, 0, 0, 0.9,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, math.Tanh(0.0), out[0], 1e-6)
	assert.InDelta(t, math.Tanh(1.0), out[1], 1e-6)
}

func TestPredictorRelu(t *testing.T) {
	p := zeroParams()
	p.Layers[0].Bias[0] = -3
	p.Layers[1].Kernel[0] = 1
	p.Layers[2].Kernel[0] = 1

	pr, err := NewPredictor(p)
	require.NoError(t, err)
	out, err := pr.Predict([]float32{0.5, 0.5, 0, 0, 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float32{0}, out)
}

func TestPredictorRejectsRaggedInput(t *testing.T) {
	pr, err := NewPredictor(zeroParams())
	require.NoError(t, err)
	_, err = pr.Predict([]float32{1, 2, 3})
	assert.Error(t, err)

	out, err := pr.Predict(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPredictorEvaluate(t *testing.T) {
	p := zeroParams()
	pr, err := NewPredictor(p)
	require.NoError(t, err)

	ds := dataset.FromSamples([]dataset.Sample{
		{0, 0.1, 0, 0, 0.9},
		{0, 0.9, 0, 0, 0.1},
		{0, 0.5, 0, 0, 0.5},
		{0, 0.2, 0, 0, 0.8},
	})
	ev, err := pr.Evaluate(ds.All())
	require.NoError(t, err)
	assert.Equal(t, 4, ev.Rows)
	assert.InDelta(t, 0.75, ev.Loss, 1e-9)
	assert.InDelta(t, 0.75, ev.MAE, 1e-9)
}

func TestTrainedOutputsStayInsideOpenInterval(t *testing.T) {
	m, err := NewMLP(Options{BatchSize: 128, Seed: 3})
	require.NoError(t, err)
	defer m.Close()

	ds, err := dataset.Generate(2048, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	batches, err := ds.Batches(128, rand.New(rand.NewSource(6)))
	require.NoError(t, err)
	for _, b := range batches {
		_, err := m.TrainStep(b)
		require.NoError(t, err)
	}

	pr, err := NewPredictor(m.Params())
	require.NoError(t, err)
	out, err := pr.Predict(ds.Features())
	require.NoError(t, err)
	require.Len(t, out, ds.Len())
	for i, v := range out {
		require.Greater(t, v, float32(-1), "row %d", i)
		require.Less(t, v, float32(1), "row %d", i)
	}
}

func TestPredictorSaturatedOutputStaysInsideOpenInterval(t *testing.T) {
	for _, bias := range []float32{20, -20, 1e6} {
		p := zeroParams()
		p.Layers[2].Bias[0] = bias

		pr, err := NewPredictor(p)
		require.NoError(t, err)
		out, err := pr.Predict([]float32{0.5, 0.5, 0, 0, 0.5})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Less(t, out[0], float32(1), "bias %v", bias)
		assert.Greater(t, out[0], float32(-1), "bias %v", bias)
		assert.InDelta(t, math.Copysign(1, float64(bias)), out[0], 1e-6)
	}
}

func TestAction(t *testing.T) {
	assert.Equal(t, dataset.MoveUp, Action(-0.9))
	assert.Equal(t, dataset.MoveDown, Action(0.7))
	assert.Equal(t, dataset.Hold, Action(0.1))
	assert.Equal(t, dataset.Hold, Action(-0.5))
	assert.Equal(t, dataset.Hold, Action(0.5))
}
