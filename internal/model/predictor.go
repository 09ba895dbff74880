package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"pongai/internal/dataset"
)

// Predictor evaluates frozen parameters without a training graph.
type Predictor struct {
	layers []denseLayer
}

type denseLayer struct {
	kernel *mat.Dense
	bias   []float64
	act    func(float64) float64
}

// NewPredictor copies p into gonum matrices.
func NewPredictor(p Params) (*Predictor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	specs := Topology()
	pr := &Predictor{layers: make([]denseLayer, len(specs))}
	for i, spec := range specs {
		act, err := activationFunc(spec.Activation)
		if err != nil {
			return nil, err
		}
		pr.layers[i] = denseLayer{
			kernel: mat.NewDense(spec.Inputs, spec.Units, widen(p.Layers[i].Kernel)),
			bias:   widen(p.Layers[i].Bias),
			act:    act,
		}
	}
	return pr, nil
}

func activationFunc(a Activation) (func(float64) float64, error) {
	switch a {
	case ReLU:
		return func(v float64) float64 { return math.Max(v, 0) }, nil
	case Tanh:
		return math.Tanh, nil
	default:
		return nil, fmt.Errorf("model: unknown activation %q", a)
	}
}

// Predict returns one output per row of the flattened features.
func (p *Predictor) Predict(features []float32) ([]float32, error) {
	out64, err := p.predict(features)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = narrow(v)
	}
	return out, nil
}

// outputBound is the largest float32 below 1. Predict never returns a value outside ±outputBound.
var outputBound = math.Nextafter32(1, 0)

func narrow(v float64) float32 {
	f := float32(v)
	switch {
	case f > outputBound:
		return outputBound
	case f < -outputBound:
		return -outputBound
	default:
		return f
	}
}

func (p *Predictor) predict(features []float32) ([]float64, error) {
	if len(features)%dataset.NumFeatures != 0 {
		return nil, fmt.Errorf("model: %d feature values is not a multiple of %d", len(features), dataset.NumFeatures)
	}
	rows := len(features) / dataset.NumFeatures
	if rows == 0 {
		return []float64{}, nil
	}
	var h mat.Matrix = mat.NewDense(rows, dataset.NumFeatures, widen(features))
	for _, l := range p.layers {
		var z mat.Dense
		z.Mul(h, l.kernel)
		bias, act := l.bias, l.act
		z.Apply(func(_, j int, v float64) float64 { return act(v + bias[j]) }, &z)
		h = &z
	}
	return mat.Col(nil, 0, h), nil
}

// Evaluation is the mean squared and mean absolute error over a set of rows.
type Evaluation struct {
	Loss float64
	MAE  float64
	Rows int
}

// Evaluate scores the predictor against a batch.
func (p *Predictor) Evaluate(b dataset.Batch) (Evaluation, error) {
	pred, err := p.predict(b.Features)
	if err != nil {
		return Evaluation{}, err
	}
	if len(pred) != b.Size() {
		return Evaluation{}, fmt.Errorf("model: %d predictions for %d labels", len(pred), b.Size())
	}
	if len(pred) == 0 {
		return Evaluation{}, nil
	}
	labels := widen(b.Labels)
	n := float64(len(pred))
	l2 := floats.Distance(pred, labels, 2)
	return Evaluation{
		Loss: l2 * l2 / n,
		MAE:  floats.Distance(pred, labels, 1) / n,
		Rows: len(pred),
	}, nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Action rounds a network output to the nearest movement label.
func Action(out float32) float32 {
	switch {
	case out < -0.5:
		return dataset.MoveUp
	case out > 0.5:
		return dataset.MoveDown
	default:
		return dataset.Hold
	}
}
