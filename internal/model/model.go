package model

import (
	"fmt"
	"math"
	"math/rand"

	"pongai/internal/dataset"
)

// Activation names a layer's elementwise nonlinearity.
type Activation string

// Supported activations.
const (
	ReLU Activation = "relu"
	Tanh Activation = "tanh"
)

// LayerSpec describes one dense layer.
type LayerSpec struct {
	Name       string     `yaml:"name"`
	Inputs     int        `yaml:"inputs"`
	Units      int        `yaml:"units"`
	Activation Activation `yaml:"activation"`
}

// Topology returns the fixed network layout: two 32-unit relu layers and a single tanh output.
func Topology() []LayerSpec {
	return []LayerSpec{
		{Name: "dense_0", Inputs: dataset.NumFeatures, Units: 32, Activation: ReLU},
		{Name: "dense_1", Inputs: 32, Units: 32, Activation: ReLU},
		{Name: "dense_2", Inputs: 32, Units: 1, Activation: Tanh},
	}
}

// StepResult reports the loss and metric of one optimisation step.
type StepResult struct {
	Loss float64
	MAE  float64
}

// Model defines the training functionality required by the trainer.
type Model interface {
	TrainStep(batch dataset.Batch) (StepResult, error)
	Params() Params
	Close() error
}

// LayerParams holds a dense layer's row-major (Inputs x Units) kernel and its Units biases.
type LayerParams struct {
	Kernel []float32
	Bias   []float32
}

// Params holds the parameters of every layer in Topology order.
type Params struct {
	Layers []LayerParams
}

// NewParams draws Glorot-uniform kernels and zero biases from rng.
func NewParams(rng *rand.Rand) Params {
	specs := Topology()
	p := Params{Layers: make([]LayerParams, len(specs))}
	for i, spec := range specs {
		limit := math.Sqrt(6 / float64(spec.Inputs+spec.Units))
		kernel := make([]float32, spec.Inputs*spec.Units)
		for j := range kernel {
			kernel[j] = float32((rng.Float64()*2 - 1) * limit)
		}
		p.Layers[i] = LayerParams{Kernel: kernel, Bias: make([]float32, spec.Units)}
	}
	return p
}

// Validate checks the parameter shapes against Topology.
func (p Params) Validate() error {
	specs := Topology()
	if len(p.Layers) != len(specs) {
		return fmt.Errorf("model: expected %d layers, got %d", len(specs), len(p.Layers))
	}
	for i, spec := range specs {
		l := p.Layers[i]
		if len(l.Kernel) != spec.Inputs*spec.Units {
			return fmt.Errorf("model: %s kernel has %d values, want %d", spec.Name, len(l.Kernel), spec.Inputs*spec.Units)
		}
		if len(l.Bias) != spec.Units {
			return fmt.Errorf("model: %s bias has %d values, want %d", spec.Name, len(l.Bias), spec.Units)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	out := Params{Layers: make([]LayerParams, len(p.Layers))}
	for i, l := range p.Layers {
		out.Layers[i] = LayerParams{
			Kernel: append([]float32(nil), l.Kernel...),
			Bias:   append([]float32(nil), l.Bias...),
		}
	}
	return out
}

func float32s(data interface{}) ([]float32, error) {
	switch d := data.(type) {
	case []float32:
		return d, nil
	case float32:
		return []float32{d}, nil
	default:
		return nil, fmt.Errorf("model: unexpected tensor data %T", data)
	}
}
