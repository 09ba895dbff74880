package model

import (
	"errors"
	"fmt"
	"math/rand"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"pongai/internal/dataset"
)

// DefaultLearnRate is the Adam step size.
const DefaultLearnRate = 0.001

// Options configures an MLP.
type Options struct {
	// BatchSize is the row capacity of the compiled graph. Smaller batches are zero padded
	// and masked out of the loss.
	BatchSize int
	LearnRate float64
	Seed      int64
	// Init overrides the random initial parameters.
	Init *Params
}

// MLP is the fixed-topology regression network trained with Adam on a masked
// mean-squared-error loss.
type MLP struct {
	batchSize int

	g                *gorgonia.ExprGraph
	x, y, mask, rows *gorgonia.Node
	learnables       gorgonia.Nodes

	vm     gorgonia.VM
	solver gorgonia.Solver

	lossVal, maeVal gorgonia.Value

	xT, yT, maskT *tensor.Dense
}

// NewMLP builds and compiles the training graph.
func NewMLP(opts Options) (*MLP, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("model: batch size must be > 0 (got %d)", opts.BatchSize)
	}
	if opts.LearnRate <= 0 {
		opts.LearnRate = DefaultLearnRate
	}
	var initial Params
	if opts.Init != nil {
		initial = opts.Init.Clone()
	} else {
		initial = NewParams(rand.New(rand.NewSource(opts.Seed)))
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}

	bs := opts.BatchSize
	m := &MLP{
		batchSize: bs,
		g:         gorgonia.NewGraph(),
		xT:        tensor.New(tensor.WithShape(bs, dataset.NumFeatures), tensor.WithBacking(make([]float32, bs*dataset.NumFeatures))),
		yT:        tensor.New(tensor.WithShape(bs, 1), tensor.WithBacking(make([]float32, bs))),
		maskT:     tensor.New(tensor.WithShape(bs, 1), tensor.WithBacking(make([]float32, bs))),
	}
	m.x = gorgonia.NewMatrix(m.g, tensor.Float32, gorgonia.WithShape(bs, dataset.NumFeatures), gorgonia.WithName("x"))
	m.y = gorgonia.NewMatrix(m.g, tensor.Float32, gorgonia.WithShape(bs, 1), gorgonia.WithName("y"))
	m.mask = gorgonia.NewMatrix(m.g, tensor.Float32, gorgonia.WithShape(bs, 1), gorgonia.WithName("mask"))
	m.rows = gorgonia.NewScalar(m.g, tensor.Float32, gorgonia.WithName("rows"))

	pred, err := m.forward(initial)
	if err != nil {
		return nil, err
	}
	loss, mae, err := maskedErrors(pred, m.y, m.mask, m.rows)
	if err != nil {
		return nil, err
	}
	gorgonia.Read(loss, &m.lossVal)
	gorgonia.Read(mae, &m.maeVal)

	if _, err := gorgonia.Grad(loss, m.learnables...); err != nil {
		return nil, fmt.Errorf("model: symbolic gradient: %w", err)
	}
	m.vm = gorgonia.NewTapeMachine(m.g, gorgonia.BindDualValues(m.learnables...))
	m.solver = gorgonia.NewAdamSolver(gorgonia.WithLearnRate(opts.LearnRate))
	return m, nil
}

func (m *MLP) forward(p Params) (*gorgonia.Node, error) {
	h := m.x
	for i, spec := range Topology() {
		kernel := gorgonia.NewMatrix(m.g, tensor.Float32,
			gorgonia.WithShape(spec.Inputs, spec.Units),
			gorgonia.WithName(spec.Name+"_kernel"),
			gorgonia.WithValue(tensor.New(tensor.WithShape(spec.Inputs, spec.Units), tensor.WithBacking(p.Layers[i].Kernel))))
		bias := gorgonia.NewMatrix(m.g, tensor.Float32,
			gorgonia.WithShape(1, spec.Units),
			gorgonia.WithName(spec.Name+"_bias"),
			gorgonia.WithValue(tensor.New(tensor.WithShape(1, spec.Units), tensor.WithBacking(p.Layers[i].Bias))))
		m.learnables = append(m.learnables, kernel, bias)

		xw, err := gorgonia.Mul(h, kernel)
		if err != nil {
			return nil, fmt.Errorf("model: %s matmul: %w", spec.Name, err)
		}
		z, err := gorgonia.BroadcastAdd(xw, bias, nil, []byte{0})
		if err != nil {
			return nil, fmt.Errorf("model: %s bias: %w", spec.Name, err)
		}
		switch spec.Activation {
		case ReLU:
			h, err = gorgonia.Rectify(z)
		case Tanh:
			h, err = gorgonia.Tanh(z)
		default:
			err = fmt.Errorf("unknown activation %q", spec.Activation)
		}
		if err != nil {
			return nil, fmt.Errorf("model: %s activation: %w", spec.Name, err)
		}
	}
	return h, nil
}

// maskedErrors returns mean squared and mean absolute error over the rows where mask is 1.
func maskedErrors(pred, y, mask, rows *gorgonia.Node) (loss, mae *gorgonia.Node, err error) {
	diff, err := gorgonia.Sub(pred, y)
	if err != nil {
		return nil, nil, err
	}
	sq, err := gorgonia.Square(diff)
	if err != nil {
		return nil, nil, err
	}
	if loss, err = maskedMean(sq, mask, rows); err != nil {
		return nil, nil, err
	}
	abs, err := gorgonia.Abs(diff)
	if err != nil {
		return nil, nil, err
	}
	if mae, err = maskedMean(abs, mask, rows); err != nil {
		return nil, nil, err
	}
	return loss, mae, nil
}

func maskedMean(v, mask, rows *gorgonia.Node) (*gorgonia.Node, error) {
	kept, err := gorgonia.HadamardProd(v, mask)
	if err != nil {
		return nil, err
	}
	sum, err := gorgonia.Sum(kept)
	if err != nil {
		return nil, err
	}
	return gorgonia.Div(sum, rows)
}

// TrainStep runs forward and backward passes over the batch and applies one Adam update.
func (m *MLP) TrainStep(b dataset.Batch) (StepResult, error) {
	n := b.Size()
	if n == 0 {
		return StepResult{}, errors.New("model: empty batch")
	}
	if n > m.batchSize {
		return StepResult{}, fmt.Errorf("model: batch of %d rows exceeds capacity %d", n, m.batchSize)
	}
	if len(b.Features) != n*dataset.NumFeatures {
		return StepResult{}, fmt.Errorf("model: batch has %d feature values for %d rows", len(b.Features), n)
	}

	xs := m.xT.Data().([]float32)
	ys := m.yT.Data().([]float32)
	ms := m.maskT.Data().([]float32)
	copy(xs, b.Features)
	copy(ys, b.Labels)
	for i := range ms {
		if i < n {
			ms[i] = 1
			continue
		}
		ms[i] = 0
		ys[i] = 0
		row := xs[i*dataset.NumFeatures : (i+1)*dataset.NumFeatures]
		for j := range row {
			row[j] = 0
		}
	}

	for _, bind := range []struct {
		node *gorgonia.Node
		val  interface{}
	}{
		{m.x, m.xT},
		{m.y, m.yT},
		{m.mask, m.maskT},
		{m.rows, gorgonia.NewF32(float32(n))},
	} {
		if err := gorgonia.Let(bind.node, bind.val); err != nil {
			return StepResult{}, fmt.Errorf("model: bind %s: %w", bind.node.Name(), err)
		}
	}

	defer m.vm.Reset()
	if err := m.vm.RunAll(); err != nil {
		return StepResult{}, fmt.Errorf("model: run graph: %w", err)
	}
	if err := m.solver.Step(gorgonia.NodesToValueGrads(m.learnables)); err != nil {
		return StepResult{}, fmt.Errorf("model: adam step: %w", err)
	}

	loss, err := scalar(m.lossVal)
	if err != nil {
		return StepResult{}, err
	}
	mae, err := scalar(m.maeVal)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{Loss: loss, MAE: mae}, nil
}

// Params returns a copy of the current parameters.
func (m *MLP) Params() Params {
	specs := Topology()
	p := Params{Layers: make([]LayerParams, len(specs))}
	for i := range specs {
		kernel, _ := float32s(m.learnables[2*i].Value().Data())
		bias, _ := float32s(m.learnables[2*i+1].Value().Data())
		p.Layers[i] = LayerParams{
			Kernel: append([]float32(nil), kernel...),
			Bias:   append([]float32(nil), bias...),
		}
	}
	return p
}

// Close releases the tape machine.
func (m *MLP) Close() error {
	return m.vm.Close()
}

func scalar(v gorgonia.Value) (float64, error) {
	if v == nil {
		return 0, errors.New("model: graph produced no value")
	}
	data, err := float32s(v.Data())
	if err != nil {
		return 0, err
	}
	if len(data) != 1 {
		return 0, fmt.Errorf("model: expected a scalar, got %d values", len(data))
	}
	return float64(data[0]), nil
}
