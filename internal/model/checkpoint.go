package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorgonia.org/tensor"
)

// FormatVersion identifies the on-disk layout written by Save.
const FormatVersion = 1

// ErrTopologyMismatch is returned by Load when a manifest describes a different network.
var ErrTopologyMismatch = errors.New("model: saved topology does not match")

// Manifest is the YAML document describing a saved model.
type Manifest struct {
	Format   int              `yaml:"format"`
	RunID    string           `yaml:"run_id"`
	Created  time.Time        `yaml:"created"`
	Layers   []LayerSpec      `yaml:"layers"`
	Training *TrainingSummary `yaml:"training,omitempty"`
}

// TrainingSummary records how a saved model was produced.
type TrainingSummary struct {
	Samples         int     `yaml:"samples"`
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	ValidationSplit float64 `yaml:"validation_split"`
	Seed            int64   `yaml:"seed"`
	Loss            float64 `yaml:"loss"`
	MAE             float64 `yaml:"mae"`
	ValLoss         float64 `yaml:"val_loss"`
	ValMAE          float64 `yaml:"val_mae"`
}

// ManifestPath returns the manifest location for a model named name inside dir.
func ManifestPath(dir, name string) string {
	return filepath.Join(dir, name+".yaml")
}

func tensorPath(dir, name, layer, kind string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.%s.npy", name, layer, kind))
}

// Save writes p and its manifest into dir, creating dir if needed. Existing files of the same
// model name are overwritten. The manifest is written last.
func Save(dir, name string, p Params, m Manifest) error {
	if name == "" {
		return errors.New("model: empty model name")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("model: create %s: %w", dir, err)
	}

	specs := Topology()
	for i, spec := range specs {
		if err := writeNpy(tensorPath(dir, name, spec.Name, "kernel"), p.Layers[i].Kernel, spec.Inputs, spec.Units); err != nil {
			return err
		}
		if err := writeNpy(tensorPath(dir, name, spec.Name, "bias"), p.Layers[i].Bias, 1, spec.Units); err != nil {
			return err
		}
	}

	m.Format = FormatVersion
	m.Layers = specs
	if m.RunID == "" {
		m.RunID = uuid.NewString()
	}
	if m.Created.IsZero() {
		m.Created = time.Now().UTC()
	}
	raw, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("model: encode manifest: %w", err)
	}
	if err := os.WriteFile(ManifestPath(dir, name), raw, 0o644); err != nil {
		return fmt.Errorf("model: write manifest: %w", err)
	}
	return nil
}

func writeNpy(path string, data []float32, shape ...int) error {
	t := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(append([]float32(nil), data...)))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("model: create %s: %w", path, err)
	}
	err = t.WriteNpy(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("model: write %s: %w", path, err)
	}
	return nil
}

// Load reads a model saved by Save.
func Load(dir, name string) (Params, Manifest, error) {
	var m Manifest
	raw, err := os.ReadFile(ManifestPath(dir, name))
	if err != nil {
		return Params{}, m, fmt.Errorf("model: read manifest: %w", err)
	}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Params{}, m, fmt.Errorf("model: decode manifest: %w", err)
	}
	if m.Format != FormatVersion {
		return Params{}, m, fmt.Errorf("model: unsupported format %d", m.Format)
	}

	specs := Topology()
	if len(m.Layers) != len(specs) {
		return Params{}, m, ErrTopologyMismatch
	}
	for i := range specs {
		if m.Layers[i] != specs[i] {
			return Params{}, m, fmt.Errorf("%w: layer %d is %+v", ErrTopologyMismatch, i, m.Layers[i])
		}
	}

	p := Params{Layers: make([]LayerParams, len(specs))}
	for i, spec := range specs {
		kernel, err := readNpy(tensorPath(dir, name, spec.Name, "kernel"), spec.Inputs, spec.Units)
		if err != nil {
			return Params{}, m, err
		}
		bias, err := readNpy(tensorPath(dir, name, spec.Name, "bias"), 1, spec.Units)
		if err != nil {
			return Params{}, m, err
		}
		p.Layers[i] = LayerParams{Kernel: kernel, Bias: bias}
	}
	return p, m, nil
}

func readNpy(path string, shape ...int) ([]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model: open %s: %w", path, err)
	}
	defer file.Close()

	t := new(tensor.Dense)
	if err := t.ReadNpy(file); err != nil {
		return nil, fmt.Errorf("model: read %s: %w", path, err)
	}
	if t.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("model: %s has dtype %v, want float32", path, t.Dtype())
	}
	if !t.Shape().Eq(tensor.Shape(shape)) {
		return nil, fmt.Errorf("model: %s has shape %v, want %v", path, t.Shape(), shape)
	}
	data, err := float32s(t.Data())
	if err != nil {
		return nil, err
	}
	return append([]float32(nil), data...), nil
}
