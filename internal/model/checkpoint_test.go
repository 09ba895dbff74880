package model

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"pongai/internal/dataset"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saved_pong_ai")
	p := NewParams(rand.New(rand.NewSource(12)))
	p.Layers[2].Bias[0] = 0.25

	summary := &TrainingSummary{Samples: 100, Epochs: 2, BatchSize: 32, ValidationSplit: 0.1, Loss: 0.5}
	require.NoError(t, Save(dir, "pong_model", p, Manifest{Training: summary}))

	loaded, m, err := Load(dir, "pong_model")
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
	assert.Equal(t, FormatVersion, m.Format)
	assert.Equal(t, Topology(), m.Layers)
	assert.NotEmpty(t, m.RunID)
	assert.False(t, m.Created.IsZero())
	require.NotNil(t, m.Training)
	assert.Equal(t, *summary, *m.Training)

	ds, err := dataset.Generate(32, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	before, err := NewPredictor(p)
	require.NoError(t, err)
	after, err := NewPredictor(loaded)
	require.NoError(t, err)
	want, err := before.Predict(ds.Features())
	require.NoError(t, err)
	got, err := after.Predict(ds.Features())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveIntoExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	first := NewParams(rand.New(rand.NewSource(1)))
	second := NewParams(rand.New(rand.NewSource(2)))

	require.NoError(t, Save(dir, "pong_model", first, Manifest{}))
	require.NoError(t, Save(dir, "pong_model", second, Manifest{}))

	loaded, _, err := Load(dir, "pong_model")
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
}

func TestSaveWritesExpectedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, "pong_model", NewParams(rand.New(rand.NewSource(1))), Manifest{RunID: "fixed"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"pong_model.yaml",
		"pong_model.dense_0.kernel.npy", "pong_model.dense_0.bias.npy",
		"pong_model.dense_1.kernel.npy", "pong_model.dense_1.bias.npy",
		"pong_model.dense_2.kernel.npy", "pong_model.dense_2.bias.npy",
	}, names)

	_, m, err := Load(dir, "pong_model")
	require.NoError(t, err)
	assert.Equal(t, "fixed", m.RunID)
}

func TestSaveRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, Save(dir, "", NewParams(rand.New(rand.NewSource(1))), Manifest{}))
	assert.Error(t, Save(dir, "pong_model", Params{}, Manifest{}))

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	assert.Error(t, Save(filepath.Join(blocker, "sub"), "pong_model", NewParams(rand.New(rand.NewSource(1))), Manifest{}))
}

func TestLoadRejectsForeignTopology(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, "pong_model", NewParams(rand.New(rand.NewSource(1))), Manifest{}))

	path := ManifestPath(dir, "pong_model")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, yaml.Unmarshal(raw, &m))
	m.Layers[1].Units = 64
	raw, err = yaml.Marshal(&m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, _, err = Load(dir, "pong_model")
	assert.ErrorIs(t, err, ErrTopologyMismatch)
}

func TestLoadMissing(t *testing.T) {
	_, _, err := Load(t.TempDir(), "pong_model")
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, Save(dir, "pong_model", NewParams(rand.New(rand.NewSource(1))), Manifest{}))
	require.NoError(t, os.Remove(filepath.Join(dir, "pong_model.dense_1.bias.npy")))
	_, _, err = Load(dir, "pong_model")
	assert.Error(t, err)
}
