package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingbot/internal/features"
)

func TestArtifactSaveLoadRoundTrip(t *testing.T) {
	coef, err := Train(separableSamples(400), TrainOptions{MinSamples: 200, Version: "rt1"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "exit_model.json")
	require.NoError(t, coef.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, coef.Version, loaded.Version)
	assert.Equal(t, coef.FeatureNames, loaded.FeatureNames)
	assert.InDelta(t, coef.Bias, loaded.Bias, 1e-12)
	for _, name := range features.Names() {
		assert.InDelta(t, coef.Weights[name], loaded.Weights[name], 1e-12)
		assert.InDelta(t, coef.Means[name], loaded.Means[name], 1e-12)
		assert.InDelta(t, coef.Stds[name], loaded.Stds[name], 1e-12)
	}

	// 原子写不留下临时文件
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadRejectsCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exit_model.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidArtifact(t *testing.T) {
	// 结构合法但缺少必需字段
	path := filepath.Join(t.TempDir(), "exit_model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"v1"}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsSchemaMismatch(t *testing.T) {
	raw := `{
		"version": "v1",
		"trained_at": "2024-01-01T00:00:00Z",
		"feature_names": ["something_else"],
		"weights": {"something_else": 1.0},
		"bias": 0.1,
		"means": {"something_else": 0.0},
		"stds": {"something_else": 1.0},
		"samples": 300
	}`
	path := filepath.Join(t.TempDir(), "exit_model.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
