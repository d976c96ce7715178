package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotEvaluatorInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exit_model.json")
	require.NoError(t, flatCoefficients(0.1).Save(path))

	h, err := NewHotEvaluator(path)
	require.NoError(t, err)
	require.NotNil(t, h.Current())
	assert.Equal(t, "test", h.Current().Version())
}

func TestHotEvaluatorFailsOnMissingArtifact(t *testing.T) {
	_, err := NewHotEvaluator(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestHotEvaluatorReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exit_model.json")
	require.NoError(t, flatCoefficients(0.1).Save(path))

	h, err := NewHotEvaluator(path)
	require.NoError(t, err)

	next := flatCoefficients(0.3)
	next.Version = "test-v2"
	require.NoError(t, next.Save(path))
	h.reload()
	assert.Equal(t, "test-v2", h.Current().Version())
}

func TestHotEvaluatorKeepsOldModelOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exit_model.json")
	require.NoError(t, flatCoefficients(0.1).Save(path))

	h, err := NewHotEvaluator(path)
	require.NoError(t, err)

	bad := flatCoefficients(0.3)
	delete(bad.Weights, "unrealized_r")
	require.NoError(t, bad.Save(path))
	h.reload()
	// 重载失败继续使用旧模型
	assert.Equal(t, "test", h.Current().Version())
}
