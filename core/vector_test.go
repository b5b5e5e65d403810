package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	t.Run("normalizes to unit length", func(t *testing.T) {
		v := NormalizeVector([]float32{3, 4})
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("zero vector stays zero", func(t *testing.T) {
		v := NormalizeVector([]float32{0, 0, 0})
		assert.Equal(t, []float32{0, 0, 0}, v)
	})

	t.Run("empty vector", func(t *testing.T) {
		assert.Empty(t, NormalizeVector(nil))
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := []float32{3, 4}
		NormalizeVector(in)
		assert.Equal(t, []float32{3, 4}, in)
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical unit vectors score 1", func(t *testing.T) {
		v := NormalizeVector([]float32{1, 2, 3})
		assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-6)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		a := []float32{1, 0}
		b := []float32{0, 1}
		assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-6)
	})

	t.Run("opposite vectors clamp to 0", func(t *testing.T) {
		a := []float32{1, 0}
		b := []float32{-1, 0}
		assert.Equal(t, float32(0), CosineSimilarity(a, b))
	})
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, float32(0), ClampScore(float32(math.NaN())))
	assert.Equal(t, float32(0), ClampScore(float32(math.Inf(1))))
	assert.Equal(t, float32(0), ClampScore(float32(math.Inf(-1))))
	assert.Equal(t, float32(0), ClampScore(-0.5))
	assert.Equal(t, float32(1), ClampScore(1.5))
	assert.Equal(t, float32(0.42), ClampScore(0.42))
}

func TestRepairVector(t *testing.T) {
	t.Run("correct dimension untouched", func(t *testing.T) {
		v := []float32{1, 2, 3}
		repaired, changed := RepairVector(v, 3)
		assert.False(t, changed)
		assert.Equal(t, v, repaired)
	})

	t.Run("empty vector padded with zeros", func(t *testing.T) {
		repaired, changed := RepairVector(nil, EmbeddingDim)
		assert.True(t, changed)
		require.Len(t, repaired, EmbeddingDim)
		for _, val := range repaired {
			assert.Equal(t, float32(0), val)
		}
	})

	t.Run("short vector zero padded", func(t *testing.T) {
		repaired, changed := RepairVector([]float32{1, 2}, 4)
		assert.True(t, changed)
		assert.Equal(t, []float32{1, 2, 0, 0}, repaired)
	})

	t.Run("long vector truncated", func(t *testing.T) {
		repaired, changed := RepairVector([]float32{1, 2, 3, 4}, 2)
		assert.True(t, changed)
		assert.Equal(t, []float32{1, 2}, repaired)
	})
}
