package openai

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/fansearch/ai"
	"github.com/poiesic/fansearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider stands in for the langchaingo embedder so adapter behavior
// can be exercised without a provider endpoint.
type stubProvider struct {
	query []float32
	docs  [][]float32
	err   error
}

func (s *stubProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.query, s.err
}

func (s *stubProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return s.docs, s.err
}

func newStubEmbedder(provider *stubProvider) *Embedder {
	return &Embedder{
		embedder:    provider,
		dimension:   core.EmbeddingDim,
		tokenBudget: 8191,
		logger:      slog.Default(),
	}
}

func TestEmbedTextRepairsEmptyProviderVector(t *testing.T) {
	t.Run("query task", func(t *testing.T) {
		e := newStubEmbedder(&stubProvider{query: []float32{}})

		vector, err := e.EmbedText(context.Background(), "cheerful singer", ai.TaskQuery)
		require.NoError(t, err, "a malformed response is repaired, not failed")
		require.Len(t, vector, core.EmbeddingDim)
		for _, val := range vector {
			assert.Equal(t, float32(0), val)
		}
	})

	t.Run("document task", func(t *testing.T) {
		e := newStubEmbedder(&stubProvider{docs: [][]float32{{}}})

		vector, err := e.EmbedText(context.Background(), "cheerful singer", ai.TaskDocument)
		require.NoError(t, err)
		require.Len(t, vector, core.EmbeddingDim)
		for _, val := range vector {
			assert.Equal(t, float32(0), val)
		}
	})
}

func TestEmbedTextRepairsShortVector(t *testing.T) {
	e := newStubEmbedder(&stubProvider{query: []float32{0.5, 0.25}})

	vector, err := e.EmbedText(context.Background(), "cheerful singer", ai.TaskQuery)
	require.NoError(t, err)
	require.Len(t, vector, core.EmbeddingDim)
	assert.Equal(t, float32(0.5), vector[0])
	assert.Equal(t, float32(0.25), vector[1])
	assert.Equal(t, float32(0), vector[2])
}

func TestEmbedTextProviderError(t *testing.T) {
	e := newStubEmbedder(&stubProvider{err: errors.New("429 too many requests")})

	_, err := e.EmbedText(context.Background(), "cheerful singer", ai.TaskQuery)
	assert.Equal(t, core.KindProviderAPI, core.KindOf(err))
}

func TestEmbedTextEmptyInput(t *testing.T) {
	e := newStubEmbedder(&stubProvider{})

	_, err := e.EmbedText(context.Background(), "", ai.TaskQuery)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))
	assert.ErrorIs(t, err, core.ErrEmptyText)
}

func TestEmbedTextsRepairsEachVector(t *testing.T) {
	e := newStubEmbedder(&stubProvider{docs: [][]float32{{}, {0.5}}})

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "b"}, ai.TaskDocument)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], core.EmbeddingDim)
	assert.Len(t, vectors[1], core.EmbeddingDim)
	assert.Equal(t, float32(0.5), vectors[1][0])
}

func TestEmbedTextsCountMismatch(t *testing.T) {
	e := newStubEmbedder(&stubProvider{docs: [][]float32{{0.5}}})

	_, err := e.EmbedTexts(context.Background(), []string{"a", "b"}, ai.TaskDocument)
	assert.Equal(t, core.KindProviderAPI, core.KindOf(err))
}

func TestTruncateRuneFallback(t *testing.T) {
	// No encoder loaded, so truncation falls back to the rune budget.
	e := &Embedder{tokenBudget: 2, logger: slog.Default()}

	assert.Equal(t, "short", e.truncate("short"))
	assert.Equal(t, "abcdefgh", e.truncate("abcdefghijkl"))
}
