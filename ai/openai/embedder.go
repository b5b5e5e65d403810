package openai

import (
	"context"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
	"github.com/poiesic/fansearch/ai"
	"github.com/poiesic/fansearch/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// tokenEncoding is the tokenizer used to enforce the provider token budget.
// It matches the text-embedding-3 model family.
const tokenEncoding = "cl100k_base"

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder    embeddings.Embedder
	encoder     *tiktoken.Tiktoken // nil when the encoding could not load
	dimension   int
	tokenBudget int
	logger      *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates a new embedder using the provided configuration.
func NewEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(config.Token),
		openai.WithEmbeddingModel(config.Model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-embedder")

	encoder, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		// Rune-based truncation still keeps inputs bounded.
		logger.Warn("token encoding unavailable, falling back to rune truncation", "encoding", tokenEncoding, "err", err)
		encoder = nil
	}

	return &Embedder{
		embedder:    embedder,
		encoder:     encoder,
		dimension:   config.Dimension,
		tokenBudget: config.TokenBudget,
		logger:      logger,
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string, task ai.TaskType) ([]float32, error) {
	if text == "" {
		return nil, core.E(core.KindInvalidInput, "openai.EmbedText", core.ErrEmptyText)
	}

	text = e.truncate(text)
	e.logger.Debug("generating embedding for single text", "length", len(text), "task", task)

	var (
		vector []float32
		err    error
	)
	if task == ai.TaskQuery {
		vector, err = e.embedder.EmbedQuery(ctx, text)
	} else {
		var vectors [][]float32
		vectors, err = e.embedder.EmbedDocuments(ctx, []string{text})
		if err == nil && len(vectors) > 0 {
			vector = vectors[0]
		}
	}
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, core.E(core.KindProviderAPI, "openai.EmbedText", err)
	}

	return e.repair(vector), nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string, task ai.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, core.E(core.KindInvalidInput, "openai.EmbedTexts", core.ErrEmptyText)
	}

	truncated := make([]string, len(texts))
	for i, text := range texts {
		if text == "" {
			return nil, core.E(core.KindInvalidInput, "openai.EmbedTexts", core.ErrEmptyText)
		}
		truncated[i] = e.truncate(text)
	}

	e.logger.Debug("generating embeddings for texts", "count", len(truncated), "task", task)

	vectors, err := e.embedder.EmbedDocuments(ctx, truncated)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(truncated), "err", err)
		return nil, core.E(core.KindProviderAPI, "openai.EmbedTexts", err)
	}
	if len(vectors) != len(truncated) {
		return nil, core.Ef(core.KindProviderAPI, "openai.EmbedTexts",
			"embedding count mismatch: expected %d, got %d", len(truncated), len(vectors))
	}

	for i := range vectors {
		vectors[i] = e.repair(vectors[i])
	}
	return vectors, nil
}

// truncate head-truncates text to the provider token budget. The leading
// tokens are kept so truncation is deterministic for identical input.
func (e *Embedder) truncate(text string) string {
	if e.encoder == nil {
		runes := []rune(text)
		// Roughly four characters per token.
		max := e.tokenBudget * 4
		if len(runes) <= max {
			return text
		}
		e.logger.Warn("truncating oversized text", "runes", len(runes), "kept", max)
		return string(runes[:max])
	}

	tokens := e.encoder.Encode(text, nil, nil)
	if len(tokens) <= e.tokenBudget {
		return text
	}
	e.logger.Warn("truncating oversized text", "tokens", len(tokens), "budget", e.tokenBudget)
	return e.encoder.Decode(tokens[:e.tokenBudget])
}

// repair forces a provider vector to the configured dimension. Short vectors
// (including an empty malformed response) are zero-padded, long vectors
// truncated. The caller may still benefit from low-quality results, so the
// discrepancy is logged rather than failing the whole operation.
func (e *Embedder) repair(vector []float32) []float32 {
	repaired, changed := core.RepairVector(vector, e.dimension)
	if changed {
		e.logger.Warn("repaired embedding with unexpected dimension",
			"got", len(vector), "want", e.dimension)
	}
	return repaired
}
