package ai

import "context"

// TaskType tells the provider how the embedding will be used. Some models
// produce asymmetric embeddings for queries and documents.
type TaskType string

const (
	// TaskQuery marks text that will be matched against stored documents.
	TaskQuery TaskType = "query"
	// TaskDocument marks text that will be stored and searched over.
	TaskDocument TaskType = "document"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text and
	// always has the configured dimension on success.
	// Returns an error if the embedding generation fails; callers must
	// branch on the error, never on vector shape alone.
	EmbedText(ctx context.Context, text string, task TaskType) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string, task TaskType) ([][]float32, error)
}
