package storage

import (
	"context"
	"time"

	"github.com/poiesic/fansearch/core"
)

// Default hybrid scoring weights. The weights are not normalized; picking
// sane values is the caller's responsibility.
const (
	DefaultVectorWeight float32 = 0.7
	DefaultTextWeight   float32 = 0.3
)

// EmbeddingRepository persists member embeddings and executes similarity
// queries against them. Implementations must be thread-safe and support
// concurrent access.
type EmbeddingRepository interface {
	// Upsert stores an embedding record, replacing any existing record with
	// the same (MemberID, ModelVersion) key and bumping UpdatedAt. A vector
	// whose dimension differs from core.EmbeddingDim is hard-rejected.
	// Idempotent: repeating an upsert with identical content leaves exactly
	// one record for the key.
	Upsert(ctx context.Context, embedding *core.MemberEmbedding) error

	// Get retrieves the embedding record for (memberID, modelVersion).
	// Returns ErrNotFound if no record exists.
	Get(ctx context.Context, memberID uint64, modelVersion string) (*core.MemberEmbedding, error)

	// Exists reports whether an embedding exists for (memberID, modelVersion)
	// and, when it does, the time it was last updated.
	Exists(ctx context.Context, memberID uint64, modelVersion string) (time.Time, bool, error)

	// Query finds members whose embeddings are most similar to vector,
	// ordered by descending score. Scores are cosine similarity normalized
	// and clamped to [0, 1]. activeOnly filters at the store level.
	Query(ctx context.Context, vector []float32, limit int, activeOnly bool) ([]core.SearchResult, error)

	// HybridQuery blends vector similarity with lexical relevance of text
	// against the stored searchable text:
	//
	//	combined = vectorWeight*vectorScore + textWeight*textRank
	//
	// With vectorWeight=1 and textWeight=0 the ranking is identical to Query.
	HybridQuery(ctx context.Context, vector []float32, text string, vectorWeight, textWeight float32, limit int, activeOnly bool) ([]core.SearchResult, error)

	// Delete removes all embedding records for a member, across model
	// versions. Deleting an unknown member is a no-op so that at-least-once
	// delete events stay idempotent.
	Delete(ctx context.Context, memberID uint64) error

	// Stats summarizes the stored embeddings for the repository's model
	// version.
	Stats(ctx context.Context) (core.IndexStats, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
