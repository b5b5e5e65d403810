package core

import "time"

// EmbeddingDim is the vector dimension produced by the deployed embedding
// model. Records with any other dimension are rejected by the repository.
const EmbeddingDim = 1536

// DefaultModelVersion identifies the embedding model whose vectors are
// currently stored. Changing the model requires a full reindex.
const DefaultModelVersion = "text-embedding-3-small"

// MemberEmbedding is one stored embedding record for a fan-site member.
// At most one record exists per (MemberID, ModelVersion).
type MemberEmbedding struct {
	MemberID       uint64
	Vector         []float32 // Normalized embedding, length EmbeddingDim
	SearchableText string    // Text the vector was computed from
	ContentHash    string    // Hash of SearchableText, used to skip redundant reindexing
	DisplayName    string
	Active         bool
	ModelVersion   string
	UpdatedAt      time.Time
}

// SearchQuery is an immutable description of one search request.
// Construct with NewSearchQuery; invalid option values are silently
// clamped to their bounds and defaults retained.
type SearchQuery struct {
	Text          string
	Limit         int
	ActiveOnly    bool
	MinSimilarity float32
}

// Query limit bounds.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// QueryOption configures a SearchQuery.
type QueryOption func(*SearchQuery)

// WithLimit sets the maximum number of results.
// Values outside [1, MaxSearchLimit] are clamped, not rejected.
func WithLimit(limit int) QueryOption {
	return func(q *SearchQuery) {
		q.Limit = ClampLimit(limit)
	}
}

// WithActiveOnly restricts results to active members.
func WithActiveOnly(activeOnly bool) QueryOption {
	return func(q *SearchQuery) {
		q.ActiveOnly = activeOnly
	}
}

// WithMinSimilarity sets the minimum score a result must reach.
// Values outside [0, 1] are clamped, not rejected.
func WithMinSimilarity(min float32) QueryOption {
	return func(q *SearchQuery) {
		q.MinSimilarity = ClampScore(min)
	}
}

// NewSearchQuery creates a SearchQuery with defaults applied.
func NewSearchQuery(text string, opts ...QueryOption) SearchQuery {
	q := SearchQuery{
		Text:  text,
		Limit: DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// ClampLimit bounds a result limit to [1, MaxSearchLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

// SearchResult is one ranked hit. Results are produced fresh per query and
// only ever persisted as part of a cached result set.
type SearchResult struct {
	MemberID    uint64  `json:"memberId"`
	DisplayName string  `json:"name"`
	Score       float32 `json:"score"` // Always within [0, 1]
	Rank        int     `json:"rank"`  // 1-based position
}

// EventType identifies the kind of member mutation an event describes.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// ReindexEvent is a member-change notification observed from the upstream
// member service. Delivery is at-least-once; handlers must be idempotent.
type ReindexEvent struct {
	EventID       string    `json:"eventId"`
	MemberID      uint64    `json:"entityId"`
	EventType     EventType `json:"eventType"`
	ChangedFields []string  `json:"changedFields,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source,omitempty"`
}

// IndexStatus reports the outcome of an index operation.
type IndexStatus string

const (
	// StatusIndexed means a first-time embedding was created.
	StatusIndexed IndexStatus = "INDEXED"
	// StatusReindexed means an existing embedding was replaced.
	StatusReindexed IndexStatus = "REINDEXED"
	// StatusExists means a current embedding was already present and
	// no provider call was made.
	StatusExists IndexStatus = "EXISTS"
)

// IndexStats summarizes the state of the embedding store.
type IndexStats struct {
	TotalEmbeddings  int       `json:"totalEmbeddings"`
	ActiveEmbeddings int       `json:"activeEmbeddings"`
	Dimension        int       `json:"embeddingDimension"`
	ModelVersion     string    `json:"model"`
	IndexType        string    `json:"indexType"`
	UpdatedAt        time.Time `json:"-"`
}
