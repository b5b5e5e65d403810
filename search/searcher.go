package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/fansearch/ai"
	"github.com/poiesic/fansearch/cache"
	"github.com/poiesic/fansearch/core"
	"github.com/poiesic/fansearch/storage"
)

const (
	// storeRetryAttempts bounds store-query retries: the initial attempt
	// plus one retry with backoff before surfacing failure.
	storeRetryAttempts = 2

	defaultRetryDelay = 200 * time.Millisecond
)

// Searcher coordinates cache lookup, embedding generation, and hybrid
// similarity queries. It is the primary entry point for semantic member
// search.
type Searcher struct {
	repo         storage.EmbeddingRepository
	embedder     ai.Embedder
	cache        *cache.Cache
	modelVersion string
	vectorWeight float32
	textWeight   float32
	retryDelay   time.Duration
	logger       *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithWeights sets the hybrid scoring weights. The weights are applied as
// given; they are not normalized.
func WithWeights(vectorWeight, textWeight float32) Option {
	return func(s *Searcher) error {
		s.vectorWeight = vectorWeight
		s.textWeight = textWeight
		return nil
	}
}

// WithRetryDelay sets the base backoff delay for the retried store query.
func WithRetryDelay(delay time.Duration) Option {
	return func(s *Searcher) error {
		s.retryDelay = delay
		return nil
	}
}

// WithModelVersion sets the model version used for embedding cache keys.
// Default is core.DefaultModelVersion.
func WithModelVersion(modelVersion string) Option {
	return func(s *Searcher) error {
		s.modelVersion = modelVersion
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	repo storage.EmbeddingRepository,
	embedder ai.Embedder,
	resultCache *cache.Cache,
	opts ...Option,
) (*Searcher, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if resultCache == nil {
		return nil, ErrCacheRequired
	}

	s := &Searcher{
		repo:         repo,
		embedder:     embedder,
		cache:        resultCache,
		modelVersion: core.DefaultModelVersion,
		vectorWeight: storage.DefaultVectorWeight,
		textWeight:   storage.DefaultTextWeight,
		retryDelay:   defaultRetryDelay,
		logger:       slog.Default().With("component", "searcher"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

type embedOutcome struct {
	vector []float32
	err    error
}

// Search executes one query. It returns the ranked results and whether they
// were served from cache.
//
// The cache check and the embedding call run as independent branches so the
// embedding is ready immediately on a miss. On a hit the in-flight embedding
// call is allowed to complete and its result is discarded; the provider
// adapter has no cheap cancellation primitive.
func (s *Searcher) Search(ctx context.Context, query core.SearchQuery) ([]core.SearchResult, bool, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, false, core.E(core.KindEmptyQuery, "search.Search", core.ErrEmptyText)
	}
	if query.Limit == 0 {
		query.Limit = core.DefaultSearchLimit
	}
	query.Limit = core.ClampLimit(query.Limit)
	query.MinSimilarity = core.ClampScore(query.MinSimilarity)

	// Kick off the embedding branch before touching the cache. The buffered
	// channel lets the goroutine finish even when the hit path returns first.
	embedCh := make(chan embedOutcome, 1)
	go func() {
		vector, err := s.queryVector(ctx, query.Text)
		embedCh <- embedOutcome{vector: vector, err: err}
	}()

	key := s.cache.SearchKey(query)
	if results, ok := s.cache.GetResults(key); ok {
		s.logger.Debug("serving cached results", "query", query.Text, "results", len(results))
		return results, true, nil
	}

	var outcome embedOutcome
	select {
	case outcome = <-embedCh:
	case <-ctx.Done():
		return nil, false, core.E(core.KindTimeout, "search.Search", ctx.Err())
	}
	if outcome.err != nil {
		s.logger.Error("error generating embedding for query", "query", query.Text, "err", outcome.err)
		return nil, false, outcome.err
	}

	// A store failure gets one retry with backoff before surfacing.
	var results []core.SearchResult
	err := core.RetryWithBackoff(ctx, func() error {
		var err error
		results, err = s.repo.HybridQuery(ctx, outcome.vector, query.Text,
			s.vectorWeight, s.textWeight, query.Limit, query.ActiveOnly)
		return err
	}, storeRetryAttempts, s.retryDelay)
	if err != nil {
		s.logger.Error("error querying for similar members", "err", err)
		return nil, false, err
	}

	results = filterMinSimilarity(results, query.MinSimilarity)

	// Write-back failures degrade silently inside the cache layer; the
	// response is already computed.
	s.cache.SetResults(key, results)

	return results, false, nil
}

// queryVector produces the query embedding, consulting the embedding cache
// before calling the provider.
func (s *Searcher) queryVector(ctx context.Context, text string) ([]float32, error) {
	key := cache.EmbedKey(text, s.modelVersion)
	if vector, ok := s.cache.GetVector(key); ok {
		return vector, nil
	}

	vector, err := s.embedder.EmbedText(ctx, text, ai.TaskQuery)
	if err != nil {
		return nil, err
	}
	vector = core.NormalizeVector(vector)

	s.cache.SetVector(key, vector)
	return vector, nil
}

// filterMinSimilarity drops results scoring below min and re-ranks the rest.
// The store already ordered by descending score, so ranks stay contiguous.
func filterMinSimilarity(results []core.SearchResult, min float32) []core.SearchResult {
	if min <= 0 {
		return results
	}
	filtered := results[:0]
	for _, result := range results {
		if result.Score >= min {
			result.Rank = len(filtered) + 1
			filtered = append(filtered, result)
		}
	}
	return filtered
}
