// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reindex

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/poiesic/fansearch/ai"
	"github.com/poiesic/fansearch/cache"
	"github.com/poiesic/fansearch/core"
	"github.com/poiesic/fansearch/member"
	"github.com/poiesic/fansearch/storage"
)

// Receipt reports the outcome of indexing one member.
type Receipt struct {
	MemberID      uint64           `json:"memberId"`
	Status        core.IndexStatus `json:"status"`
	EmbeddingSize int              `json:"embeddingSize"`
	Model         string           `json:"model"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Indexer embeds one member's searchable text and persists the result.
// It is used by both the reindex event consumer and the index API.
type Indexer struct {
	repo         storage.EmbeddingRepository
	embedder     ai.Embedder
	source       member.Source
	cache        *cache.Cache
	modelVersion string
	maxRetries   int
	retryDelay   time.Duration
	logger       *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithIndexerLogger sets a custom logger.
func WithIndexerLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
	}
}

// WithIndexerRetries sets the retry policy for embedding calls.
func WithIndexerRetries(maxRetries int, retryDelay time.Duration) IndexerOption {
	return func(ix *Indexer) {
		if maxRetries > 0 {
			ix.maxRetries = maxRetries
		}
		if retryDelay > 0 {
			ix.retryDelay = retryDelay
		}
	}
}

// WithIndexerModelVersion sets the model version records are written under.
// Default is core.DefaultModelVersion.
func WithIndexerModelVersion(modelVersion string) IndexerOption {
	return func(ix *Indexer) {
		ix.modelVersion = modelVersion
	}
}

// NewIndexer creates an Indexer.
func NewIndexer(
	repo storage.EmbeddingRepository,
	embedder ai.Embedder,
	source member.Source,
	resultCache *cache.Cache,
	opts ...IndexerOption,
) (*Indexer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if source == nil {
		return nil, ErrSourceRequired
	}
	if resultCache == nil {
		return nil, ErrCacheRequired
	}

	ix := &Indexer{
		repo:         repo,
		embedder:     embedder,
		source:       source,
		cache:        resultCache,
		modelVersion: core.DefaultModelVersion,
		maxRetries:   3,
		retryDelay:   time.Second,
		logger:       slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Index embeds and stores one member.
//
// A non-forced index of a member that already has a current embedding (same
// model version, unchanged searchable text and metadata) returns StatusExists
// without calling the embedding provider. The active flag and display name are
// checked separately from the content hash because they are stored on the
// record but not part of the searchable text; when only they drifted the
// stored vector is reused and the record rewritten, still without a provider
// call. The upsert replaces by (memberID, modelVersion), so repeating an
// index is idempotent.
func (ix *Indexer) Index(ctx context.Context, memberID uint64, force bool) (*Receipt, error) {
	if memberID == 0 {
		return nil, core.E(core.KindInvalidInput, "reindex.Index", core.ErrInvalidMemberID)
	}

	m, err := ix.source.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	text := m.SearchableText()
	if text == "" {
		return nil, core.E(core.KindInvalidInput, "reindex.Index", core.ErrEmptyText)
	}
	hash := core.ContentHash(text)

	existing, err := ix.repo.Get(ctx, memberID, ix.modelVersion)
	if err != nil && core.KindOf(err) != core.KindEntityNotFound {
		return nil, err
	}

	if existing != nil && !force && existing.ContentHash == hash {
		if metadataCurrent(existing, m) {
			receipt := &Receipt{
				MemberID:      memberID,
				Status:        core.StatusExists,
				EmbeddingSize: len(existing.Vector),
				Model:         ix.modelVersion,
				Timestamp:     existing.UpdatedAt,
			}
			ix.cacheReceipt(receipt)
			return receipt, nil
		}
		return ix.refreshMetadata(ctx, existing, m)
	}

	var vector []float32
	err = core.RetryWithBackoff(ctx, func() error {
		var err error
		vector, err = ix.embedder.EmbedText(ctx, text, ai.TaskDocument)
		return err
	}, ix.maxRetries, ix.retryDelay)
	if err != nil {
		return nil, err
	}
	vector = core.NormalizeVector(vector)

	embedding := &core.MemberEmbedding{
		MemberID:       memberID,
		Vector:         vector,
		SearchableText: text,
		ContentHash:    hash,
		DisplayName:    m.DisplayName,
		Active:         m.Active,
		ModelVersion:   ix.modelVersion,
	}
	if err := ix.repo.Upsert(ctx, embedding); err != nil {
		return nil, err
	}

	ix.cache.InvalidateMember(memberID)

	status := core.StatusIndexed
	if existing != nil {
		status = core.StatusReindexed
	}
	ix.logger.Info("indexed member", "memberID", memberID, "status", status, "forced", force)

	receipt := &Receipt{
		MemberID:      memberID,
		Status:        status,
		EmbeddingSize: len(vector),
		Model:         ix.modelVersion,
		Timestamp:     embedding.UpdatedAt,
	}
	ix.cacheReceipt(receipt)
	return receipt, nil
}

// metadataCurrent reports whether the stored record still matches the
// member's fields that live outside the searchable text.
func metadataCurrent(existing *core.MemberEmbedding, m *member.Member) bool {
	return existing.Active == m.Active && existing.DisplayName == m.DisplayName
}

// refreshMetadata rewrites a stored record whose searchable text is unchanged
// but whose display metadata drifted, reusing the stored vector so no
// provider call is made.
func (ix *Indexer) refreshMetadata(ctx context.Context, existing *core.MemberEmbedding, m *member.Member) (*Receipt, error) {
	refreshed := *existing
	refreshed.Active = m.Active
	refreshed.DisplayName = m.DisplayName
	if err := ix.repo.Upsert(ctx, &refreshed); err != nil {
		return nil, err
	}
	ix.cache.InvalidateMember(refreshed.MemberID)
	ix.logger.Info("refreshed member metadata", "memberID", refreshed.MemberID, "active", refreshed.Active)

	receipt := &Receipt{
		MemberID:      refreshed.MemberID,
		Status:        core.StatusReindexed,
		EmbeddingSize: len(refreshed.Vector),
		Model:         ix.modelVersion,
		Timestamp:     refreshed.UpdatedAt,
	}
	ix.cacheReceipt(receipt)
	return receipt, nil
}

// IndexBatch indexes several members with one batched provider call.
// Members whose content is unchanged are skipped the same way Index skips
// them; only the remainder is embedded. Intended for warming a fresh store.
func (ix *Indexer) IndexBatch(ctx context.Context, memberIDs []uint64, force bool) ([]Receipt, error) {
	receipts := make([]Receipt, 0, len(memberIDs))

	type pending struct {
		member  *member.Member
		text    string
		hash    string
		existed bool
	}
	var toEmbed []pending

	for _, memberID := range memberIDs {
		if memberID == 0 {
			return nil, core.E(core.KindInvalidInput, "reindex.IndexBatch", core.ErrInvalidMemberID)
		}

		m, err := ix.source.GetMember(ctx, memberID)
		if err != nil {
			return nil, err
		}
		text := m.SearchableText()
		if text == "" {
			return nil, core.Ef(core.KindInvalidInput, "reindex.IndexBatch",
				"member %d has no searchable text", memberID)
		}
		hash := core.ContentHash(text)

		existing, err := ix.repo.Get(ctx, memberID, ix.modelVersion)
		if err != nil && core.KindOf(err) != core.KindEntityNotFound {
			return nil, err
		}
		if existing != nil && !force && existing.ContentHash == hash {
			if metadataCurrent(existing, m) {
				receipt := Receipt{
					MemberID:      memberID,
					Status:        core.StatusExists,
					EmbeddingSize: len(existing.Vector),
					Model:         ix.modelVersion,
					Timestamp:     existing.UpdatedAt,
				}
				ix.cacheReceipt(&receipt)
				receipts = append(receipts, receipt)
				continue
			}
			receipt, err := ix.refreshMetadata(ctx, existing, m)
			if err != nil {
				return nil, err
			}
			receipts = append(receipts, *receipt)
			continue
		}

		toEmbed = append(toEmbed, pending{member: m, text: text, hash: hash, existed: existing != nil})
	}

	if len(toEmbed) == 0 {
		return receipts, nil
	}

	texts := make([]string, len(toEmbed))
	for i, p := range toEmbed {
		texts[i] = p.text
	}

	var vectors [][]float32
	err := core.RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = ix.embedder.EmbedTexts(ctx, texts, ai.TaskDocument)
		return err
	}, ix.maxRetries, ix.retryDelay)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(toEmbed) {
		return nil, core.Ef(core.KindProviderAPI, "reindex.IndexBatch",
			"embedding count mismatch: expected %d, got %d", len(toEmbed), len(vectors))
	}

	for i, p := range toEmbed {
		embedding := &core.MemberEmbedding{
			MemberID:       p.member.ID,
			Vector:         core.NormalizeVector(vectors[i]),
			SearchableText: p.text,
			ContentHash:    p.hash,
			DisplayName:    p.member.DisplayName,
			Active:         p.member.Active,
			ModelVersion:   ix.modelVersion,
		}
		if err := ix.repo.Upsert(ctx, embedding); err != nil {
			return nil, err
		}
		ix.cache.InvalidateMember(p.member.ID)
		status := core.StatusIndexed
		if p.existed {
			status = core.StatusReindexed
		}
		receipt := Receipt{
			MemberID:      p.member.ID,
			Status:        status,
			EmbeddingSize: len(embedding.Vector),
			Model:         ix.modelVersion,
			Timestamp:     embedding.UpdatedAt,
		}
		ix.cacheReceipt(&receipt)
		receipts = append(receipts, receipt)
	}

	ix.logger.Info("indexed member batch", "requested", len(memberIDs), "embedded", len(toEmbed))
	return receipts, nil
}

// Remove deletes a member's embedding records and invalidates related cache
// entries. Removing an unknown member is a no-op.
func (ix *Indexer) Remove(ctx context.Context, memberID uint64) error {
	if memberID == 0 {
		return core.E(core.KindInvalidInput, "reindex.Remove", core.ErrInvalidMemberID)
	}
	if err := ix.repo.Delete(ctx, memberID); err != nil {
		return err
	}
	ix.cache.InvalidateMember(memberID)
	ix.logger.Info("removed member embedding", "memberID", memberID)
	return nil
}

// Status reports the last known index state of one member without touching
// the provider. Served from the member status cache when warm, otherwise
// rebuilt from the stored record.
func (ix *Indexer) Status(ctx context.Context, memberID uint64) (*Receipt, error) {
	if memberID == 0 {
		return nil, core.E(core.KindInvalidInput, "reindex.Status", core.ErrInvalidMemberID)
	}

	if data, ok := ix.cache.Get(cache.MemberStatusKey(memberID)); ok {
		var receipt Receipt
		if err := json.Unmarshal(data, &receipt); err == nil {
			return &receipt, nil
		}
		ix.cache.Del(cache.MemberStatusKey(memberID))
	}

	existing, err := ix.repo.Get(ctx, memberID, ix.modelVersion)
	if err != nil {
		return nil, err
	}
	receipt := &Receipt{
		MemberID:      memberID,
		Status:        core.StatusExists,
		EmbeddingSize: len(existing.Vector),
		Model:         ix.modelVersion,
		Timestamp:     existing.UpdatedAt,
	}
	ix.cacheReceipt(receipt)
	return receipt, nil
}

// cacheReceipt stores the latest index receipt under the member status key
// for Status lookups. Serialization failures just skip the cache.
func (ix *Indexer) cacheReceipt(receipt *Receipt) {
	data, err := json.Marshal(receipt)
	if err != nil {
		return
	}
	ix.cache.Set(cache.MemberStatusKey(receipt.MemberID), data, cache.MemberStatusTTL)
}
