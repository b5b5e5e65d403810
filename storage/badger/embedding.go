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


package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/fansearch/core"
	"github.com/poiesic/fansearch/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository for BadgerDB.
// Queries are an exact cosine scan over normalized vectors; the repository
// is bound to one model version and ignores records from others.
type EmbeddingRepository struct {
	backend      *Backend
	modelVersion string
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates an EmbeddingRepository bound to modelVersion.
func NewEmbeddingRepository(backend *Backend, modelVersion string) (*EmbeddingRepository, error) {
	if modelVersion == "" {
		return nil, core.E(core.KindInvalidInput, "badger.NewEmbeddingRepository", core.ErrEmptyModelVersion)
	}
	return &EmbeddingRepository{
		backend:      backend,
		modelVersion: modelVersion,
	}, nil
}

// Close releases repository resources. The backend is owned by the caller
// and stays open.
func (r *EmbeddingRepository) Close() error {
	return nil
}

// Upsert stores an embedding record, replacing any existing record with the
// same (MemberID, ModelVersion) key.
func (r *EmbeddingRepository) Upsert(ctx context.Context, embedding *core.MemberEmbedding) error {
	if err := core.ValidateMemberEmbedding(embedding); err != nil {
		return err
	}

	embedding.UpdatedAt = time.Now().UTC()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEmbeddingKey(embedding.MemberID, embedding.ModelVersion)
		if err := tx.Set(key, storage.MarshalEmbedding(embedding)); err != nil {
			return err
		}
		indexKey := makeMemberIndexKey(embedding.MemberID, embedding.ModelVersion)
		if err := tx.Set(indexKey, []byte{}); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return core.E(core.KindStore, "badger.Upsert", err)
	}
	return nil
}

// Get retrieves the embedding record for (memberID, modelVersion).
func (r *EmbeddingRepository) Get(ctx context.Context, memberID uint64, modelVersion string) (*core.MemberEmbedding, error) {
	var embedding *core.MemberEmbedding

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(memberID, modelVersion))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			embedding, err = storage.UnmarshalEmbedding(val)
			return err
		})
	}, false)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, core.E(core.KindEntityNotFound, "badger.Get", storage.ErrNotFound)
		}
		return nil, core.E(core.KindStore, "badger.Get", err)
	}
	return embedding, nil
}

// Exists reports whether an embedding exists for (memberID, modelVersion).
func (r *EmbeddingRepository) Exists(ctx context.Context, memberID uint64, modelVersion string) (time.Time, bool, error) {
	embedding, err := r.Get(ctx, memberID, modelVersion)
	if err != nil {
		if core.KindOf(err) == core.KindEntityNotFound {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return embedding.UpdatedAt, true, nil
}

// Query finds the members most similar to vector, ordered by descending score.
func (r *EmbeddingRepository) Query(ctx context.Context, vector []float32, limit int, activeOnly bool) ([]core.SearchResult, error) {
	return r.scan(ctx, "badger.Query", limit, activeOnly, func(e *core.MemberEmbedding) float32 {
		return core.CosineSimilarity(vector, e.Vector)
	})
}

// HybridQuery blends vector similarity with lexical relevance of text against
// the stored searchable text. Weights are applied as given, not normalized.
func (r *EmbeddingRepository) HybridQuery(ctx context.Context, vector []float32, text string, vectorWeight, textWeight float32, limit int, activeOnly bool) ([]core.SearchResult, error) {
	return r.scan(ctx, "badger.HybridQuery", limit, activeOnly, func(e *core.MemberEmbedding) float32 {
		score := vectorWeight * core.CosineSimilarity(vector, e.Vector)
		if textWeight != 0 {
			score += textWeight * textRank(e.SearchableText, text)
		}
		return core.ClampScore(score)
	})
}

// scan walks every record of the bound model version, scores it, and returns
// the top limit results ordered by descending score. Ties break on member ID
// so Query and HybridQuery order identically when textWeight is zero.
func (r *EmbeddingRepository) scan(ctx context.Context, op string, limit int, activeOnly bool, score func(*core.MemberEmbedding) float32) ([]core.SearchResult, error) {
	if limit < 1 {
		return nil, core.E(core.KindInvalidInput, op, storage.ErrInvalidQuery)
	}

	var results []core.SearchResult

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fmt.Sprintf("%s:%s:", embeddingPrefix, r.modelVersion))
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var embedding *core.MemberEmbedding
			err := iter.Item().Value(func(val []byte) error {
				var err error
				embedding, err = storage.UnmarshalEmbedding(val)
				return err
			})
			if err != nil {
				return err
			}
			if embedding == nil || len(embedding.Vector) == 0 {
				continue
			}
			if activeOnly && !embedding.Active {
				continue
			}

			results = append(results, core.SearchResult{
				MemberID:    embedding.MemberID,
				DisplayName: embedding.DisplayName,
				Score:       core.ClampScore(score(embedding)),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, core.E(core.KindStore, op, err)
	}

	slices.SortFunc(results, func(a, b core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.MemberID < b.MemberID {
			return -1
		}
		if a.MemberID > b.MemberID {
			return 1
		}
		return 0
	})
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	return results, nil
}

// Delete removes all embedding records for a member, across model versions.
// Deleting an unknown member is a no-op.
func (r *EmbeddingRepository) Delete(ctx context.Context, memberID uint64) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialMemberIndexKey(memberID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var indexKeys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			indexKeys = append(indexKeys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, indexKey := range indexKeys {
			modelVersion := modelVersionFromIndexKey(indexKey, memberID)
			if err := tx.Delete(makeEmbeddingKey(memberID, modelVersion)); err != nil {
				return err
			}
			if err := tx.Delete(indexKey); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return core.E(core.KindStore, "badger.Delete", err)
	}
	return nil
}

// Stats summarizes the stored embeddings for the bound model version.
func (r *EmbeddingRepository) Stats(ctx context.Context) (core.IndexStats, error) {
	stats := core.IndexStats{
		Dimension:    core.EmbeddingDim,
		ModelVersion: r.modelVersion,
		IndexType:    "exact-cosine-scan",
		UpdatedAt:    time.Now().UTC(),
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fmt.Sprintf("%s:%s:", embeddingPrefix, r.modelVersion))
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var embedding *core.MemberEmbedding
			err := iter.Item().Value(func(val []byte) error {
				var err error
				embedding, err = storage.UnmarshalEmbedding(val)
				return err
			})
			if err != nil {
				return err
			}
			stats.TotalEmbeddings++
			if embedding.Active {
				stats.ActiveEmbeddings++
			}
		}
		return nil
	}, false)
	if err != nil {
		return core.IndexStats{}, core.E(core.KindStore, "badger.Stats", err)
	}
	return stats, nil
}
