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


package cache

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/poiesic/fansearch/core"
)

// TTL policy per value class.
const (
	SearchResultTTL  = 5 * time.Minute
	QueryEmbedTTL    = 1 * time.Hour
	MemberStatusTTL  = 1 * time.Hour
	ServiceStatusTTL = 1 * time.Minute
)

const (
	defaultNumCounters = 1e6
	defaultMaxCost     = 64 << 20 // 64 MiB
	defaultBufferItems = 64
)

// Cache is a TTL cache for search results, query embeddings, and status
// summaries. All failures degrade to a miss with a logged warning; a cache
// problem must never fail the caller's request.
//
// Writes are applied asynchronously by the backing store; tests should call
// Wait before asserting on a freshly written key.
type Cache struct {
	store      *ristretto.Cache[string, []byte]
	generation atomic.Uint64
	logger     *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// New creates a Cache.
func New(opts ...Option) (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: defaultNumCounters,
		MaxCost:     defaultMaxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, core.E(core.KindConnection, "cache.New", err)
	}

	c := &Cache{
		store:  store,
		logger: slog.Default().With("component", "cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the raw bytes stored under key, or a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.store.Get(key)
}

// Set stores val under key with the given TTL. The cost is the value size.
func (c *Cache) Set(key string, val []byte, ttl time.Duration) {
	if !c.store.SetWithTTL(key, val, int64(len(val)), ttl) {
		// Dropped by admission policy; the next lookup recomputes.
		c.logger.Debug("cache write dropped", "key", key)
	}
}

// Del removes keys.
func (c *Cache) Del(keys ...string) {
	for _, key := range keys {
		c.store.Del(key)
	}
}

// GetResults returns a cached search result set, or a miss.
// Deserialization failures are treated as a miss.
func (c *Cache) GetResults(key string) ([]core.SearchResult, bool) {
	data, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	var results []core.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Warn("discarding undecodable cached results", "key", key, "err", err)
		c.store.Del(key)
		return nil, false
	}
	return results, true
}

// SetResults caches a search result set for SearchResultTTL.
func (c *Cache) SetResults(key string, results []core.SearchResult) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("failed to serialize results for cache", "key", key, "err", err)
		return
	}
	c.Set(key, data, SearchResultTTL)
}

// GetVector returns a cached embedding vector, or a miss.
func (c *Cache) GetVector(key string) ([]float32, bool) {
	data, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	vector, _, err := core.VectorMUS.Unmarshal(data)
	if err != nil {
		c.logger.Warn("discarding undecodable cached vector", "key", key, "err", err)
		c.store.Del(key)
		return nil, false
	}
	return vector, true
}

// SetVector caches an embedding vector for QueryEmbedTTL.
func (c *Cache) SetVector(key string, vector []float32) {
	data := make([]byte, core.VectorMUS.Size(vector))
	core.VectorMUS.Marshal(vector, data)
	c.Set(key, data, QueryEmbedTTL)
}

// GetStats returns a cached status summary, or a miss.
func (c *Cache) GetStats() (core.IndexStats, bool) {
	data, ok := c.store.Get(serviceStatusKey)
	if !ok {
		return core.IndexStats{}, false
	}
	var stats core.IndexStats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.logger.Warn("discarding undecodable cached stats", "err", err)
		c.store.Del(serviceStatusKey)
		return core.IndexStats{}, false
	}
	return stats, true
}

// SetStats caches a status summary for ServiceStatusTTL.
func (c *Cache) SetStats(stats core.IndexStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		c.logger.Warn("failed to serialize stats for cache", "err", err)
		return
	}
	c.Set(serviceStatusKey, data, ServiceStatusTTL)
}

// InvalidateMember drops all cache entries keyed by a member and expires
// every cached search result set that might include it.
func (c *Cache) InvalidateMember(memberID uint64) {
	c.store.Del(MemberStatusKey(memberID))
	c.InvalidateSearches()
}

// InvalidateSearches expires all cached search result sets. The backing
// store cannot delete by pattern, so search keys carry a generation that
// this bumps; orphaned entries age out via TTL.
func (c *Cache) InvalidateSearches() {
	c.generation.Add(1)
}

// Wait blocks until pending writes are applied. Intended for tests.
func (c *Cache) Wait() {
	c.store.Wait()
}

// Close releases the backing store.
func (c *Cache) Close() {
	c.store.Close()
}
