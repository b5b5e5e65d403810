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


// Package fansearch wires the semantic member search subsystem: embedding
// acquisition, vector persistence, hybrid ranking, result caching, and
// event-driven re-indexing.
package fansearch

import (
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/fansearch/ai"
	"github.com/poiesic/fansearch/ai/openai"
	"github.com/poiesic/fansearch/cache"
	"github.com/poiesic/fansearch/core"
	"github.com/poiesic/fansearch/member"
	"github.com/poiesic/fansearch/reindex"
	"github.com/poiesic/fansearch/search"
	"github.com/poiesic/fansearch/server"
	"github.com/poiesic/fansearch/storage"
	"github.com/poiesic/fansearch/storage/badger"
)

// Service owns the lifecycle of every component in the subsystem.
type Service struct {
	backend  *badger.Backend
	repo     storage.EmbeddingRepository
	cache    *cache.Cache
	embedder ai.Embedder
	searcher *search.Searcher
	indexer  *reindex.Indexer
	consumer *reindex.Consumer
	nc       *nats.Conn
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig     *ai.Config
	embedder     ai.Embedder // overrides aiConfig when set
	modelVersion string
	natsURL      string
	inMemory     bool
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(cfg *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.aiConfig = cfg
	}
}

// WithEmbedder injects an embedder directly, bypassing the provider
// configuration. Intended for tests.
func WithEmbedder(embedder ai.Embedder) ServiceOption {
	return func(o *serviceOptions) {
		o.embedder = embedder
	}
}

// WithModelVersion sets the model version embeddings are stored under.
func WithModelVersion(modelVersion string) ServiceOption {
	return func(o *serviceOptions) {
		o.modelVersion = modelVersion
	}
}

// WithNATSURL enables the reindex event consumer on the given broker.
// Without it the service still serves search and manual indexing.
func WithNATSURL(url string) ServiceOption {
	return func(o *serviceOptions) {
		o.natsURL = url
	}
}

// WithInMemoryStore opens the embedding store in memory. Intended for tests.
func WithInMemoryStore() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// NewService opens the embedding store at dbPath and wires the subsystem.
// source provides member records for indexing.
func NewService(dbPath string, source member.Source, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig:     ai.DefaultConfig(),
		modelVersion: core.DefaultModelVersion,
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(dbPath, options.inMemory)
	if err != nil {
		return nil, err
	}

	repo, err := badger.NewEmbeddingRepository(backend, options.modelVersion)
	if err != nil {
		backend.Close()
		return nil, err
	}

	resultCache, err := cache.New()
	if err != nil {
		repo.Close()
		backend.Close()
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			resultCache.Close()
			repo.Close()
			backend.Close()
			return nil, err
		}
	}

	searcher, err := search.NewSearcher(repo, embedder, resultCache,
		search.WithModelVersion(options.modelVersion))
	if err != nil {
		resultCache.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}

	indexer, err := reindex.NewIndexer(repo, embedder, source, resultCache,
		reindex.WithIndexerModelVersion(options.modelVersion))
	if err != nil {
		resultCache.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}

	consumer, err := reindex.NewConsumer(indexer)
	if err != nil {
		resultCache.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}

	svc := &Service{
		backend:  backend,
		repo:     repo,
		cache:    resultCache,
		embedder: embedder,
		searcher: searcher,
		indexer:  indexer,
		consumer: consumer,
		logger:   slog.Default(),
	}

	if options.natsURL != "" {
		nc, err := nats.Connect(options.natsURL, nats.Name("fansearch"))
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.nc = nc
		if err := consumer.Subscribe(nc); err != nil {
			svc.Close()
			return nil, err
		}
	}

	return svc, nil
}

// Searcher returns the search orchestrator.
func (s *Service) Searcher() *search.Searcher {
	return s.searcher
}

// Indexer returns the member indexer.
func (s *Service) Indexer() *reindex.Indexer {
	return s.indexer
}

// Server returns an HTTP server for the REST surface.
func (s *Service) Server() *server.Server {
	return server.New(s.searcher, s.indexer, s.repo, s.cache)
}

// Close stops the consumer and releases every component.
func (s *Service) Close() error {
	if err := s.consumer.Stop(); err != nil {
		s.logger.Error("error stopping consumer", "err", err)
	}
	if s.nc != nil {
		s.nc.Close()
	}
	s.cache.Close()
	if err := s.repo.Close(); err != nil {
		s.logger.Error("error closing repository", "err", err)
	}
	return s.backend.Close()
}
