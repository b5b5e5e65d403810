package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/poiesic/fansearch/cache"
	"github.com/poiesic/fansearch/core"
	"github.com/poiesic/fansearch/reindex"
	"github.com/poiesic/fansearch/search"
	"github.com/poiesic/fansearch/storage"
)

// Server exposes the search subsystem over JSON HTTP.
type Server struct {
	searcher *search.Searcher
	indexer  *reindex.Indexer
	repo     storage.EmbeddingRepository
	cache    *cache.Cache
	logger   *slog.Logger
	http     *http.Server
}

// New creates a Server.
func New(searcher *search.Searcher, indexer *reindex.Indexer, repo storage.EmbeddingRepository, resultCache *cache.Cache) *Server {
	return &Server{
		searcher: searcher,
		indexer:  indexer,
		repo:     repo,
		cache:    resultCache,
		logger:   slog.Default().With("component", "http"),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /index", s.handleIndex)
	mux.HandleFunc("PUT /index/{memberId}", s.handleForceReindex)
	mux.HandleFunc("GET /index/{memberId}", s.handleIndexStatus)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// ListenAndServe serves the API on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.logger.Info("serving search API", "addr", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

type searchRequest struct {
	Query         string  `json:"query"`
	Limit         int     `json:"limit,omitempty"`
	ActiveOnly    bool    `json:"activeOnly,omitempty"`
	MinSimilarity float32 `json:"minSimilarity,omitempty"`
}

type searchResponse struct {
	Results      []core.SearchResult `json:"results"`
	TotalResults int                 `json:"totalResults"`
	QueryTimeMs  int64               `json:"queryTimeMs"`
	Cached       bool                `json:"cached"`
	Error        string              `json:"error,omitempty"`
	Code         string              `json:"code,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", core.KindInvalidInput.String())
		return
	}

	opts := []core.QueryOption{core.WithActiveOnly(req.ActiveOnly)}
	if req.Limit != 0 {
		opts = append(opts, core.WithLimit(req.Limit))
	}
	if req.MinSimilarity != 0 {
		opts = append(opts, core.WithMinSimilarity(req.MinSimilarity))
	}
	query := core.NewSearchQuery(req.Query, opts...)

	start := time.Now()
	results, cached, err := s.searcher.Search(r.Context(), query)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		kind := core.KindOf(err)
		if kind == core.KindEmptyQuery {
			writeError(w, http.StatusBadRequest, "query must not be empty", kind.String())
			return
		}
		// Search failures surface as an empty result set with an error
		// flag, never an exception trace.
		s.logger.Error("search failed", "query", req.Query, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, searchResponse{
			Results:     []core.SearchResult{},
			QueryTimeMs: elapsed,
			Error:       "search temporarily unavailable",
			Code:        kind.String(),
		})
		return
	}

	if results == nil {
		results = []core.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Results:      results,
		TotalResults: len(results),
		QueryTimeMs:  elapsed,
		Cached:       cached,
	})
}

type indexRequest struct {
	MemberID     uint64 `json:"memberId"`
	ForceReindex bool   `json:"forceReindex,omitempty"`
}

type indexFailure struct {
	MemberID uint64 `json:"memberId"`
	Status   string `json:"status"`
	Error    string `json:"error"`
	Code     string `json:"code"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", core.KindInvalidInput.String())
		return
	}
	s.index(w, r, req.MemberID, req.ForceReindex)
}

func (s *Server) handleForceReindex(w http.ResponseWriter, r *http.Request) {
	memberID, err := strconv.ParseUint(r.PathValue("memberId"), 10, 64)
	if err != nil || memberID == 0 {
		writeError(w, http.StatusBadRequest, "invalid member id", core.KindInvalidInput.String())
		return
	}
	s.index(w, r, memberID, true)
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	memberID, err := strconv.ParseUint(r.PathValue("memberId"), 10, 64)
	if err != nil || memberID == 0 {
		writeError(w, http.StatusBadRequest, "invalid member id", core.KindInvalidInput.String())
		return
	}

	receipt, err := s.indexer.Status(r.Context(), memberID)
	if err != nil {
		if core.KindOf(err) == core.KindEntityNotFound {
			writeError(w, http.StatusNotFound, "member is not indexed", core.KindEntityNotFound.String())
			return
		}
		s.logger.Error("index status lookup failed", "memberID", memberID, "err", err)
		writeError(w, http.StatusServiceUnavailable, "status unavailable", core.KindOf(err).String())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request, memberID uint64, force bool) {
	receipt, err := s.indexer.Index(r.Context(), memberID, force)
	if err != nil {
		kind := core.KindOf(err)
		status := http.StatusServiceUnavailable
		switch kind {
		case core.KindEntityNotFound:
			status = http.StatusNotFound
		case core.KindInvalidInput, core.KindDimensionMismatch:
			status = http.StatusUnprocessableEntity
		}
		if errors.Is(err, core.ErrInvalidEmbedding) {
			status = http.StatusUnprocessableEntity
			kind = core.KindInvalidInput
		}
		s.logger.Error("index failed", "memberID", memberID, "forced", force, "err", err)
		// The status field gives the caller something to poll or retry on.
		writeJSON(w, status, indexFailure{
			MemberID: memberID,
			Status:   "FAILED",
			Error:    "indexing failed",
			Code:     kind.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type statusResponse struct {
	core.IndexStats
	Status string `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, ok := s.cache.GetStats()
	if !ok {
		var err error
		stats, err = s.repo.Stats(r.Context())
		if err != nil {
			s.logger.Error("failed to read index stats", "err", err)
			writeError(w, http.StatusServiceUnavailable, "status unavailable", core.KindOf(err).String())
			return
		}
		s.cache.SetStats(stats)
	}

	status := "ready"
	if stats.TotalEmbeddings == 0 {
		status = "empty"
	}
	writeJSON(w, http.StatusOK, statusResponse{IndexStats: stats, Status: status})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
