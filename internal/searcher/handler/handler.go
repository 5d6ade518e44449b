// Package handler exposes the search API over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/logger"
)

// Searcher runs a free-text query. Both the executor and the cached searcher
// implement it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
}

// Invalidator drops cached results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	searcher Searcher
	cache    Invalidator
	meta     *indexer.Metadata
	vocab    int
	logger   *slog.Logger
}

// New builds the handler over the index described by meta. cache may be nil
// when result caching is disabled.
func New(s Searcher, cache Invalidator, meta *indexer.Metadata, vocabulary int) *Handler {
	return &Handler{
		searcher: s,
		cache:    cache,
		meta:     meta,
		vocab:    vocabulary,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index", h.IndexStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?q=...&limit=N. A limit of zero or none
// means the configured default.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	result, err := h.searcher.Search(ctx, query, limit)
	switch {
	case executor.IsNoResults(err):
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{Query: query, Results: []ranker.ScoredDoc{}})
		return
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("search timed out", "query", query)
		h.writeError(w, http.StatusGatewayTimeout, "search timed out")
		return
	case err != nil:
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if result.Results == nil {
		result.Results = []ranker.ScoredDoc{}
	}
	h.writeJSON(w, http.StatusOK, result)
}

// IndexStats reports how the served index was built.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"created_at":     h.meta.CreatedAt,
		"source":         h.meta.Source,
		"documents":      h.meta.Documents,
		"vocabulary":     h.vocab,
		"postings":       h.meta.Postings,
		"segments":       h.meta.Segments,
		"avg_doc_length": h.meta.AvgDocLength,
		"positional":     h.meta.Positional,
		"ranking":        h.meta.Ranking.Name,
		"cache_enabled":  h.cache != nil,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
