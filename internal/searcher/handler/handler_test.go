package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

type fakeSearcher struct {
	gotLimit int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error) {
	f.gotLimit = limit
	switch query {
	case "the":
		return nil, apperrors.New(apperrors.ErrInvalidQuery, "no searchable terms")
	case "slow":
		return nil, context.DeadlineExceeded
	case "broken":
		return nil, errors.New("disk gone")
	case "nothing":
		return &executor.SearchResult{Query: query}, nil
	}
	return &executor.SearchResult{
		Query:     query,
		TotalHits: 1,
		Results:   []ranker.ScoredDoc{{DocID: "D1", Score: 1.5}},
	}, nil
}

type fakeCache struct {
	err   error
	calls int
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.calls++
	return f.err
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantLimit int
		wantDocs  []ranker.ScoredDoc
	}{
		{"hit", "/api/v1/search?q=cat&limit=5", http.StatusOK, 5, []ranker.ScoredDoc{{DocID: "D1", Score: 1.5}}},
		{"default limit", "/api/v1/search?q=cat", http.StatusOK, 0, []ranker.ScoredDoc{{DocID: "D1", Score: 1.5}}},
		{"no results", "/api/v1/search?q=nothing", http.StatusOK, 0, []ranker.ScoredDoc{}},
		{"only stopwords", "/api/v1/search?q=the", http.StatusOK, 0, []ranker.ScoredDoc{}},
		{"missing query", "/api/v1/search", http.StatusBadRequest, 0, nil},
		{"bad limit", "/api/v1/search?q=cat&limit=ten", http.StatusBadRequest, 0, nil},
		{"negative limit", "/api/v1/search?q=cat&limit=-1", http.StatusBadRequest, 0, nil},
		{"timeout", "/api/v1/search?q=slow", http.StatusGatewayTimeout, 0, nil},
		{"failure", "/api/v1/search?q=broken", http.StatusInternalServerError, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearcher{gotLimit: -1}
			rec := serve(New(s, nil, &indexer.Metadata{}, 0), http.MethodGet, tt.target)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if s.gotLimit != tt.wantLimit {
				t.Errorf("limit passed = %d, want %d", s.gotLimit, tt.wantLimit)
			}
			var got executor.SearchResult
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.wantDocs, got.Results); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearchMethodNotAllowed(t *testing.T) {
	rec := serve(New(&fakeSearcher{}, nil, &indexer.Metadata{}, 0), http.MethodPost, "/api/v1/search?q=cat")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestIndexStats(t *testing.T) {
	meta := &indexer.Metadata{Documents: 5, Postings: 14, Segments: 3, Positional: true}
	meta.Ranking.Name = "bm25"
	rec := serve(New(&fakeSearcher{}, &fakeCache{}, meta, 12), http.MethodGet, "/api/v1/index")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["documents"] != 5.0 || got["vocabulary"] != 12.0 || got["ranking"] != "bm25" || got["cache_enabled"] != true {
		t.Errorf("stats = %v", got)
	}
}

func TestCacheInvalidate(t *testing.T) {
	tests := []struct {
		name  string
		cache *fakeCache
		want  int
	}{
		{"disabled", nil, http.StatusServiceUnavailable},
		{"ok", &fakeCache{}, http.StatusOK},
		{"store down", &fakeCache{err: errors.New("circuit open")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inv Invalidator
			if tt.cache != nil {
				inv = tt.cache
			}
			rec := serve(New(&fakeSearcher{}, inv, &indexer.Metadata{}, 0), http.MethodPost, "/api/v1/cache/invalidate")
			if rec.Code != tt.want {
				t.Errorf("code = %d, want %d", rec.Code, tt.want)
			}
			if tt.cache != nil && tt.cache.calls != 1 {
				t.Errorf("Invalidate called %d times", tt.cache.calls)
			}
		})
	}
}
