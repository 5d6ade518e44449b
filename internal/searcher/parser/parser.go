package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// QueryPlan is a normalised free-text query.
type QueryPlan struct {
	// Terms keeps query order and duplicates; counts and proximity use both.
	Terms    []string
	RawQuery string
}

// Parse normalises query with the tokenizer the index was built with. A query
// with no surviving terms is ErrInvalidQuery.
func Parse(query string, tok *tokenizer.Tokenizer) (*QueryPlan, error) {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidQuery, "empty query")
	}
	for _, t := range tok.Tokenize(query) {
		plan.Terms = append(plan.Terms, t.Term)
	}
	if len(plan.Terms) == 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidQuery, "query %q has no indexable terms", query)
	}
	return plan, nil
}

// Distinct returns the unique terms of the plan in first-seen order.
func (p *QueryPlan) Distinct() []string {
	seen := make(map[string]struct{}, len(p.Terms))
	out := make([]string, 0, len(p.Terms))
	for _, t := range p.Terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Key is the normalised form used for cache keys.
func (p *QueryPlan) Key() string {
	return strings.Join(p.Terms, " ")
}
