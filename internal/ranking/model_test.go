package ranking

import (
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RankingConfig
		want    Kind
		wantErr bool
	}{
		{"none", config.RankingConfig{}, KindNone, false},
		{"vsm", config.RankingConfig{Name: "vsm", Document: "lnc", Query: "ltc"}, KindVSM, false},
		{"tfidf alias", config.RankingConfig{Name: "TFIDF", Document: "nnn", Query: "nnn"}, KindVSM, false},
		{"vsm idf doc", config.RankingConfig{Name: "vsm", Document: "ltn", Query: "ltc"}, KindVSM, false},
		{"vsm idf and cosine on doc", config.RankingConfig{Name: "vsm", Document: "ltc", Query: "ltc"}, 0, true},
		{"bad tf letter", config.RankingConfig{Name: "vsm", Document: "xnc", Query: "ltc"}, 0, true},
		{"bad df letter", config.RankingConfig{Name: "vsm", Document: "lnc", Query: "lxc"}, 0, true},
		{"bad norm letter", config.RankingConfig{Name: "vsm", Document: "lnx", Query: "ltc"}, 0, true},
		{"short scheme", config.RankingConfig{Name: "vsm", Document: "ln", Query: "ltc"}, 0, true},
		{"bm25", config.RankingConfig{Name: "bm25", K1: 1.2, B: 0.75}, KindBM25, false},
		{"bm25 b too large", config.RankingConfig{Name: "bm25", K1: 1.2, B: 1.5}, 0, true},
		{"bm25 negative k1", config.RankingConfig{Name: "bm25", K1: -1, B: 0.5}, 0, true},
		{"unknown", config.RankingConfig{Name: "pagerank"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrConfig) {
					t.Fatalf("error = %v, want ErrConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if m.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", m.Kind, tt.want)
			}
		})
	}
}

func TestTermWeight(t *testing.T) {
	natural := Scheme{TF: 'n', DF: 'n', Norm: 'n'}
	logarithmic := Scheme{TF: 'l', DF: 'n', Norm: 'n'}
	if got := natural.TermWeight(3); got != 3 {
		t.Errorf("n: TermWeight(3) = %v", got)
	}
	if got := logarithmic.TermWeight(10); math.Abs(got-2) > 1e-12 {
		t.Errorf("l: TermWeight(10) = %v, want 2", got)
	}
	if got := logarithmic.TermWeight(0); got != 0 {
		t.Errorf("TermWeight(0) = %v, want 0", got)
	}
}

func TestDocumentWeightsCosine(t *testing.T) {
	s := Scheme{TF: 'l', DF: 'n', Norm: 'c'}
	weights := s.DocumentWeights(map[string]int{"cat": 3, "dog": 1, "bird": 7})
	var sum float64
	for _, w := range weights {
		sum += w * w
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("squared weights sum to %v, want 1", sum)
	}
	if weights["bird"] <= weights["cat"] || weights["cat"] <= weights["dog"] {
		t.Errorf("weights do not follow counts: %v", weights)
	}
}

func TestIDF(t *testing.T) {
	if got := IDF(100, 10); math.Abs(got-1) > 1e-12 {
		t.Errorf("IDF(100, 10) = %v, want 1", got)
	}
	if got := IDF(5, 5); got != 0 {
		t.Errorf("IDF(5, 5) = %v, want 0", got)
	}
	if got := IDF(5, 0); got != 0 {
		t.Errorf("IDF(5, 0) = %v, want 0", got)
	}
}

func TestBM25WeightAtAverageLength(t *testing.T) {
	p := BM25Params{K1: 1.2, B: 1}
	idf := 0.7
	for _, tf := range []int{1, 2, 5} {
		got := p.Weight(idf, tf, 10, 10)
		f := float64(tf)
		want := idf * (p.K1 + 1) * f / (p.K1 + f)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("tf=%d: Weight = %v, want %v", tf, got, want)
		}
	}
}

func TestBM25WeightLengthNormalisation(t *testing.T) {
	p := BM25Params{K1: 1.2, B: 0.75}
	short := p.Weight(1, 2, 5, 10)
	long := p.Weight(1, 2, 20, 10)
	if short <= long {
		t.Errorf("short document weight %v not above long document weight %v", short, long)
	}
	flat := BM25Params{K1: 1.2, B: 0}
	if a, b := flat.Weight(1, 2, 5, 10), flat.Weight(1, 2, 20, 10); a != b {
		t.Errorf("b=0 still normalises length: %v vs %v", a, b)
	}
}
