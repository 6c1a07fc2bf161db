package matching

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/ai/hashing"
	"github.com/spigell/cv-matcher/internal/chunker"
	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/keywords"
	"github.com/spigell/cv-matcher/internal/scorer"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubEmbedder struct {
	embed func(text string) ([]float32, error)
}

func (s stubEmbedder) Name() string { return "stub" }

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([]ai.Vector, error) {
	out := make([]ai.Vector, 0, len(texts))
	for _, text := range texts {
		values, err := s.embed(text)
		if err != nil {
			return nil, err
		}
		out = append(out, ai.NewVector(values))
	}
	return out, nil
}

type stubAssessor struct {
	answer ai.Answer
	err    error
}

func (s stubAssessor) Assess(context.Context, string, string) (ai.Answer, error) {
	return s.answer, s.err
}

func newDeps(t *testing.T, embedder ai.Embedder) Deps {
	t.Helper()

	extractor, err := keywords.New(keywords.Config{Stopwords: []string{keywords.English}})
	if err != nil {
		t.Fatalf("keywords: %v", err)
	}
	sc, err := scorer.New(scorer.DefaultConfig())
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	if embedder == nil {
		embedder, err = hashing.New(hashing.DefaultDimensions, extractor)
		if err != nil {
			t.Fatalf("hashing: %v", err)
		}
	}

	return Deps{
		Chunker:   chunker.Default(),
		Extractor: extractor,
		Embedder:  embedder,
		Scorer:    sc,
		Logger:    zap.NewNop(),
	}
}

func newEngine(t *testing.T, deps Deps, cfg Config) *Engine {
	t.Helper()
	e, err := New(deps, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func TestMatchRejectsNoDocuments(t *testing.T) {
	e := newEngine(t, newDeps(t, nil), Config{})

	if _, err := e.Match(context.Background(), nil, "go", Options{}); !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestMatchValidatesOptions(t *testing.T) {
	deps := newDeps(t, nil)
	deps.Embedder = nil
	e := newEngine(t, deps, Config{})
	docs := []document.Document{document.FromText("cv", "Go")}

	if _, err := e.Match(context.Background(), docs, "go", Options{Semantic: true}); err == nil {
		t.Fatal("expected error for semantic mode without embedder")
	}
	if _, err := e.Match(context.Background(), docs, "go", Options{Assess: true}); err == nil {
		t.Fatal("expected error for assessment without assessor")
	}
}

func TestMatchLexicalScenario(t *testing.T) {
	e := newEngine(t, newDeps(t, nil), Config{})
	docs := []document.Document{document.FromText("cv.pdf", "Experienced SQL and Python developer")}

	results, err := e.Match(context.Background(), docs, "Looking for SQL and Python developer with AWS", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := results[0]
	for _, term := range []string{"sql", "python", "developer"} {
		if !slices.Contains(res.MatchedTerms, term) {
			t.Fatalf("expected %q in matched terms %v", term, res.MatchedTerms)
		}
	}
	if !slices.Contains(res.MissingTerms, "aws") {
		t.Fatalf("expected aws in missing terms %v", res.MissingTerms)
	}
	for _, term := range res.MatchedTerms {
		if slices.Contains(res.MissingTerms, term) {
			t.Fatalf("term %q is both matched and missing", term)
		}
	}

	want := float64(len(res.MatchedTerms)) / float64(len(res.MatchedTerms)+len(res.MissingTerms)) * 100
	if res.Score != want {
		t.Fatalf("expected lexical score %f, got %f", want, res.Score)
	}
}

func TestMatchEmptyDocument(t *testing.T) {
	e := newEngine(t, newDeps(t, nil), Config{})
	docs := []document.Document{document.FromText("scan.pdf", "  \n\t ")}

	for _, opts := range []Options{{}, {Semantic: true}} {
		results, err := e.Match(context.Background(), docs, "Go developer", opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		res := results[0]
		if res.Score != 0 || res.Note != NoteNoText {
			t.Fatalf("unexpected result: %+v", res)
		}
		if res.MatchedTerms == nil || res.MissingTerms == nil || len(res.MatchedTerms)+len(res.MissingTerms) != 0 {
			t.Fatalf("expected empty non-nil term lists, got %+v", res)
		}
	}
}

func TestMatchPreservesOrderAndIsIdempotent(t *testing.T) {
	e := newEngine(t, newDeps(t, nil), Config{Concurrency: 3})
	docs := []document.Document{
		document.FromText("a", "Go developer with Kubernetes and Terraform"),
		document.FromText("b", ""),
		document.FromText("c", "Java developer, Spring Boot"),
		document.FromText("d", "Kubernetes operator written in Go"),
		document.FromText("e", "Pastry chef"),
	}
	query := "Senior Go developer with Kubernetes experience"

	first, err := e.Match(context.Background(), docs, query, Options{Semantic: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.Match(context.Background(), docs, query, Options{Semantic: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(docs) {
		t.Fatalf("expected %d results, got %d", len(docs), len(first))
	}
	for i := range docs {
		if first[i].DocumentID != docs[i].ID {
			t.Fatalf("result %d: expected %s, got %s", i, docs[i].ID, first[i].DocumentID)
		}
		if first[i].Score < 0 || first[i].Score > 100 {
			t.Fatalf("score out of range: %f", first[i].Score)
		}
		if first[i].Score != second[i].Score || !slices.Equal(first[i].MatchedTerms, second[i].MatchedTerms) {
			t.Fatalf("results differ between runs for %s", docs[i].ID)
		}
	}

	if first[0].Score <= first[4].Score {
		t.Fatalf("expected Go developer to outscore pastry chef: %f vs %f", first[0].Score, first[4].Score)
	}
}

func TestMatchIsolatesEmbeddingFailures(t *testing.T) {
	embedder := stubEmbedder{embed: func(text string) ([]float32, error) {
		if strings.Contains(text, "broken") {
			return nil, errors.New("model unavailable")
		}
		return []float32{1, float32(len(text) % 3)}, nil
	}}

	core, logs := observer.New(zapcore.WarnLevel)
	deps := newDeps(t, embedder)
	deps.Logger = zap.New(core)
	e := newEngine(t, deps, Config{})

	docs := []document.Document{
		document.FromText("good", "Go developer"),
		document.FromText("bad", "broken Go developer"),
	}

	results, err := e.Match(context.Background(), docs, "Go developer", Options{Semantic: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if results[0].Note != "" || results[0].Score == 0 {
		t.Fatalf("expected healthy result for good document, got %+v", results[0])
	}
	if results[1].Score != 0 || !strings.Contains(results[1].Note, "embedding failed") {
		t.Fatalf("expected placeholder for failing document, got %+v", results[1])
	}
	if !slices.Contains(results[1].MatchedTerms, "developer") {
		t.Fatalf("expected keyword terms for failing document, got %v", results[1].MatchedTerms)
	}
	if logs.FilterMessage("semantic scoring degraded").Len() != 1 {
		t.Fatalf("expected one degradation warning")
	}
}

func TestMatchQueryEmbeddingFailure(t *testing.T) {
	embedder := stubEmbedder{embed: func(text string) ([]float32, error) {
		if text == "Go developer" {
			return nil, errors.New("timeout")
		}
		return []float32{1, 0}, nil
	}}
	e := newEngine(t, newDeps(t, embedder), Config{})
	docs := []document.Document{document.FromText("a", "Go"), document.FromText("b", "Rust")}

	results, err := e.Match(context.Background(), docs, "Go developer", Options{Semantic: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, res := range results {
		if res.Score != 0 || !strings.Contains(res.Note, "query embedding failed") {
			t.Fatalf("expected query failure note, got %+v", res)
		}
	}
}

func TestMatchDimensionMismatchIsFatal(t *testing.T) {
	embedder := stubEmbedder{embed: func(text string) ([]float32, error) {
		if text == "Go" {
			return []float32{1, 0}, nil
		}
		return []float32{1, 0, 0}, nil
	}}
	e := newEngine(t, newDeps(t, embedder), Config{})

	_, err := e.Match(context.Background(), []document.Document{document.FromText("a", "Go developer")}, "Go", Options{Semantic: true})
	if !errors.Is(err, ai.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestMatchEmptyQuery(t *testing.T) {
	e := newEngine(t, newDeps(t, nil), Config{})
	docs := []document.Document{document.FromText("a", "Go developer")}

	for _, opts := range []Options{{}, {Semantic: true}} {
		results, err := e.Match(context.Background(), docs, "   ", opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[0].Score != 0 {
			t.Fatalf("expected zero score for empty query, got %f", results[0].Score)
		}
	}
}

func TestMatchAssessment(t *testing.T) {
	tests := []struct {
		name     string
		assessor stubAssessor
		wantNote bool
	}{
		{
			name:     "structured",
			assessor: stubAssessor{answer: ai.StructuredAnswer{Score: 80, Explanation: "fits"}},
		},
		{
			name:     "raw",
			assessor: stubAssessor{answer: ai.RawAnswer{Text: "looks fine"}},
		},
		{
			name:     "failure",
			assessor: stubAssessor{err: errors.New("quota exceeded")},
			wantNote: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := newDeps(t, nil)
			deps.Assessor = tc.assessor
			e := newEngine(t, deps, Config{})

			results, err := e.Match(context.Background(), []document.Document{document.FromText("a", "Go developer")}, "Go", Options{Assess: true})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			res := results[0]
			if tc.wantNote {
				if res.Assessment != nil || !strings.Contains(res.Note, "assessment failed") {
					t.Fatalf("expected failure note without assessment, got %+v", res)
				}
				return
			}
			if !reflect.DeepEqual(res.Assessment, tc.assessor.answer) {
				t.Fatalf("expected assessment %+v, got %+v", tc.assessor.answer, res.Assessment)
			}
		})
	}
}

func TestMatchTopKCapsTerms(t *testing.T) {
	e := newEngine(t, newDeps(t, nil), Config{TopK: 2})
	docs := []document.Document{document.FromText("a", "nothing relevant")}

	results, err := e.Match(context.Background(), docs, "go rust python java kotlin", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results[0].MissingTerms) != 2 {
		t.Fatalf("expected 2 missing terms, got %v", results[0].MissingTerms)
	}
	if results[0].Score != 0 {
		t.Fatalf("expected zero lexical score, got %f", results[0].Score)
	}
}

func TestMatchCancelled(t *testing.T) {
	e := newEngine(t, newDeps(t, nil), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Match(ctx, []document.Document{document.FromText("a", "Go")}, "Go", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
