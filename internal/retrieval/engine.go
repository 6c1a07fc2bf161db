// Package retrieval answers questions over a set of documents. Every call
// builds its own exact vector index and discards it when done.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/chunker"
	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/utils"
	"github.com/spigell/cv-matcher/internal/vectorindex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NoRelevantInformation is the answer when nothing relevant was retrieved.
const NoRelevantInformation = "no relevant information found"

const (
	DefaultK               = 4
	DefaultMinSimilarity   = 0.1
	DefaultMaxContextChars = 6000
	DefaultConcurrency     = 1
)

var (
	ErrEmptyQuery  = errors.New("query must not be empty")
	ErrNoDocuments = errors.New("no documents submitted")
)

type Config struct {
	K int `mapstructure:"k"`
	// MinSimilarity drops weak hits. Like the scorer bounds it depends on
	// the embedding model.
	MinSimilarity   float64 `mapstructure:"min-similarity"`
	MaxContextChars int     `mapstructure:"max-context-chars"`
	Concurrency     int     `mapstructure:"concurrency"`
}

func DefaultConfig() Config {
	return Config{
		K:               DefaultK,
		MinSimilarity:   DefaultMinSimilarity,
		MaxContextChars: DefaultMaxContextChars,
		Concurrency:     DefaultConcurrency,
	}
}

type Deps struct {
	Chunker    *chunker.Chunker
	Embedder   ai.Embedder
	Summarizer ai.Summarizer
	Logger     *zap.Logger
}

// Passage is a retrieved chunk that made it into the context.
type Passage struct {
	DocumentID string  `json:"document_id" yaml:"document_id"`
	Ordinal    int     `json:"ordinal" yaml:"ordinal"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
	Text       string  `json:"text" yaml:"text"`
}

type Result struct {
	Answer string `json:"answer" yaml:"answer"`
	// Sources are the distinct document ids of the passages, first retrieved first.
	Sources  []string  `json:"sources" yaml:"sources"`
	Found    bool      `json:"found" yaml:"found"`
	Degraded bool      `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	Note     string    `json:"note,omitempty" yaml:"note,omitempty"`
	Passages []Passage `json:"passages,omitempty" yaml:"passages,omitempty"`
}

func notFound() *Result {
	return &Result{Answer: NoRelevantInformation, Sources: []string{}}
}

type Engine struct {
	chunker    *chunker.Chunker
	embedder   ai.Embedder
	summarizer ai.Summarizer
	logger     *zap.Logger
	cfg        Config
}

func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Chunker == nil || deps.Embedder == nil || deps.Summarizer == nil {
		return nil, errors.New("retrieval requires a chunker, an embedder and a summarizer")
	}
	if cfg.K < 0 || cfg.MaxContextChars < 0 {
		return nil, fmt.Errorf("invalid retrieval config: k=%d max-context-chars=%d", cfg.K, cfg.MaxContextChars)
	}
	if cfg.MinSimilarity < -1 || cfg.MinSimilarity > 1 {
		return nil, fmt.Errorf("min similarity must be within [-1,1], got %.3f", cfg.MinSimilarity)
	}
	if cfg.K == 0 {
		cfg.K = DefaultK
	}
	if cfg.MaxContextChars == 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		summarizer: deps.Summarizer,
		logger:     log,
		cfg:        cfg,
	}, nil
}

// Answer retrieves the k passages closest to query and summarizes them. A
// non-positive k uses the configured default.
func (e *Engine) Answer(ctx context.Context, docs []document.Document, query string, k int) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	if k <= 0 {
		k = e.cfg.K
	}

	log := logger.WithRequest(e.logger, "answer", uuid.NewString())
	log.Info("answer started", zap.Int("documents", len(docs)), zap.Int("k", k))

	entries, err := e.embedDocuments(ctx, docs, log)
	if err != nil {
		return nil, err
	}

	idx, err := vectorindex.Build(entries)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if idx.Len() == 0 {
		log.Info("nothing to search", zap.Error(vectorindex.ErrEmptyIndex))
		return notFound(), nil
	}

	queryVectors, err := ai.EmbedChecked(ctx, e.embedder, []string{query})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("query embedding failed", zap.Error(err))
		res := notFound()
		res.Degraded = true
		res.Note = fmt.Sprintf("query embedding failed: %v", err)
		return res, nil
	}
	if queryVectors[0].Dims() == idx.Dims() && queryVectors[0].Norm() == 0 {
		log.Info("query has no searchable content")
		return notFound(), nil
	}

	hits, err := idx.Query(queryVectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	passages := make([]Passage, 0, len(hits))
	for _, h := range hits {
		if strings.TrimSpace(h.Chunk.Text) == "" || h.Similarity() < e.cfg.MinSimilarity {
			continue
		}
		passages = append(passages, Passage{
			DocumentID: h.Chunk.DocumentID,
			Ordinal:    h.Chunk.Ordinal,
			Similarity: h.Similarity(),
			Text:       h.Chunk.Text,
		})
	}

	log.Debug("retrieved passages", zap.Int("hits", len(hits)), zap.Int("kept", len(passages)))

	if len(passages) == 0 {
		return notFound(), nil
	}

	res := &Result{Found: true, Passages: passages, Sources: sources(passages)}

	contextText := buildContext(passages, e.cfg.MaxContextChars)
	answer, err := e.summarizer.Summarize(ctx, query, contextText)
	if err != nil {
		log.Warn("summarization failed, returning context", zap.Error(err))
		res.Answer = contextText
		res.Degraded = true
		res.Note = fmt.Sprintf("summarization failed: %v", err)
		return res, nil
	}
	res.Answer = answer

	log.Info("answer finished", zap.Strings("sources", res.Sources))

	return res, nil
}

// embedDocuments chunks and embeds every document. Documents whose embedding
// fails are skipped; entries keep document order.
func (e *Engine) embedDocuments(ctx context.Context, docs []document.Document, log *zap.Logger) ([]vectorindex.Entry, error) {
	perDoc := make([][]vectorindex.Entry, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, doc := range docs {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			chunks := e.chunker.Chunk(doc.ID, doc.Text)
			if len(chunks) == 0 {
				log.Debug("document has no text", zap.String(logger.FieldDocument, doc.ID))
				return nil
			}

			vectors, err := ai.EmbedChecked(gctx, e.embedder, chunker.Texts(chunks))
			if err != nil {
				log.Warn("document skipped", zap.String(logger.FieldDocument, doc.ID), zap.Error(err))
				return nil
			}

			entries := make([]vectorindex.Entry, len(chunks))
			for j := range chunks {
				entries[j] = vectorindex.Entry{Chunk: chunks[j], Vector: vectors[j]}
			}
			perDoc[i] = entries
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []vectorindex.Entry
	for _, de := range perDoc {
		entries = append(entries, de...)
	}
	return entries, nil
}

func buildContext(passages []Passage, maxChars int) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	out, _ := utils.TruncateRunes(strings.Join(texts, "\n\n"), maxChars)
	return out
}

func sources(passages []Passage) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		if _, ok := seen[p.DocumentID]; ok {
			continue
		}
		seen[p.DocumentID] = struct{}{}
		out = append(out, p.DocumentID)
	}
	return out
}
