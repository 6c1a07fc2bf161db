// Package matching scores candidate documents against a job description.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/chunker"
	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/keywords"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/scorer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// NoteNoText marks documents without extractable text.
	NoteNoText = "no text found"

	DefaultTopK        = 10
	DefaultConcurrency = 1
)

var ErrNoDocuments = errors.New("no documents submitted")

// Result is one row of the match output.
type Result struct {
	DocumentID   string    `json:"filename" yaml:"filename"`
	Score        float64   `json:"score" yaml:"score"`
	MatchedTerms []string  `json:"matched" yaml:"matched"`
	MissingTerms []string  `json:"missing" yaml:"missing"`
	Note         string    `json:"note,omitempty" yaml:"note,omitempty"`
	Assessment   ai.Answer `json:"assessment,omitempty" yaml:"assessment,omitempty"`
}

type Options struct {
	// Semantic enables chunk embedding scores. Without it the score is the
	// share of query terms found in the document.
	Semantic bool
	// Assess additionally asks the assessor for a structured opinion.
	Assess bool
}

type Config struct {
	TopK        int `mapstructure:"top-k"`
	Concurrency int `mapstructure:"concurrency"`
}

type Deps struct {
	Chunker   *chunker.Chunker
	Extractor *keywords.Extractor
	Embedder  ai.Embedder
	Scorer    *scorer.Scorer
	Assessor  ai.Assessor
	Logger    *zap.Logger
}

type Engine struct {
	chunker   *chunker.Chunker
	extractor *keywords.Extractor
	embedder  ai.Embedder
	scorer    *scorer.Scorer
	assessor  ai.Assessor
	logger    *zap.Logger

	topK        int
	concurrency int
}

func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Extractor == nil {
		return nil, errors.New("keyword extractor is required")
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("top-k must not be negative, got %d", cfg.TopK)
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		chunker:     deps.Chunker,
		extractor:   deps.Extractor,
		embedder:    deps.Embedder,
		scorer:      deps.Scorer,
		assessor:    deps.Assessor,
		logger:      log,
		topK:        cfg.TopK,
		concurrency: cfg.Concurrency,
	}, nil
}

func (e *Engine) validate(opts Options) error {
	if opts.Semantic && (e.embedder == nil || e.chunker == nil || e.scorer == nil) {
		return errors.New("semantic scoring requires a chunker, an embedder and a scorer")
	}
	if opts.Assess && e.assessor == nil {
		return errors.New("assessment requires an assessor")
	}
	return nil
}

// request holds state shared by all documents of one Match call.
type request struct {
	query    string
	opts     Options
	queryVec ai.Vector
	queryErr error
	logger   *zap.Logger
}

// Match returns exactly one result per document, in input order. Per-document
// failures become notes; only invalid input, dimension mismatches and
// cancellation abort the request.
func (e *Engine) Match(ctx context.Context, docs []document.Document, query string, opts Options) ([]Result, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	if err := e.validate(opts); err != nil {
		return nil, fmt.Errorf("invalid match options: %w", err)
	}

	req := &request{
		query:  strings.TrimSpace(query),
		opts:   opts,
		logger: logger.WithRequest(e.logger, "match", uuid.NewString()),
	}

	req.logger.Info("match started",
		zap.Int("documents", len(docs)),
		zap.Bool("semantic", opts.Semantic),
		zap.Bool("assess", opts.Assess),
	)

	if opts.Semantic && req.query != "" {
		vectors, err := ai.EmbedChecked(ctx, e.embedder, []string{req.query})
		if err != nil {
			req.logger.Warn("query embedding failed", zap.Error(err))
			req.queryErr = err
		} else {
			req.queryVec = vectors[0]
		}
	}

	results := make([]Result, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, doc := range docs {
		if err := gctx.Err(); err != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := e.matchDocument(gctx, req, doc)
			if err != nil {
				return fmt.Errorf("document %s: %w", doc.ID, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req.logger.Info("match finished", zap.Int("documents", len(results)))

	return results, nil
}

func (e *Engine) matchDocument(ctx context.Context, req *request, doc document.Document) (Result, error) {
	log := req.logger.With(zap.String(logger.FieldDocument, doc.ID))

	if !doc.HasText() {
		log.Debug("document has no text")
		return Result{
			DocumentID:   doc.ID,
			MatchedTerms: []string{},
			MissingTerms: []string{},
			Note:         NoteNoText,
		}, nil
	}

	cmp := e.extractor.Compare(req.query, doc.Text)
	matched, missing := cmp.Top(e.topK)
	res := Result{DocumentID: doc.ID, MatchedTerms: matched, MissingTerms: missing}

	var notes []string
	if req.opts.Semantic {
		score, note, err := e.semanticScore(ctx, req, doc)
		if err != nil {
			return Result{}, err
		}
		res.Score = score
		if note != "" {
			log.Warn("semantic scoring degraded", zap.String("note", note))
			notes = append(notes, note)
		}
	} else {
		res.Score = keywords.LexicalScore(cmp)
	}

	if req.opts.Assess {
		answer, err := e.assessor.Assess(ctx, doc.Text, req.query)
		if err != nil {
			log.Warn("assessment failed", zap.Error(err))
			notes = append(notes, fmt.Sprintf("assessment failed: %v", err))
		} else {
			res.Assessment = answer
		}
	}

	res.Note = strings.Join(notes, "; ")

	log.Debug("document scored",
		zap.Float64("score", res.Score),
		zap.Int("matched", len(res.MatchedTerms)),
		zap.Int("missing", len(res.MissingTerms)),
	)

	return res, nil
}

// semanticScore returns a note instead of an error for recoverable embedding
// failures. The error is reserved for dimension mismatches.
func (e *Engine) semanticScore(ctx context.Context, req *request, doc document.Document) (float64, string, error) {
	if req.query == "" {
		return 0, "", nil
	}
	if req.queryErr != nil {
		return 0, fmt.Sprintf("query embedding failed: %v", req.queryErr), nil
	}

	chunks := e.chunker.Chunk(doc.ID, doc.Text)
	if len(chunks) == 0 {
		return 0, "", nil
	}

	vectors, err := ai.EmbedChecked(ctx, e.embedder, chunker.Texts(chunks))
	if err != nil {
		return 0, fmt.Sprintf("embedding failed: %v", err), nil
	}

	score, err := e.scorer.Score(req.queryVec, vectors)
	if err != nil {
		return 0, "", fmt.Errorf("score chunks: %w", err)
	}

	return score, "", nil
}
