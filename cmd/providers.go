package cmd

import (
	"context"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/ai/assistant"
	"github.com/spigell/cv-matcher/internal/ai/extractive"
	"github.com/spigell/cv-matcher/internal/ai/gemini"
	"github.com/spigell/cv-matcher/internal/ai/hashing"
	"github.com/spigell/cv-matcher/internal/ai/openai"
	"github.com/spigell/cv-matcher/internal/chunker"
	"github.com/spigell/cv-matcher/internal/keywords"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/retrieval"
	"github.com/spigell/cv-matcher/internal/scorer"
	"github.com/spigell/cv-matcher/internal/secrets"
)

const (
	providerHashing = "hashing"
	providerGemini  = "gemini"
	providerOpenAI  = "openai"

	summarizerExtractive = "extractive"
	summarizerLLM        = "llm"
)

// providers builds collaborators from config. Model clients are created on
// first use and shared between embedder and generator.
type providers struct {
	cfg    *Config
	logger *zap.Logger

	extractor    *keywords.Extractor
	geminiClient *genai.Client
	openaiClient *goopenai.Client
	generator    ai.Generator
}

func newProviders(cfg *Config, logger *zap.Logger) (*providers, error) {
	extractor, err := keywords.New(keywords.Config{
		MinLength:      cfg.Keywords.MinLength,
		Stopwords:      cfg.Keywords.Stopwords,
		ExtraStopwords: cfg.Keywords.ExtraStopwords,
	})
	if err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}

	return &providers{cfg: cfg, logger: logger, extractor: extractor}, nil
}

func (p *providers) chunker() (*chunker.Chunker, error) {
	c, err := chunker.New(chunker.Config{
		MaxSize:         p.cfg.Chunking.MaxSize,
		OverlapFraction: p.cfg.Chunking.Overlap,
	})
	if err != nil {
		return nil, fmt.Errorf("chunking: %w", err)
	}
	return c, nil
}

func (p *providers) scorer() (*scorer.Scorer, error) {
	return scorer.New(scorer.Config{
		Lo:        p.cfg.Scoring.Lo,
		Hi:        p.cfg.Scoring.Hi,
		MaxWeight: p.cfg.Scoring.MaxWeight,
	})
}

func (p *providers) gemini(ctx context.Context) (*genai.Client, error) {
	if p.geminiClient != nil {
		return p.geminiClient, nil
	}

	key, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: p.cfg.AI.Gemini.APIKey,
		File:  p.cfg.AI.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	client, err := gemini.NewClient(ctx, key)
	if err != nil {
		return nil, err
	}
	p.geminiClient = client
	return client, nil
}

func (p *providers) openai() (*goopenai.Client, error) {
	if p.openaiClient != nil {
		return p.openaiClient, nil
	}

	key, err := secrets.Load(secrets.Source{
		Name:  "openai api key",
		Value: p.cfg.AI.OpenAI.APIKey,
		File:  p.cfg.AI.OpenAI.APIKeyFile,
		Env:   "OPENAI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
	}

	client, err := openai.NewClient(key, p.openaiConfig())
	if err != nil {
		return nil, err
	}
	p.openaiClient = client
	return client, nil
}

func (p *providers) geminiConfig() gemini.Config {
	return gemini.Config{
		Model:          p.cfg.AI.Gemini.Model,
		EmbeddingModel: p.cfg.AI.Gemini.EmbeddingModel,
		MaxRetries:     p.cfg.AI.Gemini.MaxRetries,
	}
}

func (p *providers) openaiConfig() openai.Config {
	return openai.Config{
		BaseURL:        p.cfg.AI.OpenAI.BaseURL,
		Model:          p.cfg.AI.OpenAI.Model,
		EmbeddingModel: p.cfg.AI.OpenAI.EmbeddingModel,
	}
}

func (p *providers) embedder(ctx context.Context) (ai.Embedder, error) {
	switch provider := strings.ToLower(strings.TrimSpace(p.cfg.AI.Provider)); provider {
	case "", providerHashing:
		e, err := hashing.New(p.cfg.AI.Hashing.Dimensions, p.extractor)
		if err != nil {
			return nil, fmt.Errorf("hashing embedder: %w", err)
		}
		return e, nil
	case providerGemini:
		client, err := p.gemini(ctx)
		if err != nil {
			return nil, err
		}
		e, err := gemini.NewEmbedder(client, p.geminiConfig(), p.logger)
		if err != nil {
			return nil, err
		}
		return ai.Normalized(e), nil
	case providerOpenAI:
		client, err := p.openai()
		if err != nil {
			return nil, err
		}
		return ai.Normalized(openai.NewEmbedder(client, p.openaiConfig())), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", p.cfg.AI.Provider)
	}
}

func (p *providers) llm(ctx context.Context) (ai.Generator, error) {
	if p.generator != nil {
		return p.generator, nil
	}

	switch llm := strings.ToLower(strings.TrimSpace(p.cfg.AI.LLM)); llm {
	case "", providerGemini:
		client, err := p.gemini(ctx)
		if err != nil {
			return nil, err
		}
		g, err := gemini.NewGenerator(client, p.geminiConfig(), p.logger)
		if err != nil {
			return nil, err
		}
		p.generator = g
	case providerOpenAI:
		client, err := p.openai()
		if err != nil {
			return nil, err
		}
		p.generator = openai.NewGenerator(client, p.openaiConfig(), p.logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", p.cfg.AI.LLM)
	}

	return p.generator, nil
}

func (p *providers) summarizer(ctx context.Context) (ai.Summarizer, error) {
	switch kind := strings.ToLower(strings.TrimSpace(p.cfg.AI.Summarizer)); kind {
	case "", summarizerExtractive:
		return extractive.New(p.extractor, extractive.DefaultMaxSentences), nil
	case summarizerLLM:
		g, err := p.llm(ctx)
		if err != nil {
			return nil, err
		}
		return assistant.NewSummarizer(g, p.cfg.AI.MaxInputChars), nil
	default:
		return nil, fmt.Errorf("unsupported summarizer: %s", p.cfg.AI.Summarizer)
	}
}

func (p *providers) assessor(ctx context.Context) (ai.Assessor, error) {
	g, err := p.llm(ctx)
	if err != nil {
		return nil, err
	}
	return assistant.NewAssessor(g, p.cfg.AI.MaxInputChars, p.cfg.AI.MaxLogLength, p.logger.Named("assessor")), nil
}

// matchEngine wires only what opts need, so lexical runs work offline.
func (p *providers) matchEngine(ctx context.Context, opts matching.Options) (*matching.Engine, error) {
	deps := matching.Deps{Extractor: p.extractor, Logger: p.logger}

	if opts.Semantic {
		var err error
		if deps.Chunker, err = p.chunker(); err != nil {
			return nil, err
		}
		if deps.Scorer, err = p.scorer(); err != nil {
			return nil, err
		}
		if deps.Embedder, err = p.embedder(ctx); err != nil {
			return nil, err
		}
	}

	if opts.Assess {
		var err error
		if deps.Assessor, err = p.assessor(ctx); err != nil {
			return nil, err
		}
	}

	return matching.New(deps, matching.Config{TopK: p.cfg.Keywords.TopK, Concurrency: p.cfg.Concurrency})
}

func (p *providers) retrievalEngine(ctx context.Context) (*retrieval.Engine, error) {
	c, err := p.chunker()
	if err != nil {
		return nil, err
	}
	e, err := p.embedder(ctx)
	if err != nil {
		return nil, err
	}
	s, err := p.summarizer(ctx)
	if err != nil {
		return nil, err
	}

	return retrieval.New(retrieval.Deps{Chunker: c, Embedder: e, Summarizer: s, Logger: p.logger}, p.cfg.Retrieval)
}
