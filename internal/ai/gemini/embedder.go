package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultEmbeddingModel = "text-embedding-004"
	// maxEmbedBatch is the number of texts the API accepts per request.
	maxEmbedBatch = 100
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Embedder struct {
	models contentEmbedder
	model  string
	logger *zap.Logger
}

func NewEmbedder(client *genai.Client, cfg Config, log *zap.Logger) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}

	model := strings.TrimSpace(cfg.EmbeddingModel)
	if model == "" {
		model = defaultEmbeddingModel
	}

	return &Embedder{
		models: client.Models,
		model:  model,
		logger: logger.WithCommonFields(log, Provider, model),
	}, nil
}

func (e *Embedder) Name() string { return Provider + "/" + e.model }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([]ai.Vector, error) {
	vectors := make([]ai.Vector, 0, len(texts))

	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
		}

		resp, err := e.models.EmbedContent(ctx, e.model, contents, nil)
		if err != nil {
			return nil, &ai.ModelCallError{Op: "embed", Provider: Provider, Err: err}
		}
		if resp == nil || len(resp.Embeddings) != len(contents) {
			return nil, &ai.ModelCallError{
				Op:       "embed",
				Provider: Provider,
				Err:      fmt.Errorf("expected %d embeddings in batch", len(contents)),
			}
		}

		for _, emb := range resp.Embeddings {
			if emb == nil {
				return nil, &ai.ModelCallError{Op: "embed", Provider: Provider, Err: errors.New("nil embedding returned")}
			}
			vectors = append(vectors, ai.NewVector(emb.Values))
		}

		e.logger.Debug("gemini embed batch", zap.Int("batch_size", len(contents)))
	}

	return vectors, nil
}
