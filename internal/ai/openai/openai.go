// Package openai adapts OpenAI-compatible APIs to the ai contracts.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/logger"
	"go.uber.org/zap"
)

const (
	Provider = "openai"

	defaultModel          = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
)

type Config struct {
	BaseURL        string `mapstructure:"base-url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, conv goopenai.EmbeddingRequestConverter) (goopenai.EmbeddingResponse, error)
}

// NewClient builds a client for the OpenAI API or any compatible endpoint.
func NewClient(apiKey string, cfg Config) (*goopenai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return goopenai.NewClientWithConfig(clientCfg), nil
}

type Generator struct {
	client chatClient
	model  string
	logger *zap.Logger
}

func NewGenerator(client *goopenai.Client, cfg Config, log *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &Generator{client: client, model: model, logger: logger.WithCommonFields(log, Provider, model)}
}

func (g *Generator) Model() string { return g.model }

func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	var messages []goopenai.ChatCompletionMessage
	if system = strings.TrimSpace(system); system != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: message})

	resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
		// A literal 0 is dropped from the request body.
		Temperature: math.SmallestNonzeroFloat32,
	})
	if err != nil {
		return "", fmt.Errorf("create openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}

	g.logger.Debug("openai chat completion",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type Embedder struct {
	client embeddingClient
	model  string
}

func NewEmbedder(client *goopenai.Client, cfg Config) *Embedder {
	model := strings.TrimSpace(cfg.EmbeddingModel)
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &Embedder{client: client, model: model}
}

func (e *Embedder) Name() string { return Provider + "/" + e.model }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([]ai.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, &ai.ModelCallError{Op: "embed", Provider: Provider, Err: err}
	}

	if len(resp.Data) != len(texts) {
		return nil, &ai.ModelCallError{
			Op:       "embed",
			Provider: Provider,
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	vectors := make([]ai.Vector, len(texts))
	for i, datum := range resp.Data {
		idx := datum.Index
		if idx < 0 || idx >= len(texts) {
			idx = i
		}
		vectors[idx] = ai.NewVector(datum.Embedding)
	}

	return vectors, nil
}
