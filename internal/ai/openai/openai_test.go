package openai

import (
	"context"
	"errors"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spigell/cv-matcher/internal/ai"
	"go.uber.org/zap"
)

type stubChat struct {
	req  goopenai.ChatCompletionRequest
	resp goopenai.ChatCompletionResponse
	err  error
}

func (s *stubChat) CreateChatCompletion(_ context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	s.req = req
	return s.resp, s.err
}

type stubEmbeddings struct {
	resp goopenai.EmbeddingResponse
	err  error
}

func (s *stubEmbeddings) CreateEmbeddings(context.Context, goopenai.EmbeddingRequestConverter) (goopenai.EmbeddingResponse, error) {
	return s.resp, s.err
}

func TestGeneratorSendsSystemAndUserMessages(t *testing.T) {
	chat := &stubChat{resp: goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{Message: goopenai.ChatCompletionMessage{Content: " answer \n"}}},
	}}
	g := &Generator{client: chat, model: "gpt", logger: zap.NewNop()}

	out, err := g.GenerateContent(context.Background(), "be brief", "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "answer" {
		t.Fatalf("unexpected output %q", out)
	}

	if len(chat.req.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(chat.req.Messages))
	}
	if chat.req.Messages[0].Role != goopenai.ChatMessageRoleSystem || chat.req.Messages[1].Content != "question" {
		t.Fatalf("unexpected messages: %+v", chat.req.Messages)
	}
}

func TestGeneratorNoChoices(t *testing.T) {
	g := &Generator{client: &stubChat{}, model: "gpt", logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "", "q"); err == nil {
		t.Fatal("expected error when no choices are returned")
	}
}

func TestEmbedderOrdersByIndex(t *testing.T) {
	e := &Embedder{client: &stubEmbeddings{resp: goopenai.EmbeddingResponse{Data: []goopenai.Embedding{
		{Index: 1, Embedding: []float32{0, 1}},
		{Index: 0, Embedding: []float32{1, 0}},
	}}}, model: "m"}

	vectors, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors[0].Values[0] != 1 || vectors[1].Values[1] != 1 {
		t.Fatalf("vectors not ordered by index: %+v", vectors)
	}
}

func TestEmbedderErrors(t *testing.T) {
	tests := []struct {
		name string
		stub *stubEmbeddings
	}{
		{name: "api failure", stub: &stubEmbeddings{err: errors.New("rate limited")}},
		{name: "short response", stub: &stubEmbeddings{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := (&Embedder{client: tc.stub, model: "m"}).Embed(context.Background(), []string{"a"})

			var callErr *ai.ModelCallError
			if !errors.As(err, &callErr) {
				t.Fatalf("expected ModelCallError, got %v", err)
			}
		})
	}
}
