package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/utils"
)

const summarizePrompt = `Answer the question using only the provided context.
If the context does not contain the answer, say so briefly.
Answer in the language of the question, in at most three sentences.`

// Summarizer answers questions over retrieved context with a generator.
type Summarizer struct {
	generator     ai.Generator
	maxInputChars int
}

func NewSummarizer(generator ai.Generator, maxInputChars int) *Summarizer {
	if maxInputChars <= 0 {
		maxInputChars = defaultMaxInputChars
	}
	return &Summarizer{generator: generator, maxInputChars: maxInputChars}
}

func (s *Summarizer) Summarize(ctx context.Context, question, text string) (string, error) {
	if s == nil || s.generator == nil {
		return "", errors.New("summarizer is not initialized")
	}

	text, _ = utils.TruncateRunes(strings.TrimSpace(text), s.maxInputChars)
	message := fmt.Sprintf("Question:\n%s\n\nContext:\n%s", strings.TrimSpace(question), text)

	out, err := s.generator.GenerateContent(ctx, summarizePrompt, message)
	if err != nil {
		return "", &ai.ModelCallError{Op: "summarize", Provider: s.generator.Model(), Err: err}
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", &ai.ModelCallError{Op: "summarize", Provider: s.generator.Model(), Err: errors.New("empty response")}
	}
	return out, nil
}
