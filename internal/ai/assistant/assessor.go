package assistant

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/utils"
	"go.uber.org/zap"
)

//go:embed prompt.md
var assessPrompt string

const (
	defaultMaxLogLength  = 200
	defaultMaxInputChars = 12000
)

// Assessor asks a generator to compare a document with a job description.
type Assessor struct {
	generator     ai.Generator
	maxInputChars int
	maxLogLen     int
	logger        *zap.Logger
}

func NewAssessor(generator ai.Generator, maxInputChars, maxLogLength int, logger *zap.Logger) *Assessor {
	if maxInputChars <= 0 {
		maxInputChars = defaultMaxInputChars
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Assessor{
		generator:     generator,
		maxInputChars: maxInputChars,
		maxLogLen:     maxLogLength,
		logger:        logger,
	}
}

// Assess returns a StructuredAnswer when the model followed the JSON schema
// and a RawAnswer otherwise. Errors are generator failures only.
func (a *Assessor) Assess(ctx context.Context, documentText, query string) (ai.Answer, error) {
	if a == nil || a.generator == nil {
		return nil, errors.New("assessor is not initialized")
	}

	documentText, truncated := utils.TruncateRunes(strings.TrimSpace(documentText), a.maxInputChars)
	message := buildMessage(documentText, strings.TrimSpace(query))

	a.logger.Debug("assessment request",
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.Bool("document_truncated", truncated),
		zap.String("message_preview", utils.TruncateForLog(message, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, assessPrompt, message)
	if err != nil {
		return nil, &ai.ModelCallError{Op: "assess", Provider: a.generator.Model(), Err: err}
	}

	a.logger.Debug("assessment response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	answer, err := ParseAnswer(raw)
	if err != nil {
		a.logger.Debug("assessment is not structured", zap.Error(err))
	}
	return answer, nil
}

func buildMessage(documentText, query string) string {
	var b strings.Builder
	b.WriteString("Job description:\n")
	b.WriteString(query)
	b.WriteString("\n\nCandidate document:\n")
	b.WriteString(documentText)
	return b.String()
}

// ParseAnswer decodes model output. It always returns an answer; the error
// explains why the output was kept raw.
func ParseAnswer(raw string) (ai.Answer, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return ai.RawAnswer{Text: strings.TrimSpace(raw)}, fmt.Errorf("parse model response: %w", err)
	}

	if _, ok := data["score"]; !ok {
		return ai.RawAnswer{Text: strings.TrimSpace(raw)}, errors.New("model response has no score")
	}

	var answer ai.StructuredAnswer
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &answer,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return ai.RawAnswer{Text: strings.TrimSpace(raw)}, fmt.Errorf("decode model response: %w", err)
	}

	if answer.Matched == nil {
		answer.Matched = []string{}
	}
	if answer.Missing == nil {
		answer.Missing = []string{}
	}
	answer.Explanation = strings.TrimSpace(answer.Explanation)

	return answer, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
