package ai

import (
	"context"
	"errors"
	"fmt"
)

// Embedder maps texts to vectors. One vector is returned per input, in input
// order, and every call against one instance yields the same dimensionality.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([]Vector, error)
}

// Generator is a text-in/text-out model.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Summarizer condenses retrieved passages into an answer to question.
type Summarizer interface {
	Summarize(ctx context.Context, question, text string) (string, error)
}

// Assessor asks a model how well a document fits a query.
type Assessor interface {
	Assess(ctx context.Context, documentText, query string) (Answer, error)
}

// ErrDimensionMismatch is matched by every error reporting vectors of
// differing dimensionality combined in one computation.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// DimensionError carries the offending dimensions.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch, e.Want, e.Got)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// ModelCallError reports a failed call to an embedding or generation model.
type ModelCallError struct {
	// Op is the collaborator operation, e.g. "embed" or "summarize".
	Op       string
	Provider string
	Err      error
}

func (e *ModelCallError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Provider, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// EmbedChecked calls e and verifies the collaborator contract: one vector per
// text, all with the same non-zero dimensionality. Failures are returned as
// *ModelCallError.
func EmbedChecked(ctx context.Context, e Embedder, texts []string) ([]Vector, error) {
	vectors, err := e.Embed(ctx, texts)
	if err != nil {
		var callErr *ModelCallError
		if errors.As(err, &callErr) {
			return nil, err
		}
		return nil, &ModelCallError{Op: "embed", Provider: e.Name(), Err: err}
	}

	if len(vectors) != len(texts) {
		return nil, &ModelCallError{
			Op:       "embed",
			Provider: e.Name(),
			Err:      fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors)),
		}
	}

	for i := range vectors {
		if vectors[i].Dims() == 0 {
			return nil, &ModelCallError{Op: "embed", Provider: e.Name(), Err: errors.New("empty vector returned")}
		}
		if vectors[i].Dims() != vectors[0].Dims() {
			return nil, &ModelCallError{
				Op:       "embed",
				Provider: e.Name(),
				Err:      &DimensionError{Want: vectors[0].Dims(), Got: vectors[i].Dims()},
			}
		}
	}

	return vectors, nil
}
