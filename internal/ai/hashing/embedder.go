// Package hashing provides an offline embedder based on the hashing trick.
// Tokens come from the keyword tokenizer, so stopwords never contribute.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/keywords"
)

const (
	Name              = "hashing"
	DefaultDimensions = 512
)

type Embedder struct {
	dims      int
	extractor *keywords.Extractor
}

func New(dims int, extractor *keywords.Extractor) (*Embedder, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dims)
	}
	if extractor == nil {
		return nil, fmt.Errorf("keyword extractor is required")
	}
	return &Embedder{dims: dims, extractor: extractor}, nil
}

func (e *Embedder) Name() string { return Name }

// Embed returns unit vectors. Texts without tokens map to the zero vector.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([]ai.Vector, error) {
	vectors := make([]ai.Vector, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors = append(vectors, e.embed(text))
	}
	return vectors, nil
}

func (e *Embedder) embed(text string) ai.Vector {
	counts := make(map[string]int)
	for _, tok := range e.extractor.Tokens(text) {
		counts[tok]++
	}

	values := make([]float32, e.dims)
	for tok, n := range counts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		weight := 1 + math.Log(float64(n))
		if sum>>63 == 1 {
			weight = -weight
		}
		values[sum%uint64(e.dims)] += float32(weight)
	}

	return ai.Normalize(ai.NewVector(values))
}
