package ai

import (
	"context"
	"math"
)

// Vector is an embedding. Normalized marks vectors with unit L2 norm.
type Vector struct {
	Values     []float32
	Normalized bool
}

// NewVector wraps raw model output.
func NewVector(values []float32) Vector {
	return Vector{Values: values}
}

func (v Vector) Dims() int { return len(v.Values) }

// Norm returns the L2 norm.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. Zero vectors stay zero but are
// still marked normalized so they compare as orthogonal to everything.
func Normalize(v Vector) Vector {
	if v.Normalized {
		return v
	}

	out := make([]float32, len(v.Values))
	norm := v.Norm()
	if norm > 0 {
		for i, x := range v.Values {
			out[i] = float32(float64(x) / norm)
		}
	}

	return Vector{Values: out, Normalized: true}
}

// Dot returns the dot product of a and b.
func Dot(a, b Vector) (float64, error) {
	if a.Dims() != b.Dims() {
		return 0, &DimensionError{Want: a.Dims(), Got: b.Dims()}
	}

	var sum float64
	for i := range a.Values {
		sum += float64(a.Values[i]) * float64(b.Values[i])
	}
	return sum, nil
}

// Cosine returns the cosine similarity of a and b.
func Cosine(a, b Vector) (float64, error) {
	return Dot(Normalize(a), Normalize(b))
}

// SquaredDistance returns the squared Euclidean distance between a and b.
func SquaredDistance(a, b Vector) (float64, error) {
	if a.Dims() != b.Dims() {
		return 0, &DimensionError{Want: a.Dims(), Got: b.Dims()}
	}

	var sum float64
	for i := range a.Values {
		d := float64(a.Values[i]) - float64(b.Values[i])
		sum += d * d
	}
	return sum, nil
}

type normalizingEmbedder struct {
	Embedder
}

// Normalized wraps e so that every returned vector has unit length and
// similarity reduces to a dot product.
func Normalized(e Embedder) Embedder {
	if _, ok := e.(normalizingEmbedder); ok {
		return e
	}
	return normalizingEmbedder{Embedder: e}
}

func (n normalizingEmbedder) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	vectors, err := n.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	for i := range vectors {
		vectors[i] = Normalize(vectors[i])
	}
	return vectors, nil
}
