package ai

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubEmbedder struct {
	vectors []Vector
	err     error
}

func (s *stubEmbedder) Name() string { return "stub" }

func (s *stubEmbedder) Embed(_ context.Context, _ []string) ([]Vector, error) {
	return s.vectors, s.err
}

func TestNormalize(t *testing.T) {
	v := Normalize(NewVector([]float32{3, 4}))
	if !v.Normalized {
		t.Fatalf("expected vector to be marked normalized")
	}
	if math.Abs(v.Norm()-1) > 1e-6 {
		t.Fatalf("expected unit norm, got %f", v.Norm())
	}

	zero := Normalize(NewVector([]float32{0, 0}))
	if zero.Norm() != 0 || !zero.Normalized {
		t.Fatalf("expected zero vector to stay zero, got %+v", zero)
	}
}

func TestCosine(t *testing.T) {
	a := NewVector([]float32{1, 0})
	b := NewVector([]float32{2, 0})
	c := NewVector([]float32{0, 5})

	if got, _ := Cosine(a, b); math.Abs(got-1) > 1e-6 {
		t.Fatalf("expected cosine(a,b) ~ 1, got %f", got)
	}
	if got, _ := Cosine(a, c); math.Abs(got) > 1e-6 {
		t.Fatalf("expected cosine(a,c) ~ 0, got %f", got)
	}

	_, err := Cosine(a, NewVector([]float32{1, 2, 3}))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestSquaredDistanceMatchesCosineOnUnitVectors(t *testing.T) {
	a := Normalize(NewVector([]float32{1, 2, 3}))
	b := Normalize(NewVector([]float32{3, 2, 1}))

	cos, _ := Dot(a, b)
	dist, err := SquaredDistance(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(dist-(2-2*cos)) > 1e-6 {
		t.Fatalf("expected d = 2 - 2cos, got d=%f cos=%f", dist, cos)
	}
}

func TestNormalizedEmbedder(t *testing.T) {
	stub := &stubEmbedder{vectors: []Vector{NewVector([]float32{0, 2})}}
	e := Normalized(stub)

	if Normalized(e) != e {
		t.Fatalf("expected wrapping twice to be a no-op")
	}
	if e.Name() != "stub" {
		t.Fatalf("expected name to pass through, got %q", e.Name())
	}

	vectors, err := e.Embed(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !vectors[0].Normalized || vectors[0].Values[1] != 1 {
		t.Fatalf("expected normalized vector, got %+v", vectors[0])
	}
}

func TestEmbedChecked(t *testing.T) {
	tests := []struct {
		name    string
		stub    *stubEmbedder
		texts   []string
		wantErr bool
		wantDim bool
	}{
		{
			name:  "ok",
			stub:  &stubEmbedder{vectors: []Vector{NewVector([]float32{1}), NewVector([]float32{2})}},
			texts: []string{"a", "b"},
		},
		{
			name:    "collaborator failure",
			stub:    &stubEmbedder{err: errors.New("boom")},
			texts:   []string{"a"},
			wantErr: true,
		},
		{
			name:    "count mismatch",
			stub:    &stubEmbedder{vectors: []Vector{NewVector([]float32{1})}},
			texts:   []string{"a", "b"},
			wantErr: true,
		},
		{
			name:    "dimension drift",
			stub:    &stubEmbedder{vectors: []Vector{NewVector([]float32{1}), NewVector([]float32{1, 2})}},
			texts:   []string{"a", "b"},
			wantErr: true,
			wantDim: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EmbedChecked(context.Background(), tt.stub, tt.texts)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var callErr *ModelCallError
			if !errors.As(err, &callErr) {
				t.Fatalf("expected *ModelCallError, got %v", err)
			}
			if callErr.Op != "embed" || callErr.Provider != "stub" {
				t.Fatalf("unexpected error details: %+v", callErr)
			}
			if tt.wantDim != errors.Is(err, ErrDimensionMismatch) {
				t.Fatalf("unexpected dimension mismatch classification: %v", err)
			}
		})
	}
}
