// Package vectorindex provides exact nearest-neighbour search over chunk
// embeddings. An index lives for one request and is never shared.
package vectorindex

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/chunker"
)

// ErrEmptyIndex is returned when querying an index built from zero entries.
var ErrEmptyIndex = errors.New("vector index is empty")

// DimensionMismatchError reports vectors of differing dimensionality. It is
// fatal for the request: vectors are never padded or truncated.
type DimensionMismatchError struct {
	Want int
	Got  int
	// Position is the entry index, or -1 for a query vector.
	Position int
}

func (e *DimensionMismatchError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("query vector has %d dimensions, index has %d", e.Got, e.Want)
	}
	return fmt.Sprintf("entry %d has %d dimensions, index has %d", e.Position, e.Got, e.Want)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ai.ErrDimensionMismatch }

// Entry pairs a chunk with its embedding.
type Entry struct {
	Chunk  chunker.Chunk
	Vector ai.Vector
}

// orthogonalDistance is the squared distance between orthogonal unit vectors.
// Zero vectors carry no direction and are placed at this distance from
// everything.
const orthogonalDistance = 2.0

// Hit is a query result.
type Hit struct {
	Chunk chunker.Chunk
	// Distance is the squared Euclidean distance between unit vectors.
	Distance float64
}

// Similarity converts the distance back to cosine similarity.
func (h Hit) Similarity() float64 {
	return 1 - h.Distance/2
}

// Index is an immutable exact index.
type Index struct {
	dims    int
	entries []Entry
	zero    []bool
}

// Build normalizes and stores entries. Zero entries produce an empty index.
func Build(entries []Entry) (*Index, error) {
	idx := &Index{
		entries: make([]Entry, 0, len(entries)),
		zero:    make([]bool, 0, len(entries)),
	}

	for i, e := range entries {
		if i == 0 {
			idx.dims = e.Vector.Dims()
		}
		if e.Vector.Dims() != idx.dims {
			return nil, &DimensionMismatchError{Want: idx.dims, Got: e.Vector.Dims(), Position: i}
		}
		idx.entries = append(idx.entries, Entry{Chunk: e.Chunk, Vector: ai.Normalize(e.Vector)})
		idx.zero = append(idx.zero, e.Vector.Norm() == 0)
	}

	return idx, nil
}

func (idx *Index) Len() int { return len(idx.entries) }

func (idx *Index) Dims() int { return idx.dims }

// Query returns at most k hits ordered by ascending distance. Ties keep
// insertion order. A zero vector on either side has similarity 0.
func (idx *Index) Query(v ai.Vector, k int) ([]Hit, error) {
	if idx == nil || len(idx.entries) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if v.Dims() != idx.dims {
		return nil, &DimensionMismatchError{Want: idx.dims, Got: v.Dims(), Position: -1}
	}

	q := ai.Normalize(v)
	queryZero := v.Norm() == 0

	hits := make([]Hit, len(idx.entries))
	for i, e := range idx.entries {
		if queryZero || idx.zero[i] {
			hits[i] = Hit{Chunk: e.Chunk, Distance: orthogonalDistance}
			continue
		}
		d, err := ai.SquaredDistance(q, e.Vector)
		if err != nil {
			return nil, err
		}
		hits[i] = Hit{Chunk: e.Chunk, Distance: d}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}
