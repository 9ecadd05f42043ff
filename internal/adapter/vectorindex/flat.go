// Package vectorindex provides an exact inner-product index over
// L2-normalized float32 vectors.
package vectorindex

import (
	"container/heap"
	"fmt"
	"math"

	"mindkb/internal/domain"
)

// Hit is one search result: a row number and its inner-product score.
type Hit struct {
	Row   int
	Score float32
}

// Flat stores vectors row-major in a single slice and scans all of them on
// every search. Rows are assigned in insertion order and never change.
//
// Add must not run concurrently with anything else. Once building is done the
// index is read-only and Search may be called from any number of goroutines.
type Flat struct {
	dim  int
	data []float32
}

// New returns an empty index for vectors of length dim.
func New(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector index: dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Build creates an index of dimension dim holding vectors in order.
func Build(dim int, vectors [][]float32) (*Flat, error) {
	f, err := New(dim)
	if err != nil {
		return nil, err
	}
	if err := f.Add(vectors); err != nil {
		return nil, err
	}
	return f, nil
}

// Add normalizes copies of vectors and appends them as new rows. Either all
// vectors are added or, on the first invalid one, none are.
func (f *Flat) Add(vectors [][]float32) error {
	normalized := make([]float32, 0, len(vectors)*f.dim)
	for i, v := range vectors {
		unit, err := normalize(v, f.dim)
		if err != nil {
			return fmt.Errorf("vector %d: %w", i, err)
		}
		normalized = append(normalized, unit...)
	}
	f.data = append(f.data, normalized...)
	return nil
}

// scoreTolerance is the widest gap between two scores that still counts as a
// tie. Vectors equal up to a positive scale normalize to within float32
// rounding of each other and must rank as equal.
const scoreTolerance = 1e-6

// Search returns the k rows with the highest inner product against the
// normalized query, best first. Scores within scoreTolerance of each other
// are ordered by lower row.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	q, err := normalize(query, f.dim)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	n := f.Size()
	if k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	h := make(minHeap, 0, k)
	for row := 0; row < n; row++ {
		score := dot(q, f.data[row*f.dim:(row+1)*f.dim])
		hit := Hit{Row: row, Score: score}
		if len(h) < k {
			heap.Push(&h, hit)
			continue
		}
		if better(hit, h[0]) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	hits := make([]Hit, len(h))
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(&h).(Hit)
	}
	return hits, nil
}

// Size returns the number of rows.
func (f *Flat) Size() int {
	return len(f.data) / f.dim
}

// Dimension returns the vector length.
func (f *Flat) Dimension() int {
	return f.dim
}

// Vector returns a copy of the stored (normalized) vector at row.
func (f *Flat) Vector(row int) ([]float32, error) {
	if row < 0 || row >= f.Size() {
		return nil, fmt.Errorf("%w: row %d of %d", domain.ErrRowOutOfRange, row, f.Size())
	}
	out := make([]float32, f.dim)
	copy(out, f.data[row*f.dim:(row+1)*f.dim])
	return out, nil
}

func normalize(v []float32, dim int) ([]float32, error) {
	if len(v) != dim {
		return nil, fmt.Errorf("%w: length %d, want %d", domain.ErrInvalidVector, len(v), dim)
	}
	var sum float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite component", domain.ErrInvalidVector)
		}
		sum += f * f
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: zero vector", domain.ErrInvalidVector)
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, dim)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, nil
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// better reports whether a ranks ahead of b.
func better(a, b Hit) bool {
	if d := a.Score - b.Score; d > scoreTolerance || d < -scoreTolerance {
		return d > 0
	}
	return a.Row < b.Row
}

// minHeap keeps the worst retained hit at the root.
type minHeap []Hit

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(Hit)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
