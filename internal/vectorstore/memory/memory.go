package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"ragchat/internal/domain"
)

var (
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrLengthMismatch    = errors.New("chunks and vectors length mismatch")
)

// Storage is an in-memory vector store with brute-force cosine ranking.
// Vectors are expected to be L2-normalized, so cosine is a dot product.
// Upserting a chunk id that is already stored replaces it in place.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	chunks    []domain.Chunk
	byID      map[string]int
}

func NewStorage() *Storage { return &Storage{byID: map[string]int{}} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.reset()
	return nil
}

func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return ErrLengthMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return ErrDimensionMismatch
		}
	}
	for i, c := range chunks {
		if j, ok := s.byID[c.ChunkID]; ok {
			s.chunks[j], s.vectors[j] = c, vectors[i]
			continue
		}
		s.byID[c.ChunkID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

// Search returns up to topK chunks by descending score. Ties keep insertion
// order so rankings are reproducible.
func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, len(s.vectors))
	for i, v := range s.vectors {
		results[i] = domain.SearchResult{Chunk: s.chunks[i], Score: dot(v, vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *Storage) reset() {
	s.vectors = nil
	s.chunks = nil
	s.byID = map[string]int{}
}

func dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
