package domain

import "context"

// Document represents a single text file loaded into the index.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a part of a document stored in the vector index.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Passage is a retrieved piece of text together with its position in the
// backend ranking. Passages are produced per query and never persisted.
type Passage struct {
	Text string
	Rank int
}

// GenerationRequest is one completion call against a model backend.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	ModelID      string
	// JSONMode asks the backend for a JSON object instead of plain text
	// when the backend supports it.
	JSONMode bool
}

// Backend dispatches completion requests to a language model.
// A non-nil error means the call failed; the returned text is then unused.
type Backend interface {
	Complete(ctx context.Context, req GenerationRequest) (string, error)
}

// VectorStore is the retrieval side of the index as seen by the dialog core.
type VectorStore interface {
	SimilaritySearch(ctx context.Context, text string, k int) ([]Passage, error)
	IndexSize(ctx context.Context) (int, error)
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Storage persists vectors and supports nearest-neighbour search.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}
