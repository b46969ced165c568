package index

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/retrieval"
)

// ErrNoDocuments is returned by Ingest when no readable text file matched.
var ErrNoDocuments = errors.New("no .txt or .md documents found")

// Synopsizer produces an extractive summary of the ingested corpus.
type Synopsizer interface {
	Summarize(text string, maxSentences int) string
}

// Report describes one ingest run.
type Report struct {
	Documents int
	Chunks    int
	Synopsis  string
}

// Option configures an Index.
type Option func(*Index)

// WithPrefixConvention stores passages as "passage: <text>" for embedding
// models trained with query/passage prefixes.
func WithPrefixConvention(on bool) Option { return func(x *Index) { x.prefix = on } }

func WithSynopsis(s Synopsizer, maxSentences int) Option {
	return func(x *Index) { x.synopsis, x.synopsisSentences = s, maxSentences }
}

func WithLogger(l *logger.Logger) Option { return func(x *Index) { x.log = l.Component("index") } }

// Index is the vector store seen by the dialog core. It embeds queries,
// searches the storage and falls back to lexical overlap over the ingested
// chunks when the embedding carries no signal.
type Index struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	storage  domain.Storage

	prefix            bool
	synopsis          Synopsizer
	synopsisSentences int
	log               *logger.Logger

	mu     sync.RWMutex
	chunks []domain.Chunk
}

func New(chunker domain.Chunker, embedder domain.Embedder, storage domain.Storage, opts ...Option) *Index {
	x := &Index{chunker: chunker, embedder: embedder, storage: storage, log: logger.Nop()}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Ingest replaces the index content with the documents matched by paths.
// Each path may be a glob; only .txt and .md files are read.
func (x *Index) Ingest(ctx context.Context, paths []string) (Report, error) {
	docs, err := loadDocuments(paths)
	if err != nil {
		return Report{}, err
	}

	var chunks []domain.Chunk
	var corpus strings.Builder
	for _, d := range docs {
		cs, err := x.chunker.Chunk(d)
		if err != nil {
			return Report{}, fmt.Errorf("chunk %s: %w", d.Path, err)
		}
		for i := range cs {
			if x.prefix {
				cs[i].Text = retrieval.PassagePrefix + cs[i].Text
			}
		}
		chunks = append(chunks, cs...)
		corpus.WriteString(d.Content)
		corpus.WriteString("\n")
	}
	if len(chunks) == 0 {
		return Report{}, ErrNoDocuments
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	if err := x.embedder.Prepare(texts); err != nil {
		return Report{}, fmt.Errorf("prepare %s embedder: %w", x.embedder.Name(), err)
	}
	vectors := make([][]float64, len(chunks))
	for i, text := range texts {
		if vectors[i], err = x.embedder.Embed(ctx, text); err != nil {
			return Report{}, fmt.Errorf("embed chunk %s: %w", chunks[i].ChunkID, err)
		}
	}

	// Remote embedders learn their dimension from the first response.
	dim := x.embedder.Dimension()
	if dim == 0 {
		dim = len(vectors[0])
	}
	if err := x.storage.Clear(ctx); err != nil {
		return Report{}, fmt.Errorf("clear storage: %w", err)
	}
	if err := x.storage.Init(ctx, dim); err != nil {
		return Report{}, fmt.Errorf("init storage: %w", err)
	}
	if err := x.storage.Upsert(ctx, chunks, vectors); err != nil {
		return Report{}, fmt.Errorf("upsert: %w", err)
	}

	x.mu.Lock()
	x.chunks = chunks
	x.mu.Unlock()

	rep := Report{Documents: len(docs), Chunks: len(chunks)}
	if x.synopsis != nil {
		rep.Synopsis = x.synopsis.Summarize(corpus.String(), x.synopsisSentences)
	}
	x.log.Info().
		Int("documents", rep.Documents).
		Int("chunks", rep.Chunks).
		Int("dimension", dim).
		Str("embedder", x.embedder.Name()).
		Msg("corpus ingested")
	return rep, nil
}

// SimilaritySearch returns up to k passages ranked by the storage. Text is
// expected to already carry the query prefix when the convention is on.
func (x *Index) SimilaritySearch(ctx context.Context, text string, k int) ([]domain.Passage, error) {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if isZero(vec) {
		return x.lexical(text, k), nil
	}
	res, err := x.storage.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	if allZeroScores(res) {
		return x.lexical(text, k), nil
	}
	passages := make([]domain.Passage, len(res))
	for i, r := range res {
		passages[i] = domain.Passage{Text: r.Chunk.Text, Rank: i}
	}
	return passages, nil
}

func (x *Index) IndexSize(ctx context.Context) (int, error) {
	return x.storage.Count(ctx)
}

func loadDocuments(paths []string) ([]domain.Document, error) {
	var docs []domain.Document
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil || matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			ext := strings.ToLower(filepath.Ext(m))
			if ext != ".txt" && ext != ".md" {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			docs = append(docs, domain.Document{ID: documentID(m), Path: m, Content: string(data)})
		}
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	return docs, nil
}

func documentID(path string) string {
	h := sha1.Sum([]byte(path))
	return hex.EncodeToString(h[:8])
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func allZeroScores(res []domain.SearchResult) bool {
	for _, r := range res {
		if r.Score > 1e-9 {
			return false
		}
	}
	return true
}
