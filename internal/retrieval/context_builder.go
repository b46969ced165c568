package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
)

// DefaultTopK is the number of passages fetched per query.
const DefaultTopK = 5

// Role prefixes used by prefix-convention embedding models (e5 family).
const (
	QueryPrefix   = "query: "
	PassagePrefix = "passage: "
)

// ContextBuilder turns a query into a flat context string of ranked passages.
type ContextBuilder struct {
	store            domain.VectorStore
	prefixConvention bool
	log              *logger.Logger
	metrics          *metrics.Metrics
}

// NewContextBuilder creates a ContextBuilder. prefixConvention must be true
// when the index was built with a "query: "/"passage: " embedding model.
// metrics may be nil.
func NewContextBuilder(store domain.VectorStore, prefixConvention bool, log *logger.Logger, m *metrics.Metrics) *ContextBuilder {
	if log == nil {
		log = logger.Nop()
	}
	return &ContextBuilder{store: store, prefixConvention: prefixConvention, log: log.Component("retrieval"), metrics: m}
}

// BuildContext searches the top k passages for query and renders them as
// "Fragment <n>:\n<text>\n" blocks in backend order. An unavailable or empty
// index yields "" so the turn can continue without context.
func (b *ContextBuilder) BuildContext(ctx context.Context, query string, k int) string {
	if b.store == nil {
		return ""
	}
	if k <= 0 {
		k = DefaultTopK
	}
	start := time.Now()
	passages, err := b.store.SimilaritySearch(ctx, b.queryText(query), k)
	if b.metrics != nil {
		b.metrics.RecordRetrieval(len(passages), time.Since(start))
	}
	if err != nil {
		b.log.Warn().Err(err).Msg("retrieval unavailable, continuing without context")
		return ""
	}
	if len(passages) == 0 {
		b.log.Debug().Str("query", query).Msg("no passages found")
		return ""
	}

	var sb strings.Builder
	for n, p := range passages {
		fmt.Fprintf(&sb, "Fragment %d:\n%s\n", n, b.passageText(p.Text))
	}
	return sb.String()
}

func (b *ContextBuilder) queryText(query string) string {
	if b.prefixConvention {
		return QueryPrefix + query
	}
	return query
}

func (b *ContextBuilder) passageText(text string) string {
	if b.prefixConvention {
		return strings.TrimPrefix(text, PassagePrefix)
	}
	return text
}
