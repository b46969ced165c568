package index

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/retrieval"
)

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// lexical ranks ingested chunks by the Ochiai coefficient of their word
// sets against the query. Chunks with no overlap are not returned.
func (x *Index) lexical(query string, k int) []domain.Passage {
	x.mu.RLock()
	defer x.mu.RUnlock()

	qset := wordSet(strings.TrimPrefix(query, retrieval.QueryPrefix))
	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	for i, c := range x.chunks {
		if s := ochiai(qset, wordSet(strings.TrimPrefix(c.Text, retrieval.PassagePrefix))); s > 0 {
			ranked = append(ranked, scored{i, s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if k <= 0 {
		k = retrieval.DefaultTopK
	}
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	out := make([]domain.Passage, len(ranked))
	for i, r := range ranked {
		out[i] = domain.Passage{Text: x.chunks[r.idx].Text, Rank: i}
	}
	return out
}

func wordSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai is |A∩B| / sqrt(|A|·|B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range b {
		if _, ok := a[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
