package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	wordRe         = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)
)

// highlightBestSentence emphasizes the sentence of text sharing the most
// words with query. Text without any overlap is returned unchanged.
func highlightBestSentence(text, query string) string {
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) < 2 {
		return text
	}
	q := wordSet(query)
	best, bestScore := -1, 0
	for i, s := range sentences {
		if score := overlap(q, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return text
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
		if i == best {
			sentences[i] = highlightStyle.Render(sentences[i])
		}
	}
	return strings.Join(sentences, " ")
}

func wordSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func overlap(q map[string]struct{}, sentence string) int {
	score := 0
	for t := range wordSet(sentence) {
		if _, ok := q[t]; ok {
			score++
		}
	}
	return score
}
