package domain

import "sync"

// Turn is one query/answer pair. Answer is nil when no answer was produced.
type Turn struct {
	Query  string
	Answer *string
}

// NewTurn builds a Turn with an answer.
func NewTurn(query, answer string) Turn {
	return Turn{Query: query, Answer: &answer}
}

// AnswerOr returns the answer or fallback when the turn has none.
func (t Turn) AnswerOr(fallback string) string {
	if t.Answer == nil {
		return fallback
	}
	return *t.Answer
}

// History is the ordered, append-only list of turns of one conversation.
// It is safe for concurrent use; concurrent appends land in completion order.
// The zero value is an empty history ready to use.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory returns a history pre-populated with turns.
func NewHistory(turns ...Turn) *History {
	return &History{turns: append([]Turn(nil), turns...)}
}

// Append adds a turn at the end.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
}

// Turns returns a copy of the turns in order.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Clear drops every turn. Only an explicit user action should call it.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
