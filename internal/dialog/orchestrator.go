package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
	"ragchat/internal/retrieval"
	"ragchat/internal/task"
)

// SummaryPrefix labels the running summary inside the rendered prompt.
const SummaryPrefix = "Dialog summary: "

// SummaryPolicy decides what happens to the carried summary when a turn
// starts with an empty history.
type SummaryPolicy int

const (
	// CarryOver keeps the last summary until a non-empty history replaces it.
	CarryOver SummaryPolicy = iota
	// ResetOnEmptyHistory drops the carried summary whenever history is empty.
	ResetOnEmptyHistory
)

// PromptSource yields the active system prompt and user template.
type PromptSource interface {
	Current() (system, user string)
	CurrentName() string
}

// ContextSource turns a query into a context string; it never fails.
type ContextSource interface {
	BuildContext(ctx context.Context, query string, k int) string
}

// HistorySummarizer condenses turns; ok is false when no summary is available.
type HistorySummarizer interface {
	Summarize(ctx context.Context, turns []domain.Turn) (summary string, ok bool)
}

// TokenCounter counts prompt tokens for logs and metrics.
type TokenCounter interface {
	Count(text string) int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *logger.Logger) Option { return func(o *Orchestrator) { o.log = l.Component("dialog") } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

func WithTokenCounter(c TokenCounter) Option { return func(o *Orchestrator) { o.tokens = c } }

func WithSummaryPolicy(p SummaryPolicy) Option { return func(o *Orchestrator) { o.policy = p } }

// WithTopK sets the number of passages retrieved per query.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// Orchestrator runs dialog turns: retrieve, summarize, render, dispatch and
// commit. One Orchestrator serves one conversation at a time; the running
// summary it carries belongs to that conversation, and its turns run one
// after another.
type Orchestrator struct {
	prompts    PromptSource
	retriever  ContextSource
	summarizer HistorySummarizer
	backend    domain.Backend
	settings   *Settings
	runner     *task.Runner

	log     *logger.Logger
	metrics *metrics.Metrics
	tokens  TokenCounter
	topK    int
	policy  SummaryPolicy

	// turnMu serializes turns so each one sees the history and summary
	// left by the previous.
	turnMu sync.Mutex

	mu      sync.Mutex
	summary string
	// epoch counts clears; a turn commits only if it is unchanged.
	epoch uint64
}

// New creates an Orchestrator. summarizer may be nil to disable summaries.
func New(prompts PromptSource, retriever ContextSource, summarizer HistorySummarizer, backend domain.Backend, settings *Settings, runner *task.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		prompts:    prompts,
		retriever:  retriever,
		summarizer: summarizer,
		backend:    backend,
		settings:   settings,
		runner:     runner,
		log:        logger.Nop(),
		topK:       retrieval.DefaultTopK,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runner == nil {
		o.runner = task.NewRunner(o.log, o.metrics)
	}
	if o.settings == nil {
		o.settings = NewSettings("")
	}
	return o
}

// Settings exposes the mutable settings of this orchestrator.
func (o *Orchestrator) Settings() *Settings { return o.settings }

// Submit runs GenerateAnswer on the task runner and returns immediately.
// This is the only entry point a front end needs. Submitted turns never
// overlap.
func (o *Orchestrator) Submit(ctx context.Context, query string, history *domain.History) *task.Handle[string] {
	return task.Go(o.runner, ctx, "generate_answer", func(ctx context.Context) (string, error) {
		return o.GenerateAnswer(ctx, query, history)
	})
}

// GenerateAnswer runs one turn synchronously. On success the turn is appended
// to history and the answer returned. On failure history is left untouched
// and the error is a *BackendError, ErrRender, ErrEmptyQuery or
// ErrConversationCleared.
func (o *Orchestrator) GenerateAnswer(ctx context.Context, query string, history *domain.History) (string, error) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	start := time.Now()
	answer, err := o.generate(ctx, query, history)
	if o.metrics != nil {
		status := "success"
		switch {
		case errors.Is(err, ErrConversationCleared):
			status = "discarded"
		case err != nil:
			status = "failure"
		}
		o.metrics.RecordGeneration(status, time.Since(start))
	}
	return answer, err
}

func (o *Orchestrator) generate(ctx context.Context, query string, history *domain.History) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	log := o.log.With("prompt", o.prompts.CurrentName())
	epoch := o.currentEpoch()

	system, userTemplate := o.prompts.Current()
	contextText := o.retriever.BuildContext(ctx, query, o.topK)
	summary := o.summaryFor(ctx, epoch, history.Turns())

	user, err := Render(userTemplate, Slots{Summary: summary, Query: query, Context: contextText})
	if err != nil {
		log.Error().Err(err).Msg("cannot render user template")
		return "", err
	}
	o.countTokens(log, system, user)

	req := domain.GenerationRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  o.settings.Temperature(),
		ModelID:      o.settings.ModelID(),
		JSONMode:     o.settings.JSONMode(),
	}
	answer, err := o.backend.Complete(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("model", req.ModelID).Msg("backend failed, history unchanged")
		return "", &BackendError{Err: err}
	}

	if !o.commit(epoch, history, domain.NewTurn(query, answer)) {
		log.Info().Msg("conversation cleared during the turn, answer dropped")
		return "", ErrConversationCleared
	}
	log.Info().
		Str("model", req.ModelID).
		Int("context_len", len(contextText)).
		Bool("summary", summary != "").
		Msg("turn committed")
	return answer, nil
}

// summaryFor recomputes the running summary when there is history and
// otherwise returns the carried value, subject to the reset policy.
// A failed summarization yields "" for this turn and keeps the carried value.
func (o *Orchestrator) summaryFor(ctx context.Context, epoch uint64, turns []domain.Turn) string {
	if len(turns) == 0 || o.summarizer == nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		if len(turns) == 0 && o.policy == ResetOnEmptyHistory {
			o.summary = ""
		}
		return o.summary
	}

	s, ok := o.summarizer.Summarize(ctx, turns)
	if !ok {
		return ""
	}
	s = SummaryPrefix + s
	o.mu.Lock()
	if o.epoch == epoch {
		o.summary = s
	}
	o.mu.Unlock()
	return s
}

func (o *Orchestrator) currentEpoch() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch
}

// commit appends turn unless the conversation was cleared since epoch.
func (o *Orchestrator) commit(epoch uint64, history *domain.History, turn domain.Turn) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != epoch {
		return false
	}
	history.Append(turn)
	return true
}

// Summary returns the carried running summary.
func (o *Orchestrator) Summary() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summary
}

// ResetSummary drops the carried summary. A turn in flight will not store
// the summary it computed nor commit its answer.
func (o *Orchestrator) ResetSummary() {
	o.mu.Lock()
	o.epoch++
	o.summary = ""
	o.mu.Unlock()
}

// Clear drops the summary, then empties history. Turns still in flight
// finish with ErrConversationCleared; a turn that committed before the
// reset is removed by the clear.
func (o *Orchestrator) Clear(history *domain.History) {
	o.ResetSummary()
	history.Clear()
}

func (o *Orchestrator) countTokens(log *logger.Logger, system, user string) {
	if o.tokens == nil {
		return
	}
	n := o.tokens.Count(system) + o.tokens.Count(user)
	if o.metrics != nil {
		o.metrics.PromptTokens.Observe(float64(n))
	}
	log.Debug().Int("prompt_tokens", n).Msg("prompt rendered")
}

// Describe renders the active prompt and settings for status lines.
func (o *Orchestrator) Describe() string {
	return fmt.Sprintf("prompt: %s · model: %s · temperature: %.2f · db: %s",
		o.prompts.CurrentName(), o.settings.ModelID(), o.settings.Temperature(), o.settings.DatabaseID())
}
