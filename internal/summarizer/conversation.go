package summarizer

import (
	"context"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
)

// ObserverPrompt is the fixed system prompt of the history summarizer.
const ObserverPrompt = "You are a third party to this dialog. Your task is to remember the dialog and extract its essence.\n" +
	"If there are material details, keep them."

// NoAnswer stands in for a turn that has no answer yet.
const NoAnswer = "(no answer)"

// Conversation condenses turn history into a short synopsis with one model call.
type Conversation struct {
	backend domain.Backend
	modelID func() string
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewConversation creates a history summarizer. modelID is read on every call
// so model changes in the settings apply to summaries too. metrics may be nil.
func NewConversation(backend domain.Backend, modelID func() string, log *logger.Logger, m *metrics.Metrics) *Conversation {
	if log == nil {
		log = logger.Nop()
	}
	return &Conversation{backend: backend, modelID: modelID, log: log.Component("summarizer"), metrics: m}
}

// Summarize returns a synopsis of turns. ok is false when the model call
// failed; callers then proceed without a summary.
func (c *Conversation) Summarize(ctx context.Context, turns []domain.Turn) (summary string, ok bool) {
	req := domain.GenerationRequest{
		SystemPrompt: ObserverPrompt,
		UserPrompt:   "Read the dialog carefully and give a brief summary. Here is the dialog: " + Flatten(turns) + ". ",
		Temperature:  0,
	}
	if c.modelID != nil {
		req.ModelID = c.modelID()
	}
	c.log.Debug().Int("turns", len(turns)).Msg("summarizing history")

	out, err := c.backend.Complete(ctx, req)
	if err != nil {
		c.record("failure")
		c.log.Warn().Err(err).Msg("summarization failed, continuing without summary")
		return "", false
	}
	c.record("success")
	return out, true
}

func (c *Conversation) record(status string) {
	if c.metrics != nil {
		c.metrics.RecordSummarization(status)
	}
}

// Flatten renders each turn as "<query> <answer>" and joins turns with a space.
func Flatten(turns []domain.Turn) string {
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = t.Query + " " + t.AnswerOr(NoAnswer)
	}
	return strings.Join(parts, " ")
}
