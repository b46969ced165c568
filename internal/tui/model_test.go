package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/dialog"
	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/prompts"
	"ragchat/internal/retrieval"
	"ragchat/internal/task"
)

type stubEngine struct {
	runner   *task.Runner
	settings *dialog.Settings
	answer   string
	err      error
	clears   int
	queries  []string
	describe func() string
}

func newStubEngine() *stubEngine {
	return &stubEngine{runner: task.NewRunner(logger.Nop(), nil), settings: dialog.NewSettings("gpt-4o-mini")}
}

func (e *stubEngine) Submit(ctx context.Context, q string, h *domain.History) *task.Handle[string] {
	e.queries = append(e.queries, q)
	return task.Go(e.runner, ctx, "stub", func(context.Context) (string, error) {
		if e.err != nil {
			return "", e.err
		}
		h.Append(domain.NewTurn(q, e.answer))
		return e.answer, nil
	})
}

func (e *stubEngine) Clear(h *domain.History) {
	e.clears++
	h.Clear()
}

func (e *stubEngine) Settings() *dialog.Settings { return e.settings }
func (e *stubEngine) Describe() string           { return e.describe() }

const twoPrompts = "first:\n  system: a\n  user: \"{query}\"\nsecond:\n  system: b\n  user: \"{query}\"\n"

func newModel(t *testing.T, e *stubEngine) (Model, *prompts.Registry, *domain.History) {
	t.Helper()
	reg := prompts.New(logger.Nop())
	reg.Load([]byte(twoPrompts))
	e.describe = func() string { return "prompt: " + reg.CurrentName() + " · model: " + e.settings.ModelID() }
	return startModel(t, e, reg)
}

func startModel(t *testing.T, e Engine, reg *prompts.Registry) (Model, *prompts.Registry, *domain.History) {
	t.Helper()
	h := domain.NewHistory()
	m := New(context.Background(), e, reg, h, Options{
		Status: "Index loaded. Vectors in index: 3",
		Models: []string{"gpt-4o-mini", "gpt-4o"},
	})
	t.Cleanup(m.Close)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return updated.(Model), reg, h
}

func typeAndSubmit(t *testing.T, m Model, text string) Model {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	updated, cmd := updated.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd, "submit must schedule polling")
	return updated.(Model)
}

func settle(t *testing.T, m Model) Model {
	t.Helper()
	require.NotNil(t, m.pending)
	<-m.pending.Done()
	updated, _ := m.Update(pollMsg{})
	return updated.(Model)
}

func TestSubmitAndPoll(t *testing.T) {
	e := newStubEngine()
	e.answer = "pong"
	m, _, h := newModel(t, e)

	m = typeAndSubmit(t, m, "ping")
	assert.Equal(t, []string{"ping"}, e.queries)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Generating...")

	m = settle(t, m)
	assert.Nil(t, m.pending)
	require.Len(t, m.messages, 3)
	assert.Equal(t, message{role: roleSystem, text: "Index loaded. Vectors in index: 3"}, m.messages[0])
	assert.Equal(t, roleUser, m.messages[1].role)
	assert.Equal(t, message{role: roleAssistant, text: "pong", query: "ping"}, m.messages[2])
	assert.Equal(t, 1, h.Len())
}

func TestGenerationErrorIsShownInline(t *testing.T) {
	e := newStubEngine()
	e.err = errors.New("quota exceeded")
	m, _, h := newModel(t, e)

	m = settle(t, typeAndSubmit(t, m, "ping"))
	last := m.messages[len(m.messages)-1]
	assert.Equal(t, roleSystem, last.role)
	assert.Equal(t, "Generation error: quota exceeded", last.text)
	assert.Zero(t, h.Len())
}

func TestSecondSubmitWhilePendingIsRefused(t *testing.T) {
	e := newStubEngine()
	e.answer = "a"
	m, _, _ := newModel(t, e)
	m = typeAndSubmit(t, m, "one")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("two")})
	updated, _ = updated.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	assert.Equal(t, []string{"one"}, e.queries)
	assert.Equal(t, "Still waiting for the previous answer", m.status)
	settle(t, m)
}

func TestClearResetsHistoryAndSummary(t *testing.T) {
	e := newStubEngine()
	e.answer = "a"
	m, _, h := newModel(t, e)
	m = settle(t, typeAndSubmit(t, m, "q"))
	require.Equal(t, 1, h.Len())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = updated.(Model)
	assert.Zero(t, h.Len())
	assert.Equal(t, 1, e.clears)
	assert.Empty(t, m.messages)
}

// blockingBackend answers only after release is closed.
type blockingBackend struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Complete(context.Context, domain.GenerationRequest) (string, error) {
	b.entered <- struct{}{}
	<-b.release
	return "stale answer", nil
}

type emptyStore struct{}

func (emptyStore) SimilaritySearch(context.Context, string, int) ([]domain.Passage, error) {
	return nil, nil
}

func (emptyStore) IndexSize(context.Context) (int, error) { return 0, nil }

func TestClearWhileGeneratingDropsPendingAnswer(t *testing.T) {
	reg := prompts.New(logger.Nop())
	reg.Load([]byte(twoPrompts))
	backend := &blockingBackend{entered: make(chan struct{}, 1), release: make(chan struct{})}
	runner := task.NewRunner(logger.Nop(), nil)
	engine := dialog.New(reg, retrieval.NewContextBuilder(emptyStore{}, false, nil, nil), nil,
		backend, dialog.NewSettings("gpt-4o-mini"), runner)
	m, _, h := startModel(t, engine, reg)

	m = typeAndSubmit(t, m, "old question")
	<-backend.entered
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = updated.(Model)
	assert.Nil(t, m.pending)

	close(backend.release)
	runner.Wait()
	updated, _ = m.Update(pollMsg{})
	m = updated.(Model)

	assert.Zero(t, h.Len())
	assert.Empty(t, engine.Summary())
	assert.Empty(t, m.messages)
}

func TestCloseReleasesChangeListener(t *testing.T) {
	m, _, _ := newModel(t, newStubEngine())
	m.Close()
	assert.Nil(t, waitForChange(m.changes, m.done)())
	m.Close()
}

func TestCyclePromptNotifies(t *testing.T) {
	m, reg, _ := newModel(t, newStubEngine())
	assert.Contains(t, m.View(), "prompt: first")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	m = updated.(Model)
	assert.Equal(t, "second", reg.CurrentName())

	msg := waitForChange(m.changes, m.done)()
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	assert.NotNil(t, cmd, "keeps listening for changes")
	assert.Equal(t, `Prompt switched to "second"`, m.messages[len(m.messages)-1].text)
	assert.Contains(t, m.View(), "prompt: second")
}

func TestCycleModel(t *testing.T) {
	e := newStubEngine()
	m, _, _ := newModel(t, e)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Equal(t, "gpt-4o", e.settings.ModelID())
	assert.Equal(t, "Model: gpt-4o", updated.(Model).status)
	updated.(Model).Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Equal(t, "gpt-4o-mini", e.settings.ModelID())
}

func TestHighlightBestSentence(t *testing.T) {
	plain := "Only one sentence."
	assert.Equal(t, plain, highlightBestSentence(plain, "sentence"))

	text := "Cats purr. Qdrant stores vectors."
	assert.Equal(t, text, highlightBestSentence(text, "unrelated"))
	out := highlightBestSentence(text, "vectors")
	assert.Contains(t, out, "Cats purr.")
	assert.Contains(t, out, "Qdrant stores vectors.")
}
