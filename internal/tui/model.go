package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/dialog"
	"ragchat/internal/domain"
	"ragchat/internal/prompts"
	"ragchat/internal/task"
)

// PollInterval is how often a pending answer is checked.
const PollInterval = 100 * time.Millisecond

// Engine is the TUI-facing subset of the dialog orchestrator.
type Engine interface {
	Submit(ctx context.Context, query string, history *domain.History) *task.Handle[string]
	Clear(history *domain.History)
	Settings() *dialog.Settings
	Describe() string
}

// PromptSelector is the TUI-facing subset of the prompt registry.
type PromptSelector interface {
	Names() []string
	CurrentName() string
	SetCurrent(name string) bool
	Subscribe(fn func(prompts.Change)) (cancel func())
}

// Options carries startup information shown by the TUI.
type Options struct {
	Status   string
	Synopsis string
	Models   []string
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
)

type message struct {
	role  role
	text  string
	query string
}

type pollMsg struct{}

type promptChangedMsg prompts.Change

// Model is the Bubble Tea model of the chat window.
type Model struct {
	ctx      context.Context
	engine   Engine
	prompts  PromptSelector
	history  *domain.History
	models   []string
	synopsis string

	changes     chan prompts.Change
	done        chan struct{}
	closeOnce   *sync.Once
	unsubscribe func()

	input    textinput.Model
	viewport viewport.Model
	messages []message
	pending  *task.Handle[string]
	query    string
	status   string
	width    int
	ready    bool
}

// New creates the chat model. Call Close when the program exits.
func New(ctx context.Context, engine Engine, ps PromptSelector, history *domain.History, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	changes := make(chan prompts.Change, 8)
	done := make(chan struct{})
	unsubscribe := ps.Subscribe(func(c prompts.Change) {
		select {
		case changes <- c:
		case <-done:
		default:
		}
	})

	m := Model{
		ctx:         ctx,
		engine:      engine,
		prompts:     ps,
		history:     history,
		models:      opts.Models,
		synopsis:    opts.Synopsis,
		changes:     changes,
		done:        done,
		closeOnce:   &sync.Once{},
		unsubscribe: unsubscribe,
		input:       ti,
		viewport:    viewport.New(0, 0),
		status:      "ctrl+p prompt · ctrl+o model · ctrl+l clear · ctrl+c quit",
	}
	if opts.Status != "" {
		m.messages = append(m.messages, message{role: roleSystem, text: opts.Status})
	}
	return m
}

// Close stops listening for prompt changes and releases the pending
// waitForChange command.
func (m Model) Close() {
	m.closeOnce.Do(func() {
		m.unsubscribe()
		close(m.done)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.changes, m.done))
}

// waitForChange yields the next prompt change, or nil once done is closed.
func waitForChange(ch <-chan prompts.Change, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case c := <-ch:
			return promptChangedMsg(c)
		case <-done:
			return nil
		}
	}
}

func poll() tea.Cmd {
	return tea.Tick(PollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, bh := chatBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header lines, status, input frame, input line
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case pollMsg:
		if m.pending == nil {
			return m, nil
		}
		res, ok := m.pending.Poll()
		if !ok {
			return m, poll()
		}
		m.pending = nil
		if res.Err != nil {
			m.messages = append(m.messages, message{role: roleSystem, text: "Generation error: " + res.Err.Error()})
		} else {
			m.messages = append(m.messages, message{role: roleAssistant, text: res.Value, query: m.query})
		}
		m.refresh()
		return m, nil

	case promptChangedMsg:
		m.messages = append(m.messages, message{role: roleSystem, text: fmt.Sprintf("Prompt switched to %q", msg.Name)})
		m.refresh()
		return m, waitForChange(m.changes, m.done)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyCtrlL:
			// A pending answer belongs to the cleared conversation.
			m.engine.Clear(m.history)
			m.pending = nil
			m.query = ""
			m.messages = nil
			m.refresh()
			return m, nil
		case tea.KeyCtrlP:
			m.cyclePrompt()
			return m, nil
		case tea.KeyCtrlO:
			m.cycleModel()
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" {
		return m, nil
	}
	if m.pending != nil {
		m.status = "Still waiting for the previous answer"
		return m, nil
	}
	m.input.Reset()
	m.query = q
	m.messages = append(m.messages, message{role: roleUser, text: q})
	m.pending = m.engine.Submit(m.ctx, q, m.history)
	m.refresh()
	return m, poll()
}

func (m *Model) cyclePrompt() {
	names := m.prompts.Names()
	if len(names) < 2 {
		return
	}
	i := slices.Index(names, m.prompts.CurrentName())
	m.prompts.SetCurrent(names[(i+1)%len(names)])
}

func (m *Model) cycleModel() {
	if len(m.models) == 0 {
		return
	}
	s := m.engine.Settings()
	i := slices.Index(m.models, s.ModelID())
	s.SetModelID(m.models[(i+1)%len(m.models)])
	m.status = "Model: " + s.ModelID()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("RAG Chat") + "  " + m.engine.Describe()
	synopsis := dimStyle.Render(truncate(m.synopsis, max(20, m.width)))
	status := m.status
	if m.pending != nil {
		status = "Generating..."
	}
	return header + "\n" +
		synopsis + "\n" +
		chatBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return dimStyle.Render("No messages yet.")
	}
	width := max(20, m.viewport.Width)
	blocks := make([]string, len(m.messages))
	for i, msg := range m.messages {
		var label, body string
		switch msg.role {
		case roleUser:
			label, body = userStyle.Render("You"), msg.text
		case roleAssistant:
			label, body = botStyle.Render("Assistant"), highlightBestSentence(msg.text, msg.query)
		default:
			label, body = systemStyle.Render("System"), msg.text
		}
		blocks[i] = label + "\n" + lipgloss.NewStyle().Width(width).Render(body)
	}
	return strings.Join(blocks, "\n\n")
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	systemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
