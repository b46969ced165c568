package prompts

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"ragchat/internal/logger"
)

// DefaultPath is where the prompt file is looked up when none is configured.
const DefaultPath = "rag_prompts.yaml"

// Fallback entry installed when loading yields nothing usable.
const (
	FallbackName   = "Auto-generated prompt"
	FallbackSystem = "You are an AI assistant. Answer questions clearly and concisely."
	FallbackUser   = "Question: {query}"
)

var errNoPrompts = errors.New("no usable prompt definitions")

// Definition is one named prompt: a system instruction plus a user template
// with {summary}, {query} and {context} placeholders.
type Definition struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Change is delivered to subscribers whenever the current prompt changes.
type Change struct {
	Name       string
	Definition Definition
}

// Registry holds the loaded prompt definitions and the current selection.
// It is never empty: a fallback definition is installed when needed.
type Registry struct {
	log *logger.Logger

	mu      sync.RWMutex
	names   []string
	defs    map[string]Definition
	current string

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// New returns a registry holding only the fallback definition.
func New(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	r := &Registry{log: log.Component("prompts"), subs: make(map[int]func(Change))}
	r.installFallback()
	return r
}

// LoadFile reads path and loads it. Read failures fall back like parse failures.
func (r *Registry) LoadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("prompt file unreadable, using fallback prompt")
		r.installFallback()
		return
	}
	r.Load(data)
}

// Load replaces the definitions with the YAML mapping in data and selects
// the first entry. Failures are logged and replaced by the fallback entry.
func (r *Registry) Load(data []byte) {
	names, defs, err := parse(data)
	if err != nil {
		r.log.Warn().Err(err).Msg("prompt definitions not loaded, using fallback prompt")
		r.installFallback()
		return
	}
	r.mu.Lock()
	r.names, r.defs, r.current = names, defs, names[0]
	r.mu.Unlock()
	r.log.Info().Int("count", len(names)).Str("current", names[0]).Msg("prompts loaded")
}

// reload swaps in new definitions but keeps the current selection when it
// still exists. A broken file leaves the registry untouched.
func (r *Registry) reload(data []byte) error {
	names, defs, err := parse(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	current := r.current
	if _, ok := defs[current]; !ok {
		current = names[0]
	}
	r.names, r.defs, r.current = names, defs, current
	def := defs[current]
	r.mu.Unlock()

	r.notify(Change{Name: current, Definition: def})
	return nil
}

func (r *Registry) installFallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = []string{FallbackName}
	r.defs = map[string]Definition{FallbackName: {System: FallbackSystem, User: FallbackUser}}
	r.current = FallbackName
}

// Names returns the prompt names in file order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Current returns the system prompt and user template of the current entry.
// Missing values come back as empty strings.
func (r *Registry) Current() (system, user string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def := r.defs[r.current]
	return def.System, def.User
}

// CurrentName returns the name of the current entry.
func (r *Registry) CurrentName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// SetCurrent selects name and notifies subscribers. Unknown names are
// ignored without notification; the return value reports whether it applied.
func (r *Registry) SetCurrent(name string) bool {
	r.mu.Lock()
	def, ok := r.defs[name]
	if !ok {
		r.mu.Unlock()
		r.log.Debug().Str("name", name).Msg("ignoring unknown prompt name")
		return false
	}
	r.current = name
	r.mu.Unlock()

	r.log.Info().Str("name", name).Msg("current prompt changed")
	r.notify(Change{Name: name, Definition: def})
	return true
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs on the goroutine that caused the change.
func (r *Registry) Subscribe(fn func(Change)) (cancel func()) {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()
	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) notify(c Change) {
	r.subMu.Lock()
	fns := make([]func(Change), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// parse decodes a YAML mapping of name -> {system, user}, keeping document
// order. Entries that are not mappings are skipped.
func parse(data []byte) ([]string, map[string]Definition, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, fmt.Errorf("parse prompts: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil, errNoPrompts
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("parse prompts: top level is not a mapping")
	}
	names := make([]string, 0, len(doc.Content)/2)
	defs := make(map[string]Definition, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		name, body := doc.Content[i].Value, doc.Content[i+1]
		if body.Kind != yaml.MappingNode {
			continue
		}
		var def Definition
		if err := body.Decode(&def); err != nil {
			continue
		}
		if _, dup := defs[name]; !dup {
			names = append(names, name)
		}
		defs[name] = def
	}
	if len(names) == 0 {
		return nil, nil, errNoPrompts
	}
	return names, defs, nil
}
