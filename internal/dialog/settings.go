package dialog

import "sync"

// DefaultTemperature is the sampling temperature of answers.
const DefaultTemperature = 0.3

// Settings are the user-adjustable knobs of the orchestrator. Setters do no
// validation beyond clamping the temperature into [0, 1].
type Settings struct {
	mu          sync.RWMutex
	modelID     string
	temperature float64
	databaseID  string
	jsonMode    bool
}

// NewSettings returns settings for modelID with the default temperature.
func NewSettings(modelID string) *Settings {
	return &Settings{modelID: modelID, temperature: DefaultTemperature}
}

func (s *Settings) ModelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelID
}

func (s *Settings) SetModelID(id string) {
	s.mu.Lock()
	s.modelID = id
	s.mu.Unlock()
}

func (s *Settings) Temperature() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.temperature
}

// SetTemperature stores t clamped into [0, 1].
func (s *Settings) SetTemperature(t float64) {
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	s.mu.Lock()
	s.temperature = t
	s.mu.Unlock()
}

func (s *Settings) DatabaseID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.databaseID
}

func (s *Settings) SetDatabaseID(id string) {
	s.mu.Lock()
	s.databaseID = id
	s.mu.Unlock()
}

func (s *Settings) JSONMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jsonMode
}

func (s *Settings) SetJSONMode(on bool) {
	s.mu.Lock()
	s.jsonMode = on
	s.mu.Unlock()
}
