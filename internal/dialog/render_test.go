package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	slots := Slots{Summary: "S", Query: "Q", Context: "C"}
	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"all slots", "q={query} c={context} s={summary}", "q=Q c=C s=S"},
		{"repeated", "{query}{query}", "QQ"},
		{"no slots", "plain text", "plain text"},
		{"escaped braces", `{{"answer": "{query}"}}`, `{"answer": "Q"}`},
		{"unicode", "Вопрос: {query}", "Вопрос: Q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, slots)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	for _, tmpl := range []string{"{history}", "open {query", "close }", "{}"} {
		_, err := Render(tmpl, Slots{})
		assert.ErrorIs(t, err, ErrRender, tmpl)
	}
}

func TestRenderDoesNotExpandSlotValues(t *testing.T) {
	got, err := Render("{query}", Slots{Query: "{context}"})
	require.NoError(t, err)
	assert.Equal(t, "{context}", got)
}

func TestSettingsClampTemperature(t *testing.T) {
	s := NewSettings("m")
	assert.Equal(t, DefaultTemperature, s.Temperature())

	s.SetTemperature(1.7)
	assert.Equal(t, 1.0, s.Temperature())
	s.SetTemperature(-0.2)
	assert.Equal(t, 0.0, s.Temperature())
	s.SetTemperature(0.55)
	assert.Equal(t, 0.55, s.Temperature())

	s.SetModelID("other")
	s.SetDatabaseID("DB_Main")
	s.SetJSONMode(true)
	assert.Equal(t, "other", s.ModelID())
	assert.Equal(t, "DB_Main", s.DatabaseID())
	assert.True(t, s.JSONMode())
}
