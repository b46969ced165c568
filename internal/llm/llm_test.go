package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func recordingServer(t *testing.T, path, reply string, status int, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const openAIReply = `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" pong "}}]}`

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	srv := recordingServer(t, "/v1/chat/completions", openAIReply, http.StatusOK, &body)
	backend := NewOpenAI("test-key", Config{BaseURL: srv.URL + "/v1/", Model: "default-model"})

	answer, err := backend.Complete(context.Background(), domain.GenerationRequest{
		SystemPrompt: "S",
		UserPrompt:   "U",
		Temperature:  0.3,
		ModelID:      "gpt-4o-mini",
		JSONMode:     true,
	})

	require.NoError(t, err)
	assert.Equal(t, "pong", answer)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAIUsesConfiguredModelAndOmitsJSONMode(t *testing.T) {
	var body map[string]any
	srv := recordingServer(t, "/v1/chat/completions", openAIReply, http.StatusOK, &body)
	backend := NewOpenAI("k", Config{BaseURL: srv.URL + "/v1/", Model: "default-model"})

	_, err := backend.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "U"})
	require.NoError(t, err)
	assert.Equal(t, "default-model", body["model"])
	assert.NotContains(t, body, "response_format")
	assert.Len(t, body["messages"], 1)
}

func TestOpenAIEmptyCompletion(t *testing.T) {
	var body map[string]any
	reply := `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`
	srv := recordingServer(t, "/v1/chat/completions", reply, http.StatusOK, &body)
	backend := NewOpenAI("k", Config{BaseURL: srv.URL + "/v1/", Model: "m"})

	_, err := backend.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "U"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAIErrorStatus(t *testing.T) {
	var body map[string]any
	reply := `{"error":{"message":"bad model","type":"invalid_request_error"}}`
	srv := recordingServer(t, "/v1/chat/completions", reply, http.StatusBadRequest, &body)
	backend := NewOpenAI("k", Config{BaseURL: srv.URL + "/v1/", Model: "m"})

	_, err := backend.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "U"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai chat completion")
}

func TestServerErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	backend := NewOpenAI("k", Config{BaseURL: srv.URL + "/v1/", Model: "m"})
	_, err := backend.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "U"})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

const anthropicReply = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
"content":[{"type":"text","text":"po"},{"type":"text","text":"ng"}],
"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`

func TestAnthropicComplete(t *testing.T) {
	var body map[string]any
	srv := recordingServer(t, "/v1/messages", anthropicReply, http.StatusOK, &body)
	backend := NewAnthropic("test-key", Config{BaseURL: srv.URL + "/", Model: "claude-test", MaxTokens: 256})

	answer, err := backend.Complete(context.Background(), domain.GenerationRequest{
		SystemPrompt: "S",
		UserPrompt:   "U",
		Temperature:  0,
	})

	require.NoError(t, err)
	assert.Equal(t, "pong", answer)
	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
	assert.EqualValues(t, 0, body["temperature"])
	system := body["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "S", system[0].(map[string]any)["text"])
}

func TestAnthropicEmptyCompletion(t *testing.T) {
	var body map[string]any
	reply := `{"id":"msg_1","type":"message","role":"assistant","model":"c","content":[],
"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":0}}`
	srv := recordingServer(t, "/v1/messages", reply, http.StatusOK, &body)
	backend := NewAnthropic("k", Config{BaseURL: srv.URL + "/", Model: "c"})

	_, err := backend.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "U"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestNewSelectsProvider(t *testing.T) {
	t.Setenv("RAGCHAT_TEST_KEY", "k")

	b, err := New(Config{Provider: ProviderAnthropic, APIKeyEnv: "RAGCHAT_TEST_KEY"})
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, b)

	b, err = New(Config{APIKeyEnv: "RAGCHAT_TEST_KEY"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, b)

	_, err = New(Config{Provider: "gigachat", APIKeyEnv: "RAGCHAT_TEST_KEY"})
	assert.Error(t, err)

	_, err = New(Config{APIKeyEnv: "RAGCHAT_UNSET_KEY"})
	assert.Error(t, err)
}
