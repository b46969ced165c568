package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrompts = `
qa:
  system: "Answer from the fragments."
  user: "C:{context} Q:{query}"
strict:
  system: "Only answer with facts from the fragments, nothing else at all please."
  user: "{summary} {query}"
`

func writeFixture(t *testing.T, llmURL string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	promptPath := filepath.Join(dir, "rag_prompts.yaml")
	require.NoError(t, os.WriteFile(promptPath, []byte(testPrompts), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.txt"), []byte("Qdrant stores vectors."), 0o644))

	cfg := fmt.Sprintf(`
llm:
  provider: openai
  base_url: %s
  api_key_env: RAGCHAT_TEST_UNSET_KEY
  model: test-model
prompts:
  path: %s
  watch: false
dialog:
  token_encoding: approx
  summary_policy: carry_over
  database: DB_Test
log:
  level: error
`, llmURL, promptPath)
	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return dir, cfgPath
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestPromptsListsInFileOrder(t *testing.T) {
	_, cfgPath := writeFixture(t, "http://127.0.0.1:1/v1/")
	out, _, err := run(t, "prompts", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "* qa\n  strict\n", out)
}

func TestPromptsSetPrintsSettings(t *testing.T) {
	_, cfgPath := writeFixture(t, "http://127.0.0.1:1/v1/")
	out, _, err := run(t, "prompts", "--config", cfgPath, "--set", "strict")
	require.NoError(t, err)
	assert.Contains(t, out, "prompt:   strict")
	assert.Contains(t, out, "system:   Only answer with facts from the fragments, nothing...")
	assert.Contains(t, out, "model:    test-model")
	assert.Contains(t, out, "database: DB_Test")

	_, _, err = run(t, "prompts", "--config", cfgPath, "--set", "missing")
	assert.Error(t, err)
}

func TestAskAnswersWithRetrievedContext(t *testing.T) {
	var userPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		userPrompt = body.Messages[len(body.Messages)-1].Content
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"test-model",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer srv.Close()

	dir, cfgPath := writeFixture(t, srv.URL+"/v1/")
	out, stderr, err := run(t, "ask", "--config", cfgPath, "--status",
		"--file", filepath.Join(dir, "*.txt"), "qdrant", "vectors")
	require.NoError(t, err)
	assert.Equal(t, "pong\n", out)
	assert.Contains(t, stderr, "Index loaded. Vectors in index: 1")
	assert.Contains(t, stderr, "prompt: qa · model: test-model · temperature: 0.30 · db: DB_Test")
	assert.Equal(t, "C:Fragment 0:\nQdrant stores vectors.\n Q:qdrant vectors", userPrompt)
}

func TestAskReportsBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, cfgPath := writeFixture(t, srv.URL+"/v1/")
	_, _, err := run(t, "ask", "--config", cfgPath, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation error")
}
