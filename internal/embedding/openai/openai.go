package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoEmbedding is returned when the endpoint answered without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

const (
	defaultModel      = "text-embedding-3-small"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 5
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// Client embeds text through an OpenAI-compatible /embeddings endpoint
// (OpenAI, Ollama, vLLM, LM Studio).
type Client struct {
	client    openai.Client
	model     string
	dimension atomic.Int64
}

// NewClient creates an embeddings client. A key is required unless a custom
// base URL points to a local server.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(defaultMaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

func (c *Client) Name() string { return "openai" }

// Prepare is a no-op; the dimension is learned from the first response.
func (c *Client) Prepare([]string) error { return nil }

func (c *Client) Dimension() int { return int(c.dimension.Load()) }

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrNoEmbedding
	}
	v := resp.Data[0].Embedding
	c.dimension.CompareAndSwap(0, int64(len(v)))
	return v, nil
}
