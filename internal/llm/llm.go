package llm

import (
	"errors"
	"fmt"
	"os"
	"time"

	"ragchat/internal/domain"
)

// ErrEmptyCompletion is returned when the model answered with no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config configures a generation backend.
type Config struct {
	Provider  string
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	// MaxRetries is the number of SDK retries. Zero sends every request
	// exactly once.
	MaxRetries int
}

// New builds the backend named by cfg.Provider.
func New(cfg Config) (domain.Backend, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(key, cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(key, cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
