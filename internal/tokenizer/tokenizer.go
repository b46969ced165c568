package tokenizer

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used by current OpenAI chat models.
const DefaultEncoding = "cl100k_base"

// Tiktoken counts tokens with a BPE encoding.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// New loads the named encoding. The BPE ranks are fetched on first use and
// cached by tiktoken-go, so this can fail when offline.
func New(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &Tiktoken{encoding: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// Approx estimates tokens as one per four runes. Used when no encoding
// could be loaded.
type Approx struct{}

func (Approx) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
