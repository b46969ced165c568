package dialog

import (
	"errors"
	"fmt"
)

var (
	// ErrRender is returned when the user template cannot be rendered.
	ErrRender = errors.New("prompt template rendering failed")
	// ErrEmptyQuery is returned for blank queries; no backend call is made.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrConversationCleared is returned when the conversation was cleared
	// while the turn ran; the answer is dropped.
	ErrConversationCleared = errors.New("conversation cleared during the turn")
)

// BackendError reports that the generation backend failed the call.
// History is never updated when it is returned.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
