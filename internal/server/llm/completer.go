// Package llm is the gateway between the conversation flow and a generative
// model. Each operation makes exactly one model call, validates the JSON the
// model returns and turns it into a typed result.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Kind selects the response schema a prompt expects.
type Kind string

const (
	KindContinuation Kind = "continuation"
	KindFinalization Kind = "finalization"
)

// Prompt is a fully rendered request to a model.
type Prompt struct {
	Kind   Kind
	System string
	User   string
	// Turn is the 1-based user turn for continuation prompts.
	Turn int
}

// Completer sends one prompt to a model and returns its raw text reply.
// Implementations must not retry.
type Completer interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// ProviderError is returned by completers for failed upstream calls.
// Transient marks failures that might succeed later (rate limits, 5xx,
// timeouts); it only affects logging and metrics since nothing is retried.
type ProviderError struct {
	Provider   string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err wraps a transient ProviderError.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

func transientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
