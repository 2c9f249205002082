// Package llm abstracts the text-generation collaborator. The
// pipeline only depends on the Generator interface; the Gemini
// implementation lives beside it and tests inject fakes.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Generator produces plain text for a fully-resolved prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TransientError marks a transport or timeout failure eligible for
// retry under the caller's retry policy.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient llm failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retry-eligible.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
