package generator

import (
	"context"
	"errors"
)

var (
	ErrEmptyResponse = errors.New("model returned no text")
	// ErrTruncated means the model stopped at the token limit, so structured
	// output is likely cut off.
	ErrTruncated = errors.New("model output truncated at token limit")
)

// Generator turns a prompt into raw model output. Callers own parsing.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
