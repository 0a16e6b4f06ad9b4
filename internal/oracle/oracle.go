// Package oracle is the boundary to the external candidate generator.
// The generator is untrusted: it may be slow, unavailable, or wrong, and
// nothing here assumes otherwise.
package oracle

import (
	"context"

	"sqlboost/internal/work"
)

// Generator produces a raw rewrite proposal for a prompt. One call per
// lane per attempt; the session adds at most one retry.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ParseFunc converts a raw generator response into a work item.
type ParseFunc func(response string) (work.Work, error)

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
