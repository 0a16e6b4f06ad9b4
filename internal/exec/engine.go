// Package exec defines the execution-engine boundary used by validation
// and timing. Calls must be read-only and side-effect free: the same work
// item is executed many times per candidate.
package exec

import (
	"context"

	"sqlboost/internal/work"
)

// Result captures one execution of a work item.
type Result struct {
	RowCount  int
	Digest    string
	ElapsedMs float64
}

// Engine executes work items against a live system.
type Engine interface {
	Execute(ctx context.Context, w work.Work) (Result, error)
}
