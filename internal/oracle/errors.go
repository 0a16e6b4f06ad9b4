package oracle

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags a generation failure at its point of origin. Retry decisions
// are made on the kind, never by sniffing message substrings.
type Kind int

const (
	// KindCompiler marks structural/shape failures: malformed response,
	// unparseable output, references to unknown symbols. The only kind
	// eligible for the one error-feedback retry.
	KindCompiler Kind = iota
	// KindInfra marks oracle transport failures (unreachable, timeout).
	KindInfra
	// KindOther marks everything else; terminal for the lane.
	KindOther
)

// Error is a kinded generation failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindCompiler:
		return fmt.Sprintf("generation shape error: %v", e.Err)
	case KindInfra:
		return fmt.Sprintf("oracle unavailable: %v", e.Err)
	}
	return fmt.Sprintf("generation error: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CompilerErrorf builds a retry-eligible shape error.
func CompilerErrorf(format string, args ...any) error {
	return &Error{Kind: KindCompiler, Err: errors.Errorf(format, args...)}
}

// InfraError wraps a transport failure.
func InfraError(err error) error {
	return &Error{Kind: KindInfra, Err: err}
}

// IsRetryable reports whether err is a compiler-class generation failure.
func IsRetryable(err error) bool {
	var genErr *Error
	if !errors.As(err, &genErr) {
		return false
	}
	return genErr.Kind == KindCompiler
}

// IsInfra reports whether err is an oracle transport failure.
func IsInfra(err error) bool {
	var genErr *Error
	if !errors.As(err, &genErr) {
		return false
	}
	return genErr.Kind == KindInfra
}
