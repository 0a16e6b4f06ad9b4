// Package work defines the payload type optimized by the scheduler.
package work

import (
	"strings"
)

// Work is an opaque optimization payload. The scheduler, session, gate and
// timing engine only ever serialize it; payload semantics stay with the
// collaborators that execute it.
type Work interface {
	Serialize() string
}

// SQL is a plain SQL statement payload.
type SQL string

// Serialize returns the SQL text.
func (s SQL) Serialize() string { return string(s) }

// IsZero reports whether the payload is empty after trimming.
func (s SQL) IsZero() bool { return strings.TrimSpace(string(s)) == "" }

// Equal reports whether two payloads serialize identically. Domain-specific
// equivalence beyond textual identity is supplied externally.
func Equal(a, b Work) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Serialize() == b.Serialize()
}
