package oracle

import (
	"context"
	"strings"
	"testing"

	"sqlboost/internal/work"

	"github.com/pkg/errors"
)

func TestParseFencedBlock(t *testing.T) {
	resp := "Here you go:\n```sql\nSELECT a FROM t WHERE b > 1;\n```\nEnjoy."
	w, err := Parse(resp)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if w.Serialize() != "SELECT a FROM t WHERE b > 1" {
		t.Fatalf("unexpected payload: %q", w.Serialize())
	}
}

func TestParseBareStatement(t *testing.T) {
	w, err := Parse("WITH q AS (SELECT 1) SELECT * FROM q")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasPrefix(w.Serialize(), "WITH") {
		t.Fatalf("unexpected payload: %q", w.Serialize())
	}
}

func TestParseShapeErrorsAreRetryable(t *testing.T) {
	cases := []string{
		"",
		"```sql\nSELECT 1",
		"I cannot rewrite this query.",
	}
	for _, resp := range cases {
		_, err := Parse(resp)
		if err == nil {
			t.Fatalf("expected parse failure for %q", resp)
		}
		if !IsRetryable(err) {
			t.Fatalf("shape error should be retryable: %v", err)
		}
	}
}

func TestInfraErrorIsNotRetryable(t *testing.T) {
	err := InfraError(errors.New("connection refused"))
	if IsRetryable(err) {
		t.Fatalf("infra error must not be compiler-class")
	}
	if !IsInfra(err) {
		t.Fatalf("expected infra classification")
	}
}

func TestBuildPromptIncludesFeedback(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		Base:     work.SQL("SELECT * FROM t"),
		Strategy: "join_reorder",
		Feedback: []Attempt{{Response: "SELECT * FROM t2", Err: "unknown table t2"}},
	})
	for _, want := range []string{"join reorder", "SELECT * FROM t", "unknown table t2", "Do not repeat"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptSkipsIdenticalPrior(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		Base:      work.SQL("SELECT 1"),
		PriorBest: work.SQL("SELECT 1"),
	})
	if strings.Contains(prompt, "Best rewrite") {
		t.Fatalf("identical prior should not be repeated in the prompt")
	}
}

func TestCachedGenerator(t *testing.T) {
	calls := 0
	inner := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "```sql\nSELECT 1\n```", nil
	})
	cached, err := NewCached(inner, 8)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cached.Generate(ctx, "same prompt"); err != nil {
			t.Fatalf("generate: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}
	hits, misses := cached.Stats()
	if hits != 2 || misses != 1 {
		t.Fatalf("expected 2 hits 1 miss, got %d/%d", hits, misses)
	}
}

func TestCachedGeneratorDoesNotCacheErrors(t *testing.T) {
	calls := 0
	inner := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		if calls == 1 {
			return "", InfraError(errors.New("down"))
		}
		return "ok", nil
	})
	cached, err := NewCached(inner, 8)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}
	ctx := context.Background()
	if _, err := cached.Generate(ctx, "p"); err == nil {
		t.Fatalf("expected first call to fail")
	}
	if _, err := cached.Generate(ctx, "p"); err != nil {
		t.Fatalf("second call should reach upstream: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}
