package oracle

import (
	"fmt"
	"strings"

	"sqlboost/internal/work"
)

// Attempt records a failed generation for error-feedback retry prompts.
type Attempt struct {
	Response string
	Err      string
}

// PromptInput assembles everything a lane knows before calling the oracle.
type PromptInput struct {
	Base      work.Work
	PriorBest work.Work
	Strategy  string
	Feedback  []Attempt
}

// BuildPrompt renders the generation context for one oracle call. The
// format is plain text; the oracle owes us no structure in return, so we
// ask for a fenced sql block and let Parse cope with the rest.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("Rewrite the following SQL query so it returns exactly the same rows but runs faster.\n")
	if in.Strategy != "" {
		fmt.Fprintf(&b, "Apply this strategy: %s.\n", strings.ReplaceAll(in.Strategy, "_", " "))
	}
	b.WriteString("\nQuery:\n```sql\n")
	b.WriteString(strings.TrimSpace(in.Base.Serialize()))
	b.WriteString("\n```\n")
	if in.PriorBest != nil && !work.Equal(in.PriorBest, in.Base) {
		b.WriteString("\nBest rewrite found so far (improve on it):\n```sql\n")
		b.WriteString(strings.TrimSpace(in.PriorBest.Serialize()))
		b.WriteString("\n```\n")
	}
	for _, attempt := range in.Feedback {
		b.WriteString("\nA previous attempt was rejected. Do not repeat its mistake.\n")
		if attempt.Response != "" {
			b.WriteString("Attempt:\n```sql\n")
			b.WriteString(strings.TrimSpace(attempt.Response))
			b.WriteString("\n```\n")
		}
		fmt.Fprintf(&b, "Rejection: %s\n", attempt.Err)
	}
	b.WriteString("\nRespond with a single ```sql fenced block containing only the rewritten query.\n")
	return b.String()
}

// Parse extracts a SQL work item from a raw oracle response. It accepts a
// fenced sql block or a bare statement; anything else is a compiler-class
// shape error, eligible for one feedback retry.
func Parse(response string) (work.Work, error) {
	text := strings.TrimSpace(response)
	if text == "" {
		return nil, CompilerErrorf("empty response")
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "sql")
		rest = strings.TrimPrefix(rest, "\n")
		end := strings.Index(rest, "```")
		if end < 0 {
			return nil, CompilerErrorf("unterminated code fence")
		}
		text = strings.TrimSpace(rest[:end])
	}
	if text == "" {
		return nil, CompilerErrorf("empty code fence")
	}
	upper := strings.ToUpper(text)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") && !strings.HasPrefix(upper, "(") {
		return nil, CompilerErrorf("response is not a query: %.40s", text)
	}
	return work.SQL(strings.TrimSuffix(text, ";")), nil
}
