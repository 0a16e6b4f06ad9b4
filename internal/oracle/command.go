package oracle

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CommandGenerator shells out to an external rewrite oracle. The prompt
// is written to stdin and the response read from stdout.
type CommandGenerator struct {
	command string
	args    []string
	timeout time.Duration
}

// NewCommand builds a generator around an external command.
func NewCommand(command string, args []string, timeout time.Duration) *CommandGenerator {
	return &CommandGenerator{command: command, args: args, timeout: timeout}
}

// Generate runs one oracle invocation. Command failures are infra
// errors; they are never fed back for a retry.
func (g *CommandGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.command == "" {
		return "", InfraError(errors.New("oracle command not configured"))
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, g.command, g.args...)
	cmd.Stdin = strings.NewReader(prompt)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", InfraError(errors.Wrapf(err, "oracle command: %s", detail))
		}
		return "", InfraError(errors.Wrap(err, "oracle command"))
	}
	return out.String(), nil
}
