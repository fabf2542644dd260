package workload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// maxStderr bounds the stderr excerpt kept in errors.
const maxStderr = 512

// Command runs an external program per invocation. A non-zero exit status
// fails the invocation.
type Command struct {
	args []string
}

// NewCommand creates a command workload. args[0] is the program.
func NewCommand(args ...string) (*Command, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, errors.New("command workload requires a program")
	}
	return &Command{args: append([]string(nil), args...)}, nil
}

// Invoke runs the program and waits for it to exit.
func (c *Command) Invoke(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", c.args[0], err, msg)
		}
		return fmt.Errorf("%s: %w", c.args[0], err)
	}
	return nil
}
