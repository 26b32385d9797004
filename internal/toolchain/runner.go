package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. A failing command yields *Error with the raw stderr.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), &Error{
			Command: name,
			Args:    args,
			Stderr:  stderr.String(),
			Err:     err,
		}
	}

	return stdout.String(), nil
}

// Error is a failed toolchain command. Stderr is kept verbatim.
type Error struct {
	// Command is the executable that failed.
	Command string
	// Args are the arguments it was called with.
	Args []string
	// Stderr is the raw diagnostic output.
	Stderr string
	// Err is the underlying exec error.
	Err error
}

func (e *Error) Error() string {
	commandLine := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		return fmt.Sprintf("%s failed: %v\n%s", commandLine, e.Err, e.Stderr)
	}

	return fmt.Sprintf("%s failed: %v", commandLine, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
