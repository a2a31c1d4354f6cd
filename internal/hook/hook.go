// Package hook runs post-install commands.
package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Runner executes a post-install command and waits for it to finish.
type Runner interface {
	Run(ctx context.Context, argv []string) error
}

// ExitError reports a command that ran but did not exit successfully.
// Signal is set when the command was killed; Code is -1 in that case.
type ExitError struct {
	Argv   []string
	Code   int
	Signal os.Signal
}

func (e *ExitError) Error() string {
	if e.Signal != nil {
		return fmt.Sprintf("command %q killed by signal %s", strings.Join(e.Argv, " "), e.Signal)
	}
	return fmt.Sprintf("command %q exited with status %d", strings.Join(e.Argv, " "), e.Code)
}

// ExecRunner implements Runner with os/exec. The command inherits the
// standard streams unless they are overridden.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Env    []string // extra KEY=VALUE pairs appended to the environment
}

// NewExecRunner creates a runner wired to the process's standard streams.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run starts argv[0] with the remaining arguments. A command that started
// but did not succeed is returned as *ExitError; failure to start it is
// wrapped as is.
func (r *ExecRunner) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result := &ExitError{Argv: argv, Code: exitErr.ExitCode()}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			result.Signal = ws.Signal()
		}
		return result
	}
	return fmt.Errorf("failed to run %q: %w", argv[0], err)
}
