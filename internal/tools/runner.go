package tools

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"syscall"
	"time"
)

// ExitNotFound is the shell convention for a command missing from PATH.
const ExitNotFound int32 = 127

// CommandRunner abstracts captured command execution for probes.
type CommandRunner interface {
	Run(name string, args ...string) ([]byte, []byte, int32, error)
}

// StreamRunner executes a command with its output attached to the operator.
// Cancelling ctx asks the process to terminate.
type StreamRunner interface {
	RunStreaming(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (int32, error)
}

// Runner is the full execution surface used by the bootstrapper.
type Runner interface {
	CommandRunner
	StreamRunner
}

// ExecRunner executes commands on the local host.
type ExecRunner struct {
	// GracePeriod bounds how long a cancelled process may take to exit
	// after SIGTERM before it is killed.
	GracePeriod time.Duration
}

var _ Runner = ExecRunner{}

func (r ExecRunner) Run(name string, args ...string) ([]byte, []byte, int32, error) {
	cmd := exec.Command(name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), ExitCode(err), err
}

func (r ExecRunner) RunStreaming(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (int32, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.gracePeriod()

	err := cmd.Run()
	return ExitCode(err), err
}

func (r ExecRunner) gracePeriod() time.Duration {
	if r.GracePeriod > 0 {
		return r.GracePeriod
	}
	return 10 * time.Second
}

// ExitCode maps an exec error onto a process exit code.
// Commands that never started report ExitNotFound.
func ExitCode(err error) int32 {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return int32(code)
		}
		return 1
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return ExitNotFound
	}
	return 1
}
