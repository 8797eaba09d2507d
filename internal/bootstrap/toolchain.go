package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/labctl/internal/tools"
	"github.com/rs/zerolog/log"
)

var ErrEmptyCommand = errors.New("bootstrap: empty command")

// Toolchain is the host capability the bootstrapper drives. Tests swap it
// for a fake so no package manager or server is ever invoked.
type Toolchain interface {
	// CheckInstalled reports whether `<command> --version` exits cleanly.
	CheckInstalled(ctx context.Context, command string) bool
	// Install runs one installer step with output attached to the operator.
	Install(ctx context.Context, argv []string) error
	// LaunchProcess blocks until the process exits or ctx is cancelled.
	LaunchProcess(ctx context.Context, argv []string) error
}

// ExitError is a subprocess failure. Its code becomes the process exit code.
type ExitError struct {
	Step string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("bootstrap step failed cmd=%q exit=%d: %v", e.Step, e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode never reports success for a failed step.
func (e *ExitError) ExitCode() int {
	if e.Code <= 0 {
		return 1
	}
	return e.Code
}

// HostToolchain runs commands through a tools.Runner, local or remote.
type HostToolchain struct {
	runner tools.Runner
	stdout io.Writer
	stderr io.Writer
}

var _ Toolchain = (*HostToolchain)(nil)

func NewHostToolchain(runner tools.Runner, stdout, stderr io.Writer) *HostToolchain {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &HostToolchain{runner: runner, stdout: stdout, stderr: stderr}
}

func (h *HostToolchain) CheckInstalled(ctx context.Context, command string) bool {
	command = strings.TrimSpace(command)
	if command == "" || ctx.Err() != nil {
		return false
	}
	_, _, exitCode, err := h.runner.Run(command, "--version")
	if err != nil {
		log.Debug().Str("cmd", command).Int32("exit", exitCode).Err(err).Msg("bootstrap.probe missing")
		return false
	}
	return true
}

func (h *HostToolchain) Install(ctx context.Context, argv []string) error {
	return h.stream(ctx, argv)
}

func (h *HostToolchain) LaunchProcess(ctx context.Context, argv []string) error {
	return h.stream(ctx, argv)
}

func (h *HostToolchain) stream(ctx context.Context, argv []string) error {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return ErrEmptyCommand
	}
	log.Info().Str("cmd", argv[0]).Str("args", strings.Join(argv[1:], " ")).Msg("bootstrap exec")
	code, err := h.runner.RunStreaming(ctx, argv[0], argv[1:], h.stdout, h.stderr)
	if err != nil {
		return &ExitError{Step: strings.Join(argv, " "), Code: int(code), Err: err}
	}
	return nil
}
