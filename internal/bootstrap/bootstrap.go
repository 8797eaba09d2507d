package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/labctl/internal/observability"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPort   = 8888
	DefaultPython = "python3"
)

// Tool is one command-line dependency and the steps that install it.
type Tool struct {
	Command string
	Display string
	Install [][]string
}

func (t Tool) displayName() string {
	if d := strings.TrimSpace(t.Display); d != "" {
		return d
	}
	return t.Command
}

// Config is the runtime shape of the bootstrapper.
type Config struct {
	Port        int
	NoBrowser   bool
	DisableAuth bool
	Tools       []Tool
	// Server is the launch command before flags, e.g. jupyter notebook.
	Server    []string
	ExtraArgs []string
}

func DefaultConfig() Config {
	return Config{
		Port:        DefaultPort,
		NoBrowser:   true,
		DisableAuth: true,
		Tools:       DefaultTools(DefaultPython),
		Server:      []string{"jupyter", "notebook"},
	}
}

// DefaultTools installs Jupyter through pip and the JavaScript kernel
// through npm followed by its kernel registration step.
func DefaultTools(python string) []Tool {
	if strings.TrimSpace(python) == "" {
		python = DefaultPython
	}
	return []Tool{
		{
			Command: "jupyter",
			Display: "Jupyter",
			Install: [][]string{
				{python, "-m", "pip", "install", "jupyter", "--break-system-packages"},
			},
		},
		{
			Command: "ijs",
			Display: "ijavascript",
			Install: [][]string{
				{"npm", "install", "-g", "ijavascript"},
				{"ijsinstall"},
			},
		},
	}
}

// ServerArgv renders the full launch command line.
func (c Config) ServerArgv() []string {
	argv := append([]string{}, c.Server...)
	if c.NoBrowser {
		argv = append(argv, "--no-browser")
	}
	argv = append(argv, "--port="+strconv.Itoa(c.Port))
	if c.DisableAuth {
		argv = append(argv, "--NotebookApp.token=", "--NotebookApp.password=")
	}
	return append(argv, c.ExtraArgs...)
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("bootstrap: port %d out of range", c.Port)
	}
	if len(c.Server) == 0 || strings.TrimSpace(c.Server[0]) == "" {
		return fmt.Errorf("bootstrap: server command is required")
	}
	for i, tool := range c.Tools {
		if strings.TrimSpace(tool.Command) == "" {
			return fmt.Errorf("bootstrap: tool[%d] missing command", i)
		}
		for j, step := range tool.Install {
			if len(step) == 0 || strings.TrimSpace(step[0]) == "" {
				return fmt.Errorf("bootstrap: tool %q install[%d] is empty", tool.Command, j)
			}
		}
	}
	return nil
}

type Option func(*Bootstrapper)

// WithOutput directs operator banners to w.
func WithOutput(w io.Writer) Option {
	return func(b *Bootstrapper) {
		b.out = w
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bootstrapper) {
		b.logger = logger
	}
}

// Bootstrapper ensures the notebook toolchain exists, then runs the server.
type Bootstrapper struct {
	cfg       Config
	toolchain Toolchain
	out       io.Writer
	logger    zerolog.Logger
}

func New(cfg Config, toolchain Toolchain, opts ...Option) (*Bootstrapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if toolchain == nil {
		toolchain = NewHostToolchain(nil, nil, nil)
	}
	b := &Bootstrapper{
		cfg:       cfg,
		toolchain: toolchain,
		out:       io.Discard,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bootstrapper) IsInstalled(ctx context.Context, command string) bool {
	installed := b.toolchain.CheckInstalled(ctx, command)
	observability.RecordProbe(command, installed)
	return installed
}

// InstallDependencies installs each missing tool in order. The first failed
// step aborts the whole run; nothing already installed is rolled back.
func (b *Bootstrapper) InstallDependencies(ctx context.Context) error {
	for _, tool := range b.cfg.Tools {
		if b.IsInstalled(ctx, tool.Command) {
			fmt.Fprintf(b.out, "%s is already installed.\n", tool.displayName())
			b.logger.Info().Str("tool", tool.Command).Msg("bootstrap.install skipped")
			continue
		}

		fmt.Fprintf(b.out, "Installing %s...\n", tool.displayName())
		for _, step := range tool.Install {
			err := b.toolchain.Install(ctx, step)
			observability.RecordInstallStep(tool.Command, step[0], err == nil)
			if err != nil {
				b.logger.Error().Str("tool", tool.Command).Strs("step", step).Err(err).Msg("bootstrap.install failed")
				return asExitError(step, err)
			}
		}
		b.logger.Info().Str("tool", tool.Command).Int("steps", len(tool.Install)).Msg("bootstrap.install done")
	}
	return nil
}

// StartServer blocks until the server exits. An operator interrupt
// (cancelled ctx) counts as a clean stop.
func (b *Bootstrapper) StartServer(ctx context.Context) error {
	argv := b.cfg.ServerArgv()
	fmt.Fprintf(b.out, "Starting Jupyter Notebook on port %d...\n", b.cfg.Port)
	b.logger.Info().Int("port", b.cfg.Port).Strs("argv", argv).Msg("bootstrap.server start")

	err := b.toolchain.LaunchProcess(ctx, argv)
	if ctx.Err() != nil {
		b.logger.Info().Msg("bootstrap.server interrupted")
		return nil
	}
	if err != nil {
		return asExitError(argv, err)
	}
	b.logger.Info().Msg("bootstrap.server exited")
	return nil
}

func (b *Bootstrapper) Run(ctx context.Context) error {
	if err := b.InstallDependencies(ctx); err != nil {
		return err
	}
	return b.StartServer(ctx)
}

func asExitError(argv []string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Step: strings.Join(argv, " "), Code: 1, Err: err}
}
