package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/danmuck/labctl/internal/testutil/testlog"
	"github.com/danmuck/labctl/internal/tools"
)

type fakeToolchain struct {
	installed  map[string]bool
	probes     []string
	installs   [][]string
	launches   [][]string
	installErr map[string]error
	launchErr  error
	onLaunch   func()
}

func (f *fakeToolchain) CheckInstalled(_ context.Context, command string) bool {
	f.probes = append(f.probes, command)
	return f.installed[command]
}

func (f *fakeToolchain) Install(_ context.Context, argv []string) error {
	f.installs = append(f.installs, argv)
	if err, ok := f.installErr[argv[0]]; ok {
		return err
	}
	return nil
}

func (f *fakeToolchain) LaunchProcess(_ context.Context, argv []string) error {
	f.launches = append(f.launches, argv)
	if f.onLaunch != nil {
		f.onLaunch()
	}
	return f.launchErr
}

func newBootstrapper(t *testing.T, tc Toolchain, out *bytes.Buffer) *Bootstrapper {
	t.Helper()
	b, err := New(DefaultConfig(), tc, WithOutput(out), WithLogger(testlog.Logger(t)))
	if err != nil {
		t.Fatalf("new bootstrapper: %v", err)
	}
	return b
}

func TestRunWithToolsPresentSkipsInstall(t *testing.T) {
	testlog.Start(t)

	tc := &fakeToolchain{installed: map[string]bool{"jupyter": true, "ijs": true}}
	var out bytes.Buffer
	if err := newBootstrapper(t, tc, &out).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(tc.installs) != 0 {
		t.Fatalf("expected zero installs, got %v", tc.installs)
	}
	if !reflect.DeepEqual(tc.probes, []string{"jupyter", "ijs"}) {
		t.Fatalf("unexpected probes: %v", tc.probes)
	}
	if len(tc.launches) != 1 {
		t.Fatalf("expected one launch, got %d", len(tc.launches))
	}
	want := []string{"jupyter", "notebook", "--no-browser", "--port=8888", "--NotebookApp.token=", "--NotebookApp.password="}
	if !reflect.DeepEqual(tc.launches[0], want) {
		t.Fatalf("unexpected launch argv:\n got: %v\nwant: %v", tc.launches[0], want)
	}
	for _, line := range []string{
		"Jupyter is already installed.",
		"ijavascript is already installed.",
		"Starting Jupyter Notebook on port 8888...",
	} {
		if !strings.Contains(out.String(), line) {
			t.Fatalf("missing %q in output:\n%s", line, out.String())
		}
	}
}

func TestRunInstallsMissingToolsInOrder(t *testing.T) {
	testlog.Start(t)

	tc := &fakeToolchain{installed: map[string]bool{}}
	var out bytes.Buffer
	if err := newBootstrapper(t, tc, &out).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := [][]string{
		{"python3", "-m", "pip", "install", "jupyter", "--break-system-packages"},
		{"npm", "install", "-g", "ijavascript"},
		{"ijsinstall"},
	}
	if !reflect.DeepEqual(tc.installs, want) {
		t.Fatalf("unexpected installs:\n got: %v\nwant: %v", tc.installs, want)
	}
	if len(tc.launches) != 1 {
		t.Fatalf("expected launch after installs, got %d", len(tc.launches))
	}
	if !strings.Contains(out.String(), "Installing Jupyter...\nInstalling ijavascript...\nStarting") {
		t.Fatalf("unexpected banner order:\n%s", out.String())
	}
}

func TestInstallFailureIsFatal(t *testing.T) {
	testlog.Start(t)

	tc := &fakeToolchain{
		installed: map[string]bool{"jupyter": true},
		installErr: map[string]error{
			"npm": &ExitError{Step: "npm install -g ijavascript", Code: 243, Err: errors.New("exit status 243")},
		},
	}
	err := newBootstrapper(t, tc, &bytes.Buffer{}).Run(context.Background())

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.ExitCode() != 243 {
		t.Fatalf("unexpected exit code: %d", exitErr.ExitCode())
	}
	if len(tc.installs) != 1 {
		t.Fatalf("expected ijsinstall to be skipped after npm failure, got %v", tc.installs)
	}
	if len(tc.launches) != 0 {
		t.Fatalf("server must not launch after install failure")
	}
}

func TestInstallFailureWithoutCodeExitsOne(t *testing.T) {
	testlog.Start(t)

	tc := &fakeToolchain{
		installed:  map[string]bool{},
		installErr: map[string]error{"python3": errors.New("pip exploded")},
	}
	err := newBootstrapper(t, tc, &bytes.Buffer{}).InstallDependencies(context.Background())

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("unexpected exit code: %d", exitErr.ExitCode())
	}
	if !strings.Contains(exitErr.Step, "pip install jupyter") {
		t.Fatalf("unexpected step: %q", exitErr.Step)
	}
}

func TestStartServerPropagatesExitCode(t *testing.T) {
	testlog.Start(t)

	tc := &fakeToolchain{
		installed: map[string]bool{"jupyter": true, "ijs": true},
		launchErr: &ExitError{Step: "jupyter notebook", Code: 2, Err: errors.New("exit status 2")},
	}
	err := newBootstrapper(t, tc, &bytes.Buffer{}).StartServer(context.Background())

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
}

func TestStartServerInterruptIsClean(t *testing.T) {
	testlog.Start(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tc := &fakeToolchain{
		launchErr: errors.New("signal: terminated"),
		onLaunch:  cancel,
	}
	if err := newBootstrapper(t, tc, &bytes.Buffer{}).StartServer(ctx); err != nil {
		t.Fatalf("expected interrupted server to stop cleanly, got %v", err)
	}
}

func TestServerArgvHonorsFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 9999
	cfg.NoBrowser = false
	cfg.DisableAuth = false
	cfg.ExtraArgs = []string{"--notebook-dir=/srv/notebooks"}

	want := []string{"jupyter", "notebook", "--port=9999", "--notebook-dir=/srv/notebooks"}
	if got := cfg.ServerArgv(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected argv:\n got: %v\nwant: %v", got, want)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"port":        func(c *Config) { c.Port = 0 },
		"server":      func(c *Config) { c.Server = nil },
		"toolCommand": func(c *Config) { c.Tools = []Tool{{Command: " "}} },
		"emptyStep":   func(c *Config) { c.Tools = []Tool{{Command: "x", Install: [][]string{{}}}} },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

type hostFakeRunner struct {
	runs       [][]string
	streams    [][]string
	codes      map[string]int32
	streamCode int32
	streamErr  error
}

func (r *hostFakeRunner) Run(name string, args ...string) ([]byte, []byte, int32, error) {
	r.runs = append(r.runs, append([]string{name}, args...))
	if code, ok := r.codes[name]; ok && code != 0 {
		return nil, []byte("not found"), code, errors.New("exec: " + name + ": not found")
	}
	return []byte("1.0.0"), nil, 0, nil
}

func (r *hostFakeRunner) RunStreaming(_ context.Context, name string, args []string, _, _ io.Writer) (int32, error) {
	r.streams = append(r.streams, append([]string{name}, args...))
	return r.streamCode, r.streamErr
}

func TestHostToolchainProbesVersion(t *testing.T) {
	testlog.Start(t)

	runner := &hostFakeRunner{codes: map[string]int32{"ijs": tools.ExitNotFound}}
	tc := NewHostToolchain(runner, &bytes.Buffer{}, &bytes.Buffer{})

	if !tc.CheckInstalled(context.Background(), "jupyter") {
		t.Fatalf("expected jupyter to be installed")
	}
	if tc.CheckInstalled(context.Background(), "ijs") {
		t.Fatalf("expected ijs to be missing")
	}
	if tc.CheckInstalled(context.Background(), "  ") {
		t.Fatalf("expected blank command to be missing")
	}
	want := [][]string{{"jupyter", "--version"}, {"ijs", "--version"}}
	if !reflect.DeepEqual(runner.runs, want) {
		t.Fatalf("unexpected probes: %v", runner.runs)
	}
}

func TestHostToolchainInstallWrapsExitCode(t *testing.T) {
	testlog.Start(t)

	runner := &hostFakeRunner{streamCode: 7, streamErr: errors.New("exit status 7")}
	tc := NewHostToolchain(runner, &bytes.Buffer{}, &bytes.Buffer{})

	err := tc.Install(context.Background(), []string{"npm", "install", "-g", "ijavascript"})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 7 || exitErr.Step != "npm install -g ijavascript" {
		t.Fatalf("unexpected exit error: %+v", exitErr)
	}
	if !reflect.DeepEqual(runner.streams, [][]string{{"npm", "install", "-g", "ijavascript"}}) {
		t.Fatalf("unexpected streamed commands: %v", runner.streams)
	}

	if err := tc.LaunchProcess(context.Background(), nil); !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestHostToolchainWithExecRunner(t *testing.T) {
	testlog.Start(t)
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "labctl-fake-tool")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 1.2.3\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	b, err := New(DefaultConfig(), NewHostToolchain(tools.ExecRunner{}, &bytes.Buffer{}, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("new bootstrapper: %v", err)
	}
	if !b.IsInstalled(context.Background(), "labctl-fake-tool") {
		t.Fatalf("expected fake tool on PATH to be installed")
	}
	if b.IsInstalled(context.Background(), "labctl-missing-tool") {
		t.Fatalf("expected missing tool to report false")
	}
}
