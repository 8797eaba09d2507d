package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/labctl/internal/bootstrap"
	"github.com/danmuck/labctl/internal/config"
	"github.com/danmuck/labctl/internal/logging"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run exits with the failing subprocess's status so callers see the same
// code pip, npm or the server returned.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("notebookctl", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.StringP("config", "c", "", "bootstrap config path (defaults built in)")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before config")
	port := flags.IntP("port", "p", 0, "override the notebook port")
	skipInstall := flags.Bool("skip-install", false, "launch without probing or installing tools")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	logging.ConfigureRuntime("notebookctl")
	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(stderr, "notebookctl: %v\n", err)
		return 1
	}

	fileCfg, err := config.LoadBootstrapConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "notebookctl: %v\n", err)
		return 1
	}
	cfg := fileCfg.Bootstrap()
	if *port != 0 {
		cfg.Port = *port
	}
	if *skipInstall {
		cfg.Tools = nil
	}

	runner, err := fileCfg.CommandRunner()
	if err != nil {
		fmt.Fprintf(stderr, "notebookctl: %v\n", err)
		return 1
	}
	b, err := bootstrap.New(cfg, bootstrap.NewHostToolchain(runner, stdout, stderr), bootstrap.WithOutput(stdout))
	if err != nil {
		fmt.Fprintf(stderr, "notebookctl: %v\n", err)
		return 1
	}

	if err := b.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "notebookctl: %v\n", err)
		var exitErr *bootstrap.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		return 1
	}
	return 0
}
