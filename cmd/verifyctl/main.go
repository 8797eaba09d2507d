package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/labctl/internal/config"
	"github.com/danmuck/labctl/internal/harness"
	"github.com/danmuck/labctl/internal/logging"
	"github.com/danmuck/labctl/internal/observability"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns 0 whenever the checks ran, pass or fail. Only setup errors
// produce a non-zero status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("verifyctl", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.StringP("config", "c", "", "harness config path (defaults built in)")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before config")
	baseURL := flags.String("base-url", "", "override the target base URL")
	image := flags.String("image", "", "override the image uploaded by file checks")
	textfile := flags.String("metrics-textfile", "", "write check metrics to this path after the run")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	logging.ConfigureRuntime("verifyctl")
	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(stderr, "verifyctl: %v\n", err)
		return 1
	}

	fileCfg, err := config.LoadHarnessConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "verifyctl: %v\n", err)
		return 1
	}
	cfg, err := fileCfg.Harness()
	if err != nil {
		fmt.Fprintf(stderr, "verifyctl: %v\n", err)
		return 1
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	checks := cfg.Checks
	if *image != "" {
		checks = harness.WithImage(checks, *image)
	}

	h, err := harness.New(cfg, harness.WithOutput(stdout))
	if err != nil {
		fmt.Fprintf(stderr, "verifyctl: %v\n", err)
		return 1
	}
	outcomes, err := h.Run(ctx, checks)
	if err != nil {
		fmt.Fprintf(stderr, "verifyctl: %v\n", err)
		return 1
	}
	harness.WriteSummary(stdout, outcomes)

	path := *textfile
	if path == "" {
		path = fileCfg.MetricsTextfile
	}
	if path != "" {
		if err := observability.WriteTextfile(path); err != nil {
			fmt.Fprintf(stderr, "verifyctl: write metrics: %v\n", err)
			return 1
		}
	}
	return 0
}
