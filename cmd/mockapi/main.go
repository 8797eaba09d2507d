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
	"github.com/danmuck/labctl/internal/logging"
	"github.com/danmuck/labctl/internal/mockapi"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := pflag.NewFlagSet("mockapi", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.StringP("config", "c", "", "mockapi config path (defaults built in)")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before config")
	addr := flags.StringP("addr", "a", "", "override the listen address")
	debug := flags.Bool("debug", false, "run gin in debug mode")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	logging.ConfigureRuntime("mockapi")
	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(stderr, "mockapi: %v\n", err)
		return 1
	}

	fileCfg, err := config.LoadMockAPIConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "mockapi: %v\n", err)
		return 1
	}
	cfg := fileCfg.MockAPI()
	if *addr != "" {
		cfg.Addr = *addr
	}

	srv, err := mockapi.New(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "mockapi: %v\n", err)
		return 1
	}
	if err := srv.Serve(ctx); err != nil {
		fmt.Fprintf(stderr, "mockapi: %v\n", err)
		return 1
	}
	return 0
}
