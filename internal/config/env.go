package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvBaseURL      = "LABCTL_BASE_URL"
	EnvNotebookPort = "LABCTL_NOTEBOOK_PORT"
	EnvMockAPIAddr  = "LABCTL_MOCKAPI_ADDR"
)

// LoadDotEnv loads each env file that exists. Variables already set in the
// process environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("env load failed (%s): %w", path, err)
		}
	}
	return nil
}

func applyHarnessEnv(cfg *HarnessConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
}

func applyBootstrapEnv(cfg *BootstrapConfig) error {
	raw := strings.TrimSpace(os.Getenv(EnvNotebookPort))
	if raw == "" {
		return nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a port", ErrInvalidConfig, EnvNotebookPort, raw)
	}
	cfg.Port = port
	return nil
}

func applyMockAPIEnv(cfg *MockAPIConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvMockAPIAddr)); v != "" {
		cfg.Addr = v
	}
}
