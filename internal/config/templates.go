package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	KindHarness   = "harness"
	KindBootstrap = "bootstrap"
	KindMockAPI   = "mockapi"
)

// Template renders the defaults of one config kind as TOML.
func Template(kind string) (string, error) {
	var v any
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindHarness:
		v = DefaultHarnessConfig()
	case KindBootstrap:
		v = DefaultBootstrapConfig()
	case KindMockAPI:
		v = DefaultMockAPIConfig()
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	out, err := toml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render %s template: %w", kind, err)
	}
	return string(out), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as the given kind and reports the first problem.
func Validate(kind, path string) error {
	var err error
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindHarness:
		_, err = LoadHarnessConfig(path)
	case KindBootstrap:
		_, err = LoadBootstrapConfig(path)
	case KindMockAPI:
		_, err = LoadMockAPIConfig(path)
	default:
		err = fmt.Errorf("unknown config kind: %s", kind)
	}
	return err
}

// DefaultPath is where configgen writes and validates each kind.
func DefaultPath(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindHarness:
		return "cmd/verifyctl/config.toml", nil
	case KindBootstrap:
		return "cmd/notebookctl/config.toml", nil
	case KindMockAPI:
		return "cmd/mockapi/config.toml", nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}
