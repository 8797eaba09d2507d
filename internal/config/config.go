package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

var ErrInvalidConfig = errors.New("config: invalid")

type FieldConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type FileConfig struct {
	Field    string `toml:"field"`
	Path     string `toml:"path"`
	FileName string `toml:"filename,omitempty"`
}

type CheckConfig struct {
	Name   string        `toml:"name"`
	Label  string        `toml:"label,omitempty"`
	Method string        `toml:"method"`
	Path   string        `toml:"path"`
	Fields []FieldConfig `toml:"fields"`
	Files  []FileConfig  `toml:"files,omitempty"`
	Expect []string      `toml:"expect,omitempty"`
}

// HarnessConfig is the verifyctl file shape.
type HarnessConfig struct {
	BaseURL         string        `toml:"base_url"`
	Timeout         string        `toml:"timeout"`
	MetricsTextfile string        `toml:"metrics_textfile"`
	Checks          []CheckConfig `toml:"checks"`
}

type SSHConfig struct {
	Host                        string `toml:"host"`
	Port                        string `toml:"port"`
	User                        string `toml:"user"`
	KeyPath                     string `toml:"key_path"`
	KnownHostsPath              string `toml:"known_hosts_path"`
	InsecureSkipHostKeyChecking bool   `toml:"insecure_skip_host_key_checking"`
	Timeout                     string `toml:"timeout"`
}

type ToolConfig struct {
	Command string     `toml:"command"`
	Display string     `toml:"display"`
	Install [][]string `toml:"install"`
}

// BootstrapConfig is the notebookctl file shape.
type BootstrapConfig struct {
	Port        int          `toml:"port"`
	NoBrowser   bool         `toml:"no_browser"`
	DisableAuth bool         `toml:"disable_auth"`
	Server      []string     `toml:"server"`
	ExtraArgs   []string     `toml:"extra_args"`
	Runner      string       `toml:"runner"`
	SSH         SSHConfig    `toml:"ssh"`
	Tools       []ToolConfig `toml:"tools"`
}

// MockAPIConfig is the mockapi file shape.
type MockAPIConfig struct {
	Addr           string   `toml:"addr"`
	MaxUploadBytes int64    `toml:"max_upload_bytes"`
	CorsOrigins    []string `toml:"cors_origins"`
}

const (
	RunnerLocal = "local"
	RunnerSSH   = "ssh"
)

// LoadHarnessConfig reads path over the defaults. An empty path yields the
// defaults; env overrides apply either way.
func LoadHarnessConfig(path string) (HarnessConfig, error) {
	cfg := DefaultHarnessConfig()
	err := loadToml(path, &cfg, map[string]func(){
		"checks": func() { cfg.Checks = nil },
	})
	if err != nil {
		return HarnessConfig{}, err
	}
	applyHarnessEnv(&cfg)
	if err := ValidateHarnessConfig(cfg); err != nil {
		return HarnessConfig{}, err
	}
	return cfg, nil
}

func LoadBootstrapConfig(path string) (BootstrapConfig, error) {
	cfg := DefaultBootstrapConfig()
	err := loadToml(path, &cfg, map[string]func(){
		"tools":      func() { cfg.Tools = nil },
		"server":     func() { cfg.Server = nil },
		"extra_args": func() { cfg.ExtraArgs = nil },
	})
	if err != nil {
		return BootstrapConfig{}, err
	}
	if err := applyBootstrapEnv(&cfg); err != nil {
		return BootstrapConfig{}, err
	}
	if err := ValidateBootstrapConfig(cfg); err != nil {
		return BootstrapConfig{}, err
	}
	return cfg, nil
}

func LoadMockAPIConfig(path string) (MockAPIConfig, error) {
	cfg := DefaultMockAPIConfig()
	err := loadToml(path, &cfg, map[string]func(){
		"cors_origins": func() { cfg.CorsOrigins = nil },
	})
	if err != nil {
		return MockAPIConfig{}, err
	}
	applyMockAPIEnv(&cfg)
	if err := ValidateMockAPIConfig(cfg); err != nil {
		return MockAPIConfig{}, err
	}
	return cfg, nil
}

// loadToml decodes path over out. The decoder fills existing slices in
// place, so each list key the file defines is cleared first through resets.
func loadToml(path string, out any, resets map[string]func()) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var keys map[string]any
	if _, err := toml.Decode(string(data), &keys); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	for key, reset := range resets {
		if _, ok := keys[key]; ok {
			reset()
		}
	}
	meta, err := toml.Decode(string(data), out)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		unknown := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			unknown = append(unknown, key.String())
		}
		return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(unknown, ", "))
	}
	return nil
}

func ValidateHarnessConfig(cfg HarnessConfig) error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("%w: harness base_url is required", ErrInvalidConfig)
	}
	if len(cfg.Checks) == 0 {
		return fmt.Errorf("%w: harness needs at least one check", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(cfg.Checks))
	for i, check := range cfg.Checks {
		name := strings.TrimSpace(check.Name)
		if name == "" {
			return fmt.Errorf("%w: checks[%d] missing name", ErrInvalidConfig, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate check name %q", ErrInvalidConfig, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(check.Path) == "" {
			return fmt.Errorf("%w: check %q missing path", ErrInvalidConfig, name)
		}
	}
	if _, err := parseDuration(cfg.Timeout); err != nil {
		return fmt.Errorf("%w: parse timeout: %v", ErrInvalidConfig, err)
	}
	return nil
}

func ValidateBootstrapConfig(cfg BootstrapConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: bootstrap port %d out of range", ErrInvalidConfig, cfg.Port)
	}
	if len(cfg.Server) == 0 {
		return fmt.Errorf("%w: bootstrap server command is required", ErrInvalidConfig)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Runner)) {
	case "", RunnerLocal:
	case RunnerSSH:
		if strings.TrimSpace(cfg.SSH.Host) == "" || strings.TrimSpace(cfg.SSH.User) == "" {
			return fmt.Errorf("%w: ssh runner requires ssh.host and ssh.user", ErrInvalidConfig)
		}
		if _, err := parseDuration(cfg.SSH.Timeout); err != nil {
			return fmt.Errorf("%w: parse ssh.timeout: %v", ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: unknown runner %q", ErrInvalidConfig, cfg.Runner)
	}
	for i, tool := range cfg.Tools {
		if strings.TrimSpace(tool.Command) == "" {
			return fmt.Errorf("%w: tools[%d] missing command", ErrInvalidConfig, i)
		}
	}
	return nil
}

func ValidateMockAPIConfig(cfg MockAPIConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("%w: mockapi addr is required", ErrInvalidConfig)
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: mockapi max_upload_bytes must be positive", ErrInvalidConfig)
	}
	return nil
}
