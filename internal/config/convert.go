package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/labctl/internal/bootstrap"
	"github.com/danmuck/labctl/internal/harness"
	"github.com/danmuck/labctl/internal/mockapi"
	"github.com/danmuck/labctl/internal/tools"
)

func DefaultHarnessConfig() HarnessConfig {
	def := harness.DefaultConfig()
	checks := make([]CheckConfig, 0, len(def.Checks))
	for _, c := range def.Checks {
		checks = append(checks, checkToFile(c))
	}
	return HarnessConfig{
		BaseURL: def.BaseURL,
		Checks:  checks,
	}
}

func DefaultBootstrapConfig() BootstrapConfig {
	def := bootstrap.DefaultConfig()
	toolCfgs := make([]ToolConfig, 0, len(def.Tools))
	for _, t := range def.Tools {
		toolCfgs = append(toolCfgs, ToolConfig{
			Command: t.Command,
			Display: t.Display,
			Install: t.Install,
		})
	}
	return BootstrapConfig{
		Port:        def.Port,
		NoBrowser:   def.NoBrowser,
		DisableAuth: def.DisableAuth,
		Server:      def.Server,
		ExtraArgs:   []string{},
		Runner:      RunnerLocal,
		SSH:         SSHConfig{Port: "22", Timeout: "10s"},
		Tools:       toolCfgs,
	}
}

func DefaultMockAPIConfig() MockAPIConfig {
	def := mockapi.DefaultConfig()
	return MockAPIConfig{
		Addr:           def.Addr,
		MaxUploadBytes: def.MaxUploadBytes,
		CorsOrigins:    def.CorsOrigins,
	}
}

// Harness converts the file shape into the harness runtime config.
func (c HarnessConfig) Harness() (harness.Config, error) {
	timeout, err := parseDuration(c.Timeout)
	if err != nil {
		return harness.Config{}, fmt.Errorf("parse timeout: %w", err)
	}
	checks := make([]harness.Check, 0, len(c.Checks))
	for _, cc := range c.Checks {
		check := harness.Check{
			Name:   strings.TrimSpace(cc.Name),
			Label:  cc.Label,
			Method: cc.Method,
			Path:   cc.Path,
			Expect: cc.Expect,
		}
		for _, f := range cc.Fields {
			check.Fields = append(check.Fields, harness.Field{Name: f.Name, Value: f.Value})
		}
		for _, f := range cc.Files {
			check.Files = append(check.Files, harness.FilePart{Field: f.Field, Path: f.Path, FileName: f.FileName})
		}
		checks = append(checks, check)
	}
	return harness.Config{
		BaseURL: strings.TrimSpace(c.BaseURL),
		Timeout: timeout,
		Checks:  checks,
	}, nil
}

func checkToFile(c harness.Check) CheckConfig {
	cc := CheckConfig{
		Name:   c.Name,
		Label:  c.Label,
		Method: c.Method,
		Path:   c.Path,
		Fields: []FieldConfig{},
		Expect: c.Expect,
	}
	for _, f := range c.Fields {
		cc.Fields = append(cc.Fields, FieldConfig{Name: f.Name, Value: f.Value})
	}
	for _, f := range c.Files {
		cc.Files = append(cc.Files, FileConfig{Field: f.Field, Path: f.Path, FileName: f.FileName})
	}
	return cc
}

func (c BootstrapConfig) Bootstrap() bootstrap.Config {
	toolList := make([]bootstrap.Tool, 0, len(c.Tools))
	for _, t := range c.Tools {
		toolList = append(toolList, bootstrap.Tool{
			Command: strings.TrimSpace(t.Command),
			Display: t.Display,
			Install: t.Install,
		})
	}
	return bootstrap.Config{
		Port:        c.Port,
		NoBrowser:   c.NoBrowser,
		DisableAuth: c.DisableAuth,
		Tools:       toolList,
		Server:      c.Server,
		ExtraArgs:   c.ExtraArgs,
	}
}

// CommandRunner selects where install and launch commands execute.
func (c BootstrapConfig) CommandRunner() (tools.Runner, error) {
	switch strings.ToLower(strings.TrimSpace(c.Runner)) {
	case "", RunnerLocal:
		return tools.ExecRunner{}, nil
	case RunnerSSH:
		timeout, err := parseDuration(c.SSH.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse ssh.timeout: %w", err)
		}
		return tools.SSHRunner{
			Host:                        strings.TrimSpace(c.SSH.Host),
			Port:                        strings.TrimSpace(c.SSH.Port),
			User:                        strings.TrimSpace(c.SSH.User),
			KeyPath:                     strings.TrimSpace(c.SSH.KeyPath),
			KnownHostsPath:              strings.TrimSpace(c.SSH.KnownHostsPath),
			InsecureSkipHostKeyChecking: c.SSH.InsecureSkipHostKeyChecking,
			Timeout:                     timeout,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown runner %q", ErrInvalidConfig, c.Runner)
	}
}

func (c MockAPIConfig) MockAPI() mockapi.Config {
	return mockapi.Config{
		Addr:           strings.TrimSpace(c.Addr),
		MaxUploadBytes: c.MaxUploadBytes,
		CorsOrigins:    c.CorsOrigins,
	}
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
