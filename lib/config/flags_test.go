// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/tcprender/tcprender/lib/render"
)

func noEnv(string) string { return "" }

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, noEnv)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.Address() != "127.0.0.1:28101" {
		t.Errorf("expected default address, got %s", cfg.Address())
	}
	if len(cfg.RenderOptions) != 0 {
		t.Errorf("expected no render options, got %v", cfg.RenderOptions)
	}
}

func TestParseFlags(t *testing.T) {
	stopDir := t.TempDir()
	cfg, err := Parse([]string{
		"--host", "0.0.0.0",
		"--port=0",
		"--touchstop", filepath.Join(stopDir, "stop"),
		"--render-timeout", "5s",
		"--log-level", "debug",
	}, noEnv)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 0 {
		t.Errorf("unexpected address %s", cfg.Address())
	}
	if cfg.Touchstop != filepath.Join(stopDir, "stop") {
		t.Errorf("unexpected touchstop %q", cfg.Touchstop)
	}
	if cfg.RenderTimeout != 5*time.Second {
		t.Errorf("expected render timeout 5s, got %v", cfg.RenderTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
}

func TestParseRenderOptions(t *testing.T) {
	cfg, err := Parse([]string{
		"--markdown.unsafe",
		"--markdown.gfm=false",
		"--port", "28102",
		"--markdown.highlight=github",
		"--markdown.tab-width=4",
	}, noEnv)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	want := render.Options{
		"unsafe":    true,
		"gfm":       false,
		"highlight": "github",
		"tab-width": int64(4),
	}
	if len(cfg.RenderOptions) != len(want) {
		t.Fatalf("render options = %v, want %v", cfg.RenderOptions, want)
	}
	for name, value := range want {
		if cfg.RenderOptions[name] != value {
			t.Errorf("option %s = %v (%T), want %v (%T)",
				name, cfg.RenderOptions[name], cfg.RenderOptions[name], value, value)
		}
	}
	if cfg.Port != 28102 {
		t.Errorf("flag after render option not applied: port=%d", cfg.Port)
	}
}

func TestParseRenderOptionForOtherEngine(t *testing.T) {
	_, err := Parse([]string{"--command.minify=true"}, noEnv)
	var configErr *Error
	if !errors.As(err, &configErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !strings.Contains(err.Error(), `configured engine is "markdown"`) {
		t.Errorf("unexpected error: %v", err)
	}

	cfg, err := Parse([]string{"--engine=command", "--command.minify=true", "--skip-check"}, noEnv)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.RenderOptions["minify"] != true || !cfg.SkipCheck {
		t.Errorf("unexpected config: options=%v skip_check=%v", cfg.RenderOptions, cfg.SkipCheck)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"--listen=x"}, "unknown flag"},
		{"bad port", []string{"--port", "http"}, "port"},
		{"positional", []string{"extra"}, `unexpected argument "extra"`},
		{"malformed option", []string{"--.minify"}, "malformed render option"},
		{"invalid value", []string{"--engine", "latex"}, "engine"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.args, noEnv)
			var configErr *Error
			if !errors.As(err, &configErr) {
				t.Fatalf("expected *Error, got %v (%T)", err, err)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err, test.want)
			}
		})
	}
}

func TestParseHelp(t *testing.T) {
	if _, err := Parse([]string{"--help"}, noEnv); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("expected pflag.ErrHelp, got %v", err)
	}
	if usage := Usage(); !strings.Contains(usage, "--touchstop") {
		t.Errorf("usage does not list --touchstop:\n%s", usage)
	}
}

func TestParsePrecedence(t *testing.T) {
	path := writeConfig(t, "tcprender.yaml", `
port: 9000
log_level: warn
render_options:
  gfm: false
  unsafe: true
`)

	// The file comes from the environment; flags override it.
	getenv := func(name string) string {
		if name == EnvConfig {
			return path
		}
		return ""
	}
	cfg, err := Parse([]string{"--log-level=error", "--markdown.gfm=true"}, getenv)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected port from file, got %d", cfg.Port)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("expected flag to override file log level, got %s", cfg.LogLevel)
	}
	if cfg.RenderOptions["gfm"] != true || cfg.RenderOptions["unsafe"] != true {
		t.Errorf("unexpected merged render options %v", cfg.RenderOptions)
	}

	// --config wins over the environment.
	other := writeConfig(t, "other.yaml", "port: 9100\n")
	cfg, err = Parse([]string{"--config", other}, getenv)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("expected port from --config file, got %d", cfg.Port)
	}
}

func TestSplitRenderOptionsStopsAtDoubleDash(t *testing.T) {
	flagArgs, options, err := splitRenderOptions([]string{"--markdown.xhtml", "--", "--markdown.unsafe"})
	if err != nil {
		t.Fatalf("splitRenderOptions() failed: %v", err)
	}
	if len(options) != 1 || options[0].name != "xhtml" {
		t.Errorf("options = %+v, want only xhtml", options)
	}
	if strings.Join(flagArgs, " ") != "-- --markdown.unsafe" {
		t.Errorf("flag args = %v", flagArgs)
	}
}

func TestParseCommandEnv(t *testing.T) {
	cfg, err := Parse([]string{"--engine=command", "--skip-check"}, noEnv)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.CommandEnv != nil {
		t.Errorf("expected inherited environment by default, got %v", cfg.CommandEnv)
	}

	path := writeConfig(t, "tcprender.yaml", `
engine: command
command_env:
  PATH: /usr/bin
  NODE_ENV: production
`)
	cfg, err = Parse([]string{"--config", path}, noEnv)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(cfg.CommandEnv) != 2 || cfg.CommandEnv["NODE_ENV"] != "production" {
		t.Errorf("unexpected command_env from file %v", cfg.CommandEnv)
	}

	// The flag replaces the file's map rather than merging into it.
	cfg, err = Parse([]string{"--config", path, "--command-env", "PATH=/opt/node/bin", "--command-env", "LANG=C"}, noEnv)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(cfg.CommandEnv) != 2 || cfg.CommandEnv["PATH"] != "/opt/node/bin" || cfg.CommandEnv["LANG"] != "C" {
		t.Errorf("unexpected command_env from flags %v", cfg.CommandEnv)
	}

	invalid := writeConfig(t, "invalid.yaml", "command_env:\n  \"A=B\": x\n")
	if _, err := Parse([]string{"--config", invalid}, noEnv); err == nil {
		t.Error("expected an invalid variable name to be rejected")
	}
}
