// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/tcprender/tcprender/lib/frame"
	"github.com/tcprender/tcprender/lib/render"
)

// EnvConfig names the environment variable consulted when --config is
// not given.
const EnvConfig = "TCPRENDER_CONFIG"

// Defaults match the reference MJML TCP server.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 28101
)

// Error reports an unusable configuration: an unknown or malformed
// flag, an unreadable config file, or a value that fails validation.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(format string, args ...any) *Error {
	return &Error{Err: fmt.Errorf(format, args...)}
}

// Config is the fully resolved server configuration.
type Config struct {
	// Host and Port form the listen address.
	Host string
	Port int

	// Touchstop is a sentinel file whose creation or modification
	// triggers graceful shutdown. Empty disables the watch.
	Touchstop string

	// Engine selects the renderer: render.EngineMarkdown or
	// render.EngineCommand.
	Engine string

	// Command is the argv of the external renderer for the command
	// engine.
	Command []string

	// CommandEnv, when non-nil, is the complete environment of the
	// command engine's program. Nil inherits this process's
	// environment.
	CommandEnv map[string]string

	// SkipCheck disables the renderer's startup self-test.
	SkipCheck bool

	// RenderOptions are passed to every Render call.
	RenderOptions render.Options

	// MaxFrameBytes limits the declared length of one request.
	MaxFrameBytes int

	// Zero disables the corresponding timeout.
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	RenderTimeout time.Duration

	// ShutdownTimeout bounds how long in-flight exchanges may run after
	// shutdown is triggered before their connections are closed.
	ShutdownTimeout time.Duration

	// MetricsListen is a host:port for the Prometheus endpoint. Empty
	// disables it.
	MetricsListen string

	// AdminSocket is a Unix socket path for the admin protocol. Empty
	// disables it.
	AdminSocket string

	LogLevel  string
	LogFormat string
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		Engine:          render.EngineMarkdown,
		Command:         slices.Clone(render.DefaultCommand),
		RenderOptions:   render.Options{},
		MaxFrameBytes:   frame.DefaultMaxBody,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Address returns the listen address as host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level returns LogLevel as a slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// fileConfig is the on-disk form. Pointer fields distinguish "absent"
// from the zero value so only keys present in the file override
// defaults.
type fileConfig struct {
	Host            *string           `yaml:"host" json:"host"`
	Port            *int              `yaml:"port" json:"port"`
	Touchstop       *string           `yaml:"touchstop" json:"touchstop"`
	Engine          *string           `yaml:"engine" json:"engine"`
	Command         []string          `yaml:"command" json:"command"`
	CommandEnv      map[string]string `yaml:"command_env" json:"command_env"`
	SkipCheck       *bool             `yaml:"skip_check" json:"skip_check"`
	RenderOptions   map[string]any    `yaml:"render_options" json:"render_options"`
	MaxFrameBytes   *int              `yaml:"max_frame_bytes" json:"max_frame_bytes"`
	ReadTimeout     *string           `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    *string           `yaml:"write_timeout" json:"write_timeout"`
	RenderTimeout   *string           `yaml:"render_timeout" json:"render_timeout"`
	ShutdownTimeout *string           `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MetricsListen   *string           `yaml:"metrics_listen" json:"metrics_listen"`
	AdminSocket     *string           `yaml:"admin_socket" json:"admin_socket"`
	LogLevel        *string           `yaml:"log_level" json:"log_level"`
	LogFormat       *string           `yaml:"log_format" json:"log_format"`
}

// LoadFile returns Default overlaid with the file at path, expanded
// and validated.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges one config file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Err: err}
	}

	var file fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		decoder.UseNumber()
		err = decoder.Decode(&file)
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		err = decoder.Decode(&file)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if err != nil {
		return errorf("parsing %s: %w", path, err)
	}
	if err := c.merge(&file); err != nil {
		return errorf("%s: %w", path, err)
	}
	return nil
}

func (c *Config) merge(file *fileConfig) error {
	setString(&c.Host, file.Host)
	setString(&c.Touchstop, file.Touchstop)
	setString(&c.Engine, file.Engine)
	setString(&c.MetricsListen, file.MetricsListen)
	setString(&c.AdminSocket, file.AdminSocket)
	setString(&c.LogLevel, file.LogLevel)
	setString(&c.LogFormat, file.LogFormat)
	if file.Port != nil {
		c.Port = *file.Port
	}
	if file.MaxFrameBytes != nil {
		c.MaxFrameBytes = *file.MaxFrameBytes
	}
	if file.SkipCheck != nil {
		c.SkipCheck = *file.SkipCheck
	}
	if file.Command != nil {
		c.Command = file.Command
	}
	if file.CommandEnv != nil {
		c.CommandEnv = file.CommandEnv
	}

	durations := []struct {
		key    string
		source *string
		target *time.Duration
	}{
		{"read_timeout", file.ReadTimeout, &c.ReadTimeout},
		{"write_timeout", file.WriteTimeout, &c.WriteTimeout},
		{"render_timeout", file.RenderTimeout, &c.RenderTimeout},
		{"shutdown_timeout", file.ShutdownTimeout, &c.ShutdownTimeout},
	}
	for _, duration := range durations {
		if duration.source == nil {
			continue
		}
		parsed, err := time.ParseDuration(*duration.source)
		if err != nil {
			return fmt.Errorf("%s: %w", duration.key, err)
		}
		*duration.target = parsed
	}

	for name, raw := range file.RenderOptions {
		value, err := optionValue(raw)
		if err != nil {
			return fmt.Errorf("render_options.%s: %w", name, err)
		}
		c.RenderOptions[name] = value
	}
	return nil
}

func setString(target *string, source *string) {
	if source != nil {
		*target = *source
	}
}

// optionValue normalizes a decoded file value to one of the types
// render.Options holds.
func optionValue(raw any) (any, error) {
	switch v := raw.(type) {
	case string, bool, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		return render.ParseValue(strconv.FormatUint(v, 10)), nil
	case json.Number:
		return render.ParseValue(v.String()), nil
	default:
		return nil, fmt.Errorf("unsupported value %v (%T): want string, boolean, or number", raw, raw)
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Touchstop = expandVars(c.Touchstop, vars)
	c.AdminSocket = expandVars(c.AdminSocket, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and returns a *Error listing every
// problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 0-65535", c.Port))
	}
	if !slices.Contains(render.Engines(), c.Engine) {
		errs = append(errs, fmt.Errorf("engine %q must be one of: %v", c.Engine, render.Engines()))
	}
	if c.Engine == render.EngineCommand && len(c.Command) == 0 {
		errs = append(errs, errors.New("command is required for the command engine"))
	}
	for _, name := range slices.Sorted(maps.Keys(c.CommandEnv)) {
		if name == "" || strings.Contains(name, "=") {
			errs = append(errs, fmt.Errorf("command_env: invalid variable name %q", name))
		}
	}
	if c.MaxFrameBytes <= 0 || c.MaxFrameBytes > frame.MaxLength {
		errs = append(errs, fmt.Errorf("max_frame_bytes %d out of range 1-%d", c.MaxFrameBytes, frame.MaxLength))
	}

	timeouts := map[string]time.Duration{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"render_timeout":   c.RenderTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	}
	for _, name := range slices.Sorted(maps.Keys(timeouts)) {
		if timeouts[name] < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	if c.Touchstop != "" {
		parent := filepath.Dir(c.Touchstop)
		info, err := os.Stat(parent)
		if err != nil {
			errs = append(errs, fmt.Errorf("touchstop directory: %w", err))
		} else if !info.IsDir() {
			errs = append(errs, fmt.Errorf("touchstop directory %s is not a directory", parent))
		}
	}
	if c.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(c.MetricsListen); err != nil {
			errs = append(errs, fmt.Errorf("metrics_listen: %w", err))
		}
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("log_format %q must be json or text", c.LogFormat))
	}

	if len(errs) > 0 {
		return &Error{Err: errors.Join(errs...)}
	}
	return nil
}
