// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/tcprender/tcprender/lib/render"
)

// flagValues holds the destinations pflag writes into. Only flags the
// user actually set are copied onto the Config.
type flagValues struct {
	config          string
	host            string
	port            int
	touchstop       string
	engine          string
	command         string
	commandEnv      map[string]string
	skipCheck       bool
	maxFrameBytes   int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	renderTimeout   time.Duration
	shutdownTimeout time.Duration
	metricsListen   string
	adminSocket     string
	logLevel        string
	logFormat       string
}

func newFlagSet(values *flagValues) *pflag.FlagSet {
	defaults := Default()
	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.SortFlags = false

	flagSet.StringVar(&values.config, "config", "", "config file (YAML, or JSON with comments for .json/.jsonc); default $"+EnvConfig)
	flagSet.StringVar(&values.host, "host", defaults.Host, "address to bind")
	flagSet.IntVar(&values.port, "port", defaults.Port, "port to bind (0 picks a free port)")
	flagSet.StringVar(&values.touchstop, "touchstop", "", "sentinel file whose creation or modification triggers graceful shutdown")
	flagSet.StringVar(&values.engine, "engine", defaults.Engine, "render engine: "+strings.Join(render.Engines(), ", "))
	flagSet.StringVar(&values.command, "command", strings.Join(defaults.Command, " "), "external renderer command line for the command engine")
	flagSet.StringToStringVar(&values.commandEnv, "command-env", nil, "NAME=VALUE environment for the command engine (repeatable; replaces the inherited environment)")
	flagSet.BoolVar(&values.skipCheck, "skip-check", false, "skip the renderer's startup self-test")
	flagSet.IntVar(&values.maxFrameBytes, "max-frame-bytes", defaults.MaxFrameBytes, "largest request body accepted")
	flagSet.DurationVar(&values.readTimeout, "read-timeout", defaults.ReadTimeout, "close connections idle this long (0 disables)")
	flagSet.DurationVar(&values.writeTimeout, "write-timeout", defaults.WriteTimeout, "bound on writing one response (0 disables)")
	flagSet.DurationVar(&values.renderTimeout, "render-timeout", defaults.RenderTimeout, "bound on one render (0 disables)")
	flagSet.DurationVar(&values.shutdownTimeout, "shutdown-timeout", defaults.ShutdownTimeout, "how long in-flight requests may run after shutdown starts")
	flagSet.StringVar(&values.metricsListen, "metrics-listen", "", "host:port for the Prometheus /metrics endpoint")
	flagSet.StringVar(&values.adminSocket, "admin-socket", "", "Unix socket path for status and shutdown requests")
	flagSet.StringVar(&values.logLevel, "log-level", defaults.LogLevel, "debug, info, warn, or error")
	flagSet.StringVar(&values.logFormat, "log-format", defaults.LogFormat, "json or text")
	return flagSet
}

// Usage returns the flag help text for the serve command.
func Usage() string {
	var values flagValues
	return newFlagSet(&values).FlagUsages()
}

// Parse resolves a Config from command-line arguments. getenv is
// consulted for TCPRENDER_CONFIG when --config is absent; pass
// os.Getenv in production.
//
// Parse returns pflag.ErrHelp unwrapped when -h or --help is given.
// Every other failure is a *Error.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	flagArgs, options, err := splitRenderOptions(args)
	if err != nil {
		return nil, err
	}

	var values flagValues
	flagSet := newFlagSet(&values)
	if err := flagSet.Parse(flagArgs); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, &Error{Err: err}
	}
	if flagSet.NArg() > 0 {
		return nil, errorf("unexpected argument %q", flagSet.Arg(0))
	}

	cfg := Default()
	configPath := values.config
	if configPath == "" && getenv != nil {
		configPath = getenv(EnvConfig)
	}
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
	}

	apply := map[string]func(){
		"host":             func() { cfg.Host = values.host },
		"port":             func() { cfg.Port = values.port },
		"touchstop":        func() { cfg.Touchstop = values.touchstop },
		"engine":           func() { cfg.Engine = values.engine },
		"command":          func() { cfg.Command = strings.Fields(values.command) },
		"command-env":      func() { cfg.CommandEnv = values.commandEnv },
		"skip-check":       func() { cfg.SkipCheck = values.skipCheck },
		"max-frame-bytes":  func() { cfg.MaxFrameBytes = values.maxFrameBytes },
		"read-timeout":     func() { cfg.ReadTimeout = values.readTimeout },
		"write-timeout":    func() { cfg.WriteTimeout = values.writeTimeout },
		"render-timeout":   func() { cfg.RenderTimeout = values.renderTimeout },
		"shutdown-timeout": func() { cfg.ShutdownTimeout = values.shutdownTimeout },
		"metrics-listen":   func() { cfg.MetricsListen = values.metricsListen },
		"admin-socket":     func() { cfg.AdminSocket = values.adminSocket },
		"log-level":        func() { cfg.LogLevel = values.logLevel },
		"log-format":       func() { cfg.LogFormat = values.logFormat },
	}
	flagSet.Visit(func(flag *pflag.Flag) {
		if set, ok := apply[flag.Name]; ok {
			set()
		}
	})

	for _, option := range options {
		if option.engine != cfg.Engine {
			return nil, errorf("option --%s.%s is for engine %q but the configured engine is %q",
				option.engine, option.name, option.engine, cfg.Engine)
		}
		cfg.RenderOptions[option.name] = option.value
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type renderOption struct {
	engine string
	name   string
	value  any
}

// splitRenderOptions separates --<engine>.<name>[=value] arguments
// from ordinary flags. Arguments after "--" are left alone.
func splitRenderOptions(args []string) ([]string, []renderOption, error) {
	var (
		flagArgs []string
		options  []renderOption
	)
	for index, arg := range args {
		if arg == "--" {
			flagArgs = append(flagArgs, args[index:]...)
			break
		}
		body, isLong := strings.CutPrefix(arg, "--")
		key, rawValue, hasValue := strings.Cut(body, "=")
		if !isLong || !strings.Contains(key, ".") {
			flagArgs = append(flagArgs, arg)
			continue
		}

		engine, name, _ := strings.Cut(key, ".")
		if engine == "" || name == "" {
			return nil, nil, errorf("malformed render option %q: want --<engine>.<name>[=value]", arg)
		}
		var value any = true
		if hasValue {
			value = render.ParseValue(rawValue)
		}
		options = append(options, renderOption{engine: engine, name: name, value: value})
	}
	return flagArgs, options, nil
}
