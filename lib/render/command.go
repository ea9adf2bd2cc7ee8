// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os/exec"
	"slices"
	"strings"
)

// DefaultCommand runs the MJML CLI reading stdin and writing stdout.
var DefaultCommand = []string{"mjml", "-i", "-s"}

// probeDocuments are rendered by Check in order until one succeeds:
// the MJML 4 layout first, then the MJML 3 one.
var probeDocuments = []string{
	"<mjml><mj-body><mj-section><mj-column><mj-text>MJMLv4</mj-text></mj-column></mj-section></mj-body></mjml>",
	"<mjml><mj-body><mj-container><mj-text>MJMLv3</mj-text></mj-container></mj-body></mjml>",
}

// Command renders by running an external program once per document.
// The document is written to the program's stdin and its stdout is the
// rendered output. A non-zero exit status or any output on stderr is a
// *Failure carrying what the program reported.
//
// Each option is appended to the program's arguments as --name=value,
// in sorted name order.
type Command struct {
	argv   []string
	env    []string
	logger *slog.Logger
}

// NewCommand returns a Command for argv. An empty argv selects
// DefaultCommand.
//
// A nil env runs the program with this process's environment.
// Otherwise the program sees exactly the variables in env.
func NewCommand(argv []string, env map[string]string, logger *slog.Logger) (*Command, error) {
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	if strings.TrimSpace(argv[0]) == "" {
		return nil, fmt.Errorf("render command has an empty program name")
	}
	if logger == nil {
		logger = slog.Default()
	}
	command := &Command{argv: slices.Clone(argv), logger: logger}
	if env != nil {
		command.env = []string{}
		for _, name := range slices.Sorted(maps.Keys(env)) {
			if name == "" || strings.Contains(name, "=") {
				return nil, fmt.Errorf("render command environment variable name %q is invalid", name)
			}
			command.env = append(command.env, name+"="+env[name])
		}
	}
	return command, nil
}

// Render runs the program on document.
func (c *Command) Render(ctx context.Context, document string, options Options) (string, error) {
	args := slices.Clone(c.argv[1:])
	for _, name := range options.Names() {
		args = append(args, "--"+name+"="+FormatValue(options[name]))
	}

	command := exec.CommandContext(ctx, c.argv[0], args...)
	command.Stdin = strings.NewReader(document)
	command.Env = c.env
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			message := strings.TrimSpace(stderr.String())
			if message == "" {
				message = fmt.Sprintf("%s exited with status %d", c.argv[0], exitErr.ExitCode())
			}
			return "", &Failure{Message: message}
		}
		return "", Failf("problem running command %q: %v\n"+
			"check that the renderer is installed and executable", strings.Join(c.argv, " "), err)
	}
	if stderr.Len() > 0 {
		return "", Failf("renderer stderr is not empty: %s", strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Check renders a small MJML document, trying each known layout, and
// requires the result to be an HTML document.
func (c *Command) Check(ctx context.Context, options Options) error {
	var (
		output string
		err    error
	)
	for _, probe := range probeDocuments {
		output, err = c.Render(ctx, probe, options)
		if err == nil || ctx.Err() != nil {
			break
		}
		c.logger.Debug("render command probe failed", "command", c.argv, "error", err)
	}
	if err != nil {
		return fmt.Errorf("render command check failed: %w", err)
	}
	if !strings.Contains(output, "<html") {
		return fmt.Errorf("render command check failed: %q returned a wrong result (no <html> in %d bytes of output); check that the renderer is installed correctly",
			strings.Join(c.argv, " "), len(output))
	}
	c.logger.Debug("render command check passed",
		"command", c.argv,
		"output_bytes", len(output),
	)
	return nil
}
