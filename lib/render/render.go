// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"context"
	"fmt"
	"log/slog"
)

// Renderer transforms one document.
type Renderer interface {
	Render(ctx context.Context, document string, options Options) (string, error)
}

// Checker is implemented by renderers that can validate their options
// and environment before the server starts accepting connections.
type Checker interface {
	Check(ctx context.Context, options Options) error
}

// Failure is a structured rendering failure. Message may span several
// lines; it is delivered to the client unchanged.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Failf builds a *Failure from a format string.
func Failf(format string, args ...any) *Failure {
	return &Failure{Message: fmt.Sprintf(format, args...)}
}

// Engine names accepted by New.
const (
	EngineMarkdown = "markdown"
	EngineCommand  = "command"
)

// Engines lists the engine names New accepts.
func Engines() []string {
	return []string{EngineMarkdown, EngineCommand}
}

// EngineConfig selects and configures an engine.
type EngineConfig struct {
	// Engine is one of the Engine* constants.
	Engine string

	// Command is the argv of the external program for EngineCommand.
	Command []string

	// Env, when non-nil, is the complete environment of the external
	// program.
	Env map[string]string

	Logger *slog.Logger
}

// New constructs the engine named by config.Engine.
func New(config EngineConfig) (Renderer, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch config.Engine {
	case EngineMarkdown:
		return NewMarkdown(), nil
	case EngineCommand:
		return NewCommand(config.Command, config.Env, logger)
	default:
		return nil, fmt.Errorf("unknown render engine %q (available: %v)", config.Engine, Engines())
	}
}
