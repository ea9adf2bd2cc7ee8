// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tcprender/tcprender/lib/admin"
	"github.com/tcprender/tcprender/lib/config"
	"github.com/tcprender/tcprender/lib/lifecycle"
	"github.com/tcprender/tcprender/lib/metrics"
	"github.com/tcprender/tcprender/lib/process"
	"github.com/tcprender/tcprender/lib/render"
	"github.com/tcprender/tcprender/lib/service"
	"github.com/tcprender/tcprender/lib/version"
	"github.com/tcprender/tcprender/renderserver"
)

// checkTimeout bounds the renderer's startup self-test.
const checkTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [flags] [--<engine>.<option>[=value] ...]",
		Short: "Run the render server",
		Long: `Run the render server until SIGINT, SIGTERM, a touch of the --touchstop
file, or a shutdown request on the admin socket.

Arguments of the form --<engine>.<option>[=value] become render options
passed to every render, for example --markdown.unsafe or
--command.minify=true. A bare option means true.

Configuration is read from --config or $TCPRENDER_CONFIG when set;
explicit flags override the file.`,
		// config.Parse owns flag parsing so render options can be
		// separated from flags.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse(args, os.Getenv)
			if errors.Is(err, pflag.ErrHelp) {
				cmd.Printf("%s\n\nUsage:\n  %s\n\nFlags:\n%s", cmd.Long, cmd.UseLine(), config.Usage())
				return nil
			}
			if err != nil {
				return process.WithCode(err, process.ExitConfig)
			}

			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return process.WithCode(err, process.ExitConfig)
			}
			slog.SetDefault(logger)

			return runServer(cmd.Context(), cfg, logger, nil)
		},
	}
}

// runServer runs the render server and its auxiliary listeners until
// shutdown is triggered or ctx is cancelled. ready, when non-nil, is
// called with the render server's address once everything is
// listening.
func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready func(net.Addr)) error {
	logger.Info("starting tcprender",
		"version", version.Info(),
		"engine", cfg.Engine,
		"render_options", len(cfg.RenderOptions),
	)

	renderer, err := render.New(render.EngineConfig{
		Engine:  cfg.Engine,
		Command: cfg.Command,
		Env:     cfg.CommandEnv,
		Logger:  logger,
	})
	if err != nil {
		return process.WithCode(err, process.ExitConfig)
	}
	if checker, ok := renderer.(render.Checker); ok && !cfg.SkipCheck {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checker.Check(checkCtx, cfg.RenderOptions)
		cancel()
		if err != nil {
			return process.WithCode(fmt.Errorf("renderer check failed: %w", err), process.ExitConfig)
		}
		logger.Debug("renderer check passed", "engine", cfg.Engine)
	}

	collector := metrics.NewCollector(cfg.Engine, nil)
	server, err := renderserver.New(renderserver.Config{
		Address:       cfg.Address(),
		Renderer:      renderer,
		Options:       cfg.RenderOptions,
		MaxBody:       cfg.MaxFrameBytes,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		RenderTimeout: cfg.RenderTimeout,
		Observer:      collector,
		Logger:        logger,
	})
	if err != nil {
		return process.WithCode(err, process.ExitConfig)
	}
	if err := server.Listen(); err != nil {
		return process.WithCode(err, process.ExitBind)
	}

	// Serve is stopped through Shutdown so the deadline applies.
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(context.Background()) }()

	trigger := lifecycle.NewTrigger(logger)
	stopSignals := trigger.NotifySignals()
	defer stopSignals()
	stopOnCancel := context.AfterFunc(ctx, func() { trigger.Fire("context cancelled") })
	defer stopOnCancel()

	auxCtx, cancelAux := context.WithCancel(context.Background())
	var aux sync.WaitGroup
	defer func() {
		cancelAux()
		aux.Wait()
	}()

	startErr := startAuxiliary(auxCtx, &aux, cfg, collector, server, trigger, logger)
	if startErr != nil {
		trigger.Fire("startup failed")
	} else if ready != nil {
		ready(server.Addr())
	}

	var runErr error
	select {
	case <-trigger.Done():
	case err := <-serveErr:
		serveErr = nil
		if err != nil {
			runErr = fmt.Errorf("render server stopped: %w", err)
		}
	}

	shutdownCtx := context.Background()
	if cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		// Renders still running are abandoned with their connections.
		logger.Warn("shutdown deadline passed, closed remaining connections",
			"timeout", cfg.ShutdownTimeout,
			"active_connections", server.Stats().ActiveConnections,
		)
	} else if serveErr != nil {
		if err := <-serveErr; err != nil && runErr == nil {
			runErr = fmt.Errorf("render server stopped: %w", err)
		}
	}

	stats := server.Stats()
	logger.Info("tcprender stopped",
		"reason", trigger.Reason(),
		"frames_served", stats.FramesServed,
		"connections", stats.TotalConnections,
	)
	if startErr != nil {
		return startErr
	}
	return runErr
}

// startAuxiliary starts the metrics endpoint, admin socket, and
// sentinel watch that cfg enables. Goroutines are tracked by aux and
// stop when ctx is cancelled.
func startAuxiliary(
	ctx context.Context,
	aux *sync.WaitGroup,
	cfg *config.Config,
	collector *metrics.Collector,
	server *renderserver.Server,
	trigger *lifecycle.Trigger,
	logger *slog.Logger,
) error {
	if cfg.MetricsListen != "" {
		listener, err := net.Listen("tcp", cfg.MetricsListen)
		if err != nil {
			return process.WithCode(&renderserver.BindError{Address: cfg.MetricsListen, Err: err}, process.ExitBind)
		}
		aux.Go(func() {
			if err := collector.Serve(ctx, listener, logger); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		})
	}

	if cfg.AdminSocket != "" {
		adminServer := service.NewSocketServer(cfg.AdminSocket, logger)
		admin.Register(adminServer, admin.Target{
			Stats:    server.Stats,
			Engine:   cfg.Engine,
			Shutdown: trigger.Fire,
			ShuttingDown: func() bool {
				select {
				case <-trigger.Done():
					return true
				default:
					return false
				}
			},
		})
		if err := adminServer.Listen(); err != nil {
			return process.WithCode(err, process.ExitBind)
		}
		aux.Go(func() {
			if err := adminServer.Serve(ctx); err != nil {
				logger.Error("admin socket failed", "error", err)
			}
		})
	}

	if cfg.Touchstop != "" {
		if err := lifecycle.WatchSentinel(ctx, aux, cfg.Touchstop, trigger, logger); err != nil {
			return process.WithCode(fmt.Errorf("touchstop: %w", err), process.ExitConfig)
		}
	}
	return nil
}
