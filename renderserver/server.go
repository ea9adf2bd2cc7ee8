// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package renderserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tcprender/tcprender/lib/frame"
	"github.com/tcprender/tcprender/lib/render"
)

// Observer receives server events, typically a *metrics.Collector.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	BytesReceived(n int)
	BytesSent(n int)
	FramingViolation()
	FrameRendered(ok bool, renderDuration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened() {}
func (nopObserver) ConnectionClosed() {}
func (nopObserver) BytesReceived(int) {}
func (nopObserver) BytesSent(int) {}
func (nopObserver) FramingViolation() {}
func (nopObserver) FrameRendered(bool, time.Duration) {}

// Config configures a Server.
type Config struct {
	// Address is the host:port to listen on. Port 0 picks a free port.
	Address string

	// Renderer transforms each document. Required.
	Renderer render.Renderer

	// Options are passed unchanged to every Render call.
	Options render.Options

	// MaxBody bounds the declared length of a request. Zero selects
	// frame.DefaultMaxBody.
	MaxBody int

	// ReadTimeout closes a connection when no bytes arrive for this
	// long. Zero disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing one response. Zero disables it.
	WriteTimeout time.Duration

	// RenderTimeout bounds one Render call; an expired render is
	// reported to the client as a failure. Zero disables it.
	RenderTimeout time.Duration

	// Observer receives events. Nil discards them.
	Observer Observer

	Logger *slog.Logger
}

// Stats is a point-in-time snapshot of server activity.
type Stats struct {
	Address           string
	ActiveConnections int64
	TotalConnections  int64
	FramesServed      int64
	RenderFailures    int64
	FramingViolations int64
	Started           time.Time
}

// Server accepts connections and runs one session per connection.
type Server struct {
	config   Config
	logger   *slog.Logger
	observer Observer

	// mu guards listener, started, and sessions.
	mu       sync.Mutex
	listener net.Listener
	started  time.Time
	sessions map[*session]struct{}

	// activeSessions tracks session goroutines so Serve can wait for
	// in-flight exchanges before returning.
	activeSessions sync.WaitGroup

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	draining atomic.Bool

	totalConnections  atomic.Int64
	activeConnections atomic.Int64
	framesServed      atomic.Int64
	renderFailures    atomic.Int64
	framingViolations atomic.Int64
}

// New validates config and returns a Server. Call Listen, then Serve.
func New(config Config) (*Server, error) {
	if config.Renderer == nil {
		return nil, errors.New("renderserver: Renderer is required")
	}
	if config.Address == "" {
		return nil, errors.New("renderserver: Address is required")
	}
	if config.MaxBody < 0 || config.MaxBody > frame.MaxLength {
		return nil, fmt.Errorf("renderserver: MaxBody %d out of range", config.MaxBody)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := config.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Server{
		config:   config,
		logger:   logger,
		observer: observer,
		sessions: make(map[*session]struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Listen binds the listening socket. Failure is a *BindError.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return &BindError{Address: s.config.Address, Err: err}
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address. Only valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.currentListener().Addr()
}

func (s *Server) currentListener() net.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

// Serve accepts connections until ctx is cancelled or Shutdown is
// called, then closes idle sessions and waits for the rest to finish
// their current exchange. Serve calls Listen if it has not been called.
func (s *Server) Serve(ctx context.Context) error {
	defer close(s.done)

	listener := s.currentListener()
	if listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		listener = s.currentListener()
	}

	// Unblock Accept on cancellation or Shutdown.
	go func() {
		select {
		case <-ctx.Done():
		case <-s.stop:
		}
		s.beginShutdown()
	}()

	s.logger.Info("render server listening",
		"address", listener.Addr().String(),
		"max_body", s.config.MaxBody,
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.draining.Load() || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			// Back off briefly so a persistent error (EMFILE) does
			// not spin.
			select {
			case <-time.After(50 * time.Millisecond):
			case <-s.stop:
			}
			continue
		}

		sess := newSession(s, conn)
		s.mu.Lock()
		s.sessions[sess] = struct{}{}
		s.mu.Unlock()

		s.activeSessions.Add(1)
		go func() {
			defer s.activeSessions.Done()
			sess.run(ctx)
		}()
	}

	s.stopOnce.Do(func() { close(s.stop) })
	s.beginShutdown()
	s.activeSessions.Wait()
	s.logger.Info("render server stopped")
	return nil
}

// Shutdown stops accepting and waits for Serve to return. Idle
// connections are closed at once; busy ones finish their exchange. If
// ctx expires first, every remaining connection is closed and ctx's
// error is returned. Calling Shutdown more than once is safe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("shutdown deadline reached, closing remaining connections")
		s.closeAllSessions()
		return ctx.Err()
	}
}

// Done is closed when Serve has returned.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Stats returns a snapshot of activity counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	var address string
	if s.listener != nil {
		address = s.listener.Addr().String()
	}
	started := s.started
	s.mu.Unlock()
	return Stats{
		Address:           address,
		ActiveConnections: s.activeConnections.Load(),
		TotalConnections:  s.totalConnections.Load(),
		FramesServed:      s.framesServed.Load(),
		RenderFailures:    s.renderFailures.Load(),
		FramingViolations: s.framingViolations.Load(),
		Started:           started,
	}
}

func (s *Server) beginShutdown() {
	if s.draining.Swap(true) {
		return
	}
	s.logger.Info("render server shutting down")
	if listener := s.currentListener(); listener != nil {
		listener.Close()
	}
	s.closeIdleSessions()
}

func (s *Server) closeIdleSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		sess.closeIfIdle()
	}
}

func (s *Server) closeAllSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		sess.forceClose()
	}
}

func (s *Server) removeSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}
