// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package renderserver

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/tcprender/tcprender/lib/frame"
	"github.com/tcprender/tcprender/lib/netutil"
	"github.com/tcprender/tcprender/lib/render"
)

// State is a session's position in the request/response cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingHeader
	StateAwaitingBody
	StateRendering
	StateResponding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingHeader:
		return "awaiting-header"
	case StateAwaitingBody:
		return "awaiting-body"
	case StateRendering:
		return "rendering"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// readBufferSize is the size of each socket read. Frames larger than
// this simply take several reads.
const readBufferSize = 32 * 1024

// session owns one accepted connection.
type session struct {
	server  *Server
	conn    net.Conn
	logger  *slog.Logger
	decoder *frame.Decoder

	// mu guards state, conn.Close, and the read deadline so Shutdown
	// can end a session only while it is Idle.
	mu    sync.Mutex
	state State
}

func newSession(server *Server, conn net.Conn) *session {
	return &session{
		server: server,
		conn:   conn,
		logger: server.logger.With(
			"connection", uuid.NewString(),
			"remote", conn.RemoteAddr().String(),
		),
		decoder: frame.NewDecoder(server.config.MaxBody),
		state:   StateIdle,
	}
}

// run drives the connection until the peer closes it, an I/O error
// occurs, a framing violation is detected, or the server drains.
func (s *session) run(ctx context.Context) {
	s.server.totalConnections.Add(1)
	s.server.activeConnections.Add(1)
	s.server.observer.ConnectionOpened()
	s.logger.Debug("connection opened")
	defer func() {
		s.forceClose()
		s.server.removeSession(s)
		s.server.activeConnections.Add(-1)
		s.server.observer.ConnectionClosed()
		s.logger.Debug("connection closed")
	}()

	buffer := make([]byte, readBufferSize)
	for {
		if !s.prepareRead() {
			return
		}

		// Bytes returned here count as a request in flight even if
		// shutdown interrupted the read meanwhile.
		n, readErr := s.conn.Read(buffer)
		if n > 0 {
			s.server.observer.BytesReceived(n)
			if !s.receive(ctx, buffer[:n]) {
				return
			}
		}
		if readErr != nil {
			if s.interruptedWhileIdle(readErr) {
				s.logger.Debug("closing idle connection for shutdown")
				return
			}
			s.logReadError(readErr)
			return
		}
	}
}

// prepareRead sets the deadline for the next read. It reports false
// when the session is idle and the server is draining. It holds mu so
// that it cannot overwrite the deadline closeIfIdle sets.
func (s *session) prepareRead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	if s.state == StateIdle && s.server.draining.Load() {
		return false
	}
	var deadline time.Time
	if timeout := s.server.config.ReadTimeout; timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	s.conn.SetReadDeadline(deadline)
	return true
}

func (s *session) interruptedWhileIdle(err error) bool {
	return netutil.IsTimeout(err) && s.server.draining.Load() && s.currentState() == StateIdle
}

// receive feeds one read into the decoder and, when a frame completes,
// runs the exchange. It returns false when the connection must close.
func (s *session) receive(ctx context.Context, data []byte) bool {
	payload, err := s.decoder.Feed(data)
	if err != nil {
		s.handleViolation(err)
		return false
	}
	if payload == nil {
		next := StateAwaitingBody
		if s.decoder.State() == frame.AwaitingHeader {
			next = StateAwaitingHeader
		}
		return s.transition(next)
	}

	if !s.transition(StateRendering) {
		return false
	}
	ok, body, renderDuration := s.render(ctx, payload)

	s.server.framesServed.Add(1)
	if !ok {
		s.server.renderFailures.Add(1)
	}
	s.server.observer.FrameRendered(ok, renderDuration)

	s.transition(StateResponding)
	if err := s.respond(ok, body); err != nil {
		return false
	}

	s.decoder.Reset()
	if !s.transition(StateIdle) {
		return false
	}
	return !s.server.draining.Load()
}

// render invokes the engine on payload and returns the response body.
// Invalid UTF-8 is reported like any other render failure.
func (s *session) render(ctx context.Context, payload []byte) (ok bool, body []byte, duration time.Duration) {
	if !utf8.Valid(payload) {
		s.logger.Debug("document is not valid UTF-8", "bytes", len(payload))
		return false, []byte("document is not valid UTF-8"), 0
	}
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		digest := blake3.Sum256(payload)
		s.logger.Debug("rendering document",
			"bytes", len(payload),
			"digest", hex.EncodeToString(digest[:8]),
		)
	}

	// Shutdown must not interrupt a render in progress.
	renderCtx := context.WithoutCancel(ctx)
	if timeout := s.server.config.RenderTimeout; timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(renderCtx, timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := s.server.config.Renderer.Render(renderCtx, string(payload), s.server.config.Options)
	duration = time.Since(start)
	if err == nil {
		return true, []byte(output), duration
	}

	var failure *render.Failure
	switch {
	case errors.As(err, &failure):
		s.logger.Debug("render failed", "error", failure.Message)
		return false, []byte(failure.Message), duration
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("render timed out", "timeout", s.server.config.RenderTimeout)
		return false, fmt.Appendf(nil, "render timed out after %s", s.server.config.RenderTimeout), duration
	default:
		s.logger.Warn("renderer error", "error", err)
		return false, []byte(err.Error()), duration
	}
}

// respond writes one response frame.
func (s *session) respond(ok bool, body []byte) error {
	response, err := frame.EncodeResponse(ok, body)
	if err != nil {
		s.logger.Warn("response too large to frame", "bytes", len(body))
		response, _ = frame.EncodeResponse(false, []byte(err.Error()))
	}
	if timeout := s.server.config.WriteTimeout; timeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	n, err := s.conn.Write(response)
	s.server.observer.BytesSent(n)
	if err != nil {
		if netutil.IsExpectedCloseError(err) {
			s.logger.Debug("client went away before response", "error", err)
		} else {
			s.logger.Warn("writing response failed", "error", err)
		}
		return err
	}
	return nil
}

// handleViolation sends a best-effort failure response. The caller
// closes the connection.
func (s *session) handleViolation(err error) {
	s.server.framingViolations.Add(1)
	s.server.observer.FramingViolation()

	var violation *frame.ViolationError
	reason := err.Error()
	if errors.As(err, &violation) {
		reason = violation.Reason
	}
	s.logger.Info("closing connection after framing violation", "reason", reason)

	s.transition(StateResponding)
	s.respond(false, []byte(ViolationMessage))
}

func (s *session) logReadError(err error) {
	switch {
	case netutil.IsExpectedCloseError(err):
		if buffered := s.decoder.Buffered(); buffered > 0 {
			s.logger.Info("client closed connection mid-frame",
				"buffered", buffered,
				"expected", s.decoder.Expected(),
			)
		}
	case netutil.IsTimeout(err):
		s.logger.Info("closing connection after read timeout",
			"timeout", s.server.config.ReadTimeout,
			"state", s.currentState().String(),
		)
	default:
		s.logger.Warn("read failed", "error", err)
	}
}

// transition moves to next unless the session was closed underneath
// it, in which case it reports false.
func (s *session) transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = next
	return true
}

func (s *session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// closeIfIdle ends the session if no frame is in progress. A pending
// Read is interrupted through its deadline rather than by closing the
// socket, so bytes it has already taken from the socket are still
// answered.
func (s *session) closeIfIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		s.conn.SetReadDeadline(time.Now())
	}
}

func (s *session) forceClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = StateClosed
		s.conn.Close()
	}
}
