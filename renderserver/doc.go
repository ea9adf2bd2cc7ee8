// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package renderserver serves the tcprender protocol over TCP.
//
// A [Server] owns the listening socket and runs one session goroutine
// per accepted connection. Sessions share nothing but the read-only
// renderer and options: each owns its socket and a [frame.Decoder]
// that accumulates the current request.
//
// A session moves through these states:
//
//	Idle -> AwaitingHeader -> AwaitingBody -> Rendering -> Responding -> Idle
//
// and reaches Closed from any of them on peer close, I/O error, or a
// framing violation. While Rendering the session does not read from
// its socket: the protocol is strictly one request in flight per
// connection, so nothing a well-behaved client sends can arrive until
// the response has been written.
//
// Errors stay inside the session that produced them. A render failure
// or an invalid UTF-8 document produces a failure response and the
// connection stays open. A framing violation produces a best-effort
// failure response, then the connection is closed: once the stream has
// desynchronized there is no way to find the next frame boundary.
//
// Shutdown stops accepting, closes Idle sessions immediately, and lets
// sessions in any other state finish their exchange before closing.
// Renders already running are never interrupted by shutdown.
package renderserver
