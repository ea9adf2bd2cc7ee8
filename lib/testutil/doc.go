// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireClosed], and [RequireError] wrap the
// select-with-timeout pattern so tests that wait on goroutines fail
// cleanly instead of hanging. They are the only place in the test
// suite where wall-clock timeouts appear.
//
// [SocketDir] creates a short directory under /tmp for Unix domain
// sockets, whose paths are limited to 108 bytes (sun_path).
//
// [Logger] returns a logger that keeps test output quiet unless
// TCPRENDER_TEST_LOG is set.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
