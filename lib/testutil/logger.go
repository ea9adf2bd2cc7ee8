// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

// Logger returns a text logger for code under test. Output is
// discarded unless TCPRENDER_TEST_LOG is set, in which case everything
// down to debug goes to the test's output.
func Logger(t testing.TB) *slog.Logger {
	t.Helper()
	if os.Getenv("TCPRENDER_TEST_LOG") == "" {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return slog.New(slog.NewTextHandler(t.Output(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}
