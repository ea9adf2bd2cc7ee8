// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package renderserver

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tcprender/tcprender/lib/frame"
	"github.com/tcprender/tcprender/lib/render"
	"github.com/tcprender/tcprender/lib/testutil"
)

// upperRenderer upper-cases documents and fails on any containing
// "bad".
type upperRenderer struct{}

func (upperRenderer) Render(_ context.Context, document string, _ render.Options) (string, error) {
	if strings.Contains(document, "bad") {
		return "", &render.Failure{Message: "bad markup"}
	}
	return strings.ToUpper(document), nil
}

// gatedRenderer blocks each Render until release is closed, signalling
// entered first.
type gatedRenderer struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedRenderer() *gatedRenderer {
	return &gatedRenderer{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedRenderer) Render(ctx context.Context, document string, _ render.Options) (string, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return "<rendered>" + document + "</rendered>", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// startServer runs a server on a loopback port and stops it when the
// test ends.
func startServer(t *testing.T, config Config) *Server {
	t.Helper()
	if config.Address == "" {
		config.Address = "127.0.0.1:0"
	}
	if config.Logger == nil {
		config.Logger = testutil.Logger(t)
	}
	server, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := server.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
		testutil.RequireError(t, serveErr, 5*time.Second, "Serve")
	})
	return server
}

func dial(t *testing.T, server *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func sendRequest(t *testing.T, conn net.Conn, document string) {
	t.Helper()
	request, err := frame.EncodeRequest([]byte(document))
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if _, err := conn.Write(request); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func readResponse(t *testing.T, conn net.Conn) frame.Response {
	t.Helper()
	response, err := frame.ReadResponse(conn, 0)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	return response
}

// requireEOF asserts that the server has closed conn.
func requireEOF(t *testing.T, conn net.Conn) {
	t.Helper()
	buffer := make([]byte, 1)
	n, err := conn.Read(buffer)
	if n != 0 || err == nil {
		t.Fatalf("Read after close = (%d, %v), want EOF", n, err)
	}
	if err != io.EOF && !strings.Contains(err.Error(), "reset") {
		t.Fatalf("Read after close error = %v, want EOF", err)
	}
}
