// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package renderserver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tcprender/tcprender/lib/testutil"
)

// heldConn pauses its first Read after data has been taken from the
// underlying connection, until release is closed.
type heldConn struct {
	net.Conn
	readDone chan struct{}
	release  chan struct{}
	once     sync.Once
}

func (c *heldConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.once.Do(func() {
		close(c.readDone)
		<-c.release
	})
	return n, err
}

func newPipeSession(t *testing.T, wrap func(net.Conn) net.Conn) (*Server, *session, net.Conn) {
	t.Helper()
	server, err := New(Config{
		Address:  "127.0.0.1:0",
		Renderer: upperRenderer{},
		Logger:   testutil.Logger(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() {
		serverSide.Close()
		clientSide.Close()
	})
	return server, newSession(server, wrap(serverSide)), clientSide
}

func TestDrainAnswersRequestReadWhileIdle(t *testing.T) {
	held := &heldConn{readDone: make(chan struct{}), release: make(chan struct{})}
	server, sess, client := newPipeSession(t, func(conn net.Conn) net.Conn {
		held.Conn = conn
		return held
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.run(context.Background())
	}()

	writeErr := make(chan error, 1)
	go func() {
		_, err := client.Write([]byte("000000005hello"))
		writeErr <- err
	}()
	testutil.RequireClosed(t, held.readDone, 5*time.Second, "session never read the request")

	// Shutdown reaches the session after its Read took the bytes but
	// before it left Idle.
	if state := sess.currentState(); state != StateIdle {
		t.Fatalf("state = %v, want idle", state)
	}
	server.draining.Store(true)
	sess.closeIfIdle()
	close(held.release)

	if err := testutil.RequireReceive(t, writeErr, 5*time.Second, "request write"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	response := readResponse(t, client)
	if !response.OK || string(response.Body) != "HELLO" {
		t.Fatalf("response = %+v, want OK HELLO", response)
	}
	testutil.RequireClosed(t, done, 5*time.Second, "session did not end after draining")
	requireEOF(t, client)
}

func TestDrainEndsIdleSession(t *testing.T) {
	server, sess, client := newPipeSession(t, func(conn net.Conn) net.Conn { return conn })

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.run(context.Background())
	}()

	server.draining.Store(true)
	sess.closeIfIdle()

	testutil.RequireClosed(t, done, 5*time.Second, "idle session did not end")
	requireEOF(t, client)
	if stats := server.Stats(); stats.FramesServed != 0 {
		t.Errorf("FramesServed = %d, want 0", stats.FramesServed)
	}
}
