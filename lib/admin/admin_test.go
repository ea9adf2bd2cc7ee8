// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tcprender/tcprender/lib/service"
	"github.com/tcprender/tcprender/lib/testutil"
	"github.com/tcprender/tcprender/lib/version"
	"github.com/tcprender/tcprender/renderserver"
)

type fakeTarget struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fakeTarget) shutdown(reason string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	return len(f.reasons) == 1
}

func (f *fakeTarget) shuttingDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reasons) > 0
}

func startAdmin(t *testing.T, target Target) *service.Client {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "admin.sock")
	server := service.NewSocketServer(socketPath, testutil.Logger(t))
	Register(server, target)
	if err := server.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireError(t, serveErr, 5*time.Second, "Serve")
	})
	return service.NewClient(socketPath)
}

func TestStatus(t *testing.T) {
	started := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	fake := &fakeTarget{}
	client := startAdmin(t, Target{
		Stats: func() renderserver.Stats {
			return renderserver.Stats{
				Address:           "127.0.0.1:28101",
				ActiveConnections: 2,
				TotalConnections:  9,
				FramesServed:      40,
				RenderFailures:    3,
				FramingViolations: 1,
				Started:           started,
			}
		},
		Engine:       "markdown",
		Shutdown:     fake.shutdown,
		ShuttingDown: fake.shuttingDown,
		Now:          func() time.Time { return started.Add(90 * time.Second) },
	})

	status, err := FetchStatus(context.Background(), client)
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if status.Address != "127.0.0.1:28101" || status.Engine != "markdown" {
		t.Errorf("status identity = %s %s", status.Address, status.Engine)
	}
	if status.FramesServed != 40 || status.RenderFailures != 3 || status.FramingViolations != 1 {
		t.Errorf("status counters = %+v", status)
	}
	if status.ActiveConnections != 2 || status.TotalConnections != 9 {
		t.Errorf("status connections = %+v", status)
	}
	if status.UptimeSeconds != 90 {
		t.Errorf("uptime = %v, want 90", status.UptimeSeconds)
	}
	if !status.Started.Equal(started) {
		t.Errorf("started = %v, want %v", status.Started, started)
	}
	if status.ShuttingDown {
		t.Error("ShuttingDown = true before any shutdown request")
	}
	if status.Version == "" {
		t.Error("version is empty")
	}
	if status.Commit != version.Commit() {
		t.Errorf("commit = %q, want %q", status.Commit, version.Commit())
	}
}

func TestShutdown(t *testing.T) {
	fake := &fakeTarget{}
	client := startAdmin(t, Target{
		Stats:        func() renderserver.Stats { return renderserver.Stats{} },
		Shutdown:     fake.shutdown,
		ShuttingDown: fake.shuttingDown,
	})

	reply, err := RequestShutdown(context.Background(), client, "deploy")
	if err != nil {
		t.Fatalf("RequestShutdown: %v", err)
	}
	if !reply.Accepted {
		t.Error("first shutdown not accepted")
	}

	reply, err = RequestShutdown(context.Background(), client, "")
	if err != nil {
		t.Fatalf("second RequestShutdown: %v", err)
	}
	if reply.Accepted {
		t.Error("second shutdown reported as accepted")
	}

	fake.mu.Lock()
	reasons := append([]string(nil), fake.reasons...)
	fake.mu.Unlock()
	if len(reasons) != 2 || reasons[0] != "admin socket: deploy" || reasons[1] != "admin socket" {
		t.Errorf("reasons = %q", reasons)
	}

	status, err := FetchStatus(context.Background(), client)
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if !status.ShuttingDown {
		t.Error("ShuttingDown = false after shutdown request")
	}
	if status.UptimeSeconds != 0 {
		t.Errorf("uptime = %v for an unstarted server, want 0", status.UptimeSeconds)
	}
}
