// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package admin defines the actions served on tcprender's admin
// socket and typed client calls for them.
//
// Two actions exist:
//
//   - "status" returns a [Status] snapshot of the render server.
//   - "shutdown" requests graceful shutdown. It goes through the same
//     one-shot trigger as signals and the sentinel file, so repeating
//     it is harmless.
package admin

import (
	"context"
	"time"

	"github.com/tcprender/tcprender/lib/codec"
	"github.com/tcprender/tcprender/lib/service"
	"github.com/tcprender/tcprender/lib/version"
	"github.com/tcprender/tcprender/renderserver"
)

// Action names.
const (
	ActionStatus   = "status"
	ActionShutdown = "shutdown"
)

// Status is the reply to the status action. It is printed as JSON by
// the CLI, hence the json tags.
type Status struct {
	Address           string    `json:"address"`
	Engine            string    `json:"engine"`
	Version           string    `json:"version"`
	Commit            string    `json:"commit"`
	Started           time.Time `json:"started"`
	UptimeSeconds     float64   `json:"uptime_seconds"`
	ActiveConnections int64     `json:"active_connections"`
	TotalConnections  int64     `json:"total_connections"`
	FramesServed      int64     `json:"frames_served"`
	RenderFailures    int64     `json:"render_failures"`
	FramingViolations int64     `json:"framing_violations"`
	ShuttingDown      bool      `json:"shutting_down"`
}

// ShutdownReply is the reply to the shutdown action.
type ShutdownReply struct {
	// Accepted is false when shutdown had already been requested.
	Accepted bool `json:"accepted"`
}

// Target is what the admin actions operate on.
type Target struct {
	// Stats snapshots the render server.
	Stats func() renderserver.Stats

	Engine string

	// Shutdown requests graceful shutdown and reports whether this
	// call was the first request.
	Shutdown func(reason string) bool

	// ShuttingDown reports whether shutdown has been requested.
	ShuttingDown func() bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Register installs the admin actions on server.
func Register(server *service.SocketServer, target Target) {
	now := target.Now
	if now == nil {
		now = time.Now
	}

	server.Handle(ActionStatus, func(context.Context, []byte) (any, error) {
		stats := target.Stats()
		status := Status{
			Address:           stats.Address,
			Engine:            target.Engine,
			Version:           version.Short(),
			Commit:            version.Commit(),
			Started:           stats.Started,
			ActiveConnections: stats.ActiveConnections,
			TotalConnections:  stats.TotalConnections,
			FramesServed:      stats.FramesServed,
			RenderFailures:    stats.RenderFailures,
			FramingViolations: stats.FramingViolations,
		}
		if !stats.Started.IsZero() {
			status.UptimeSeconds = now().Sub(stats.Started).Seconds()
		}
		if target.ShuttingDown != nil {
			status.ShuttingDown = target.ShuttingDown()
		}
		return status, nil
	})

	server.Handle(ActionShutdown, func(_ context.Context, raw []byte) (any, error) {
		var request struct {
			Reason string `cbor:"reason"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		reason := "admin socket"
		if request.Reason != "" {
			reason += ": " + request.Reason
		}
		return ShutdownReply{Accepted: target.Shutdown(reason)}, nil
	})
}

// FetchStatus calls the status action.
func FetchStatus(ctx context.Context, client *service.Client) (Status, error) {
	var status Status
	err := client.Call(ctx, ActionStatus, nil, &status)
	return status, err
}

// RequestShutdown calls the shutdown action. reason may be empty.
func RequestShutdown(ctx context.Context, client *service.Client, reason string) (ShutdownReply, error) {
	var fields map[string]any
	if reason != "" {
		fields = map[string]any{"reason": reason}
	}
	var reply ShutdownReply
	err := client.Call(ctx, ActionShutdown, fields, &reply)
	return reply, err
}
