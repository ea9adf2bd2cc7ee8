// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package renderclient sends documents to one or more tcprender
// servers.
//
// Each Render opens a fresh connection, sends one request frame, and
// reads one response. Servers are tried in random order so load
// spreads across a pool; a server that refuses the connection, times
// out, or drops it is skipped and the next one tried. A failure
// response from a server is final and is returned as a *[RemoteError]
// without trying the others, since the same document would fail the
// same way everywhere.
package renderclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"slices"
	"time"

	"github.com/tcprender/tcprender/lib/frame"
	"github.com/tcprender/tcprender/lib/netutil"
)

// DefaultTimeout bounds connecting to and exchanging with one server.
const DefaultTimeout = 25 * time.Second

// ErrNoWorkingServer matches the error returned when no server
// produced a response.
var ErrNoWorkingServer = errors.New("no working server")

// NoServerError reports that every server was tried without getting a
// response. It matches ErrNoWorkingServer.
type NoServerError struct {
	Servers  int
	Timeouts int

	// Last is the error from the last server tried.
	Last error
}

func (e *NoServerError) Error() string {
	message := fmt.Sprintf("%s (servers: %d, timeouts: %d)", ErrNoWorkingServer, e.Servers, e.Timeouts)
	if e.Last != nil {
		message += ": last error: " + e.Last.Error()
	}
	return message
}

func (e *NoServerError) Is(target error) bool {
	return target == ErrNoWorkingServer
}

func (e *NoServerError) Unwrap() error {
	return e.Last
}

// RemoteError is a failure response from a server.
type RemoteError struct {
	Server  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("render failed on %s: %s", e.Server, e.Message)
}

// Client renders documents through a pool of servers. The zero value
// is not usable: Servers must be set.
type Client struct {
	// Servers are host:port addresses.
	Servers []string

	// Timeout applies to each server attempt. Zero selects
	// DefaultTimeout.
	Timeout time.Duration

	// MaxResponse bounds the response body. Zero means no limit beyond
	// the protocol's own.
	MaxResponse int

	Logger *slog.Logger

	// shuffle orders the servers for one Render; tests replace it.
	shuffle func([]string)
}

// Render sends document to a server and returns the rendered output.
func (c *Client) Render(ctx context.Context, document string) (string, error) {
	if len(c.Servers) == 0 {
		return "", errors.New("renderclient: no servers configured")
	}
	request, err := frame.EncodeRequest([]byte(document))
	if err != nil {
		return "", err
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	servers := slices.Clone(c.Servers)
	if c.shuffle != nil {
		c.shuffle(servers)
	} else {
		rand.Shuffle(len(servers), func(i, j int) { servers[i], servers[j] = servers[j], servers[i] })
	}

	failure := &NoServerError{Servers: len(servers)}
	for _, server := range servers {
		response, err := c.exchange(ctx, server, request)
		if err == nil {
			if !response.OK {
				return "", &RemoteError{Server: server, Message: string(response.Body)}
			}
			return string(response.Body), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if netutil.IsTimeout(err) {
			failure.Timeouts++
		}
		failure.Last = err
		logger.Debug("render server unavailable", "server", server, "error", err)
	}
	return "", failure
}

func (c *Client) exchange(ctx context.Context, server string, request []byte) (frame.Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", server)
	if err != nil {
		return frame.Response{}, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write(request); err != nil {
		return frame.Response{}, fmt.Errorf("sending request to %s: %w", server, err)
	}
	response, err := frame.ReadResponse(conn, c.MaxResponse)
	if err != nil {
		return frame.Response{}, fmt.Errorf("reading response from %s: %w", server, err)
	}
	return response, nil
}
