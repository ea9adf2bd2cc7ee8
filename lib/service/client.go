// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"time"

	"github.com/tcprender/tcprender/lib/codec"
)

const (
	// dialTimeout covers only the connect phase.
	dialTimeout = 5 * time.Second

	// responseReadTimeout bounds the whole exchange after connecting.
	responseReadTimeout = 30 * time.Second

	maxResponseSize = 1024 * 1024
)

// ServiceError is returned by Call when the server replies ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("admin action %q failed: %s", e.Action, e.Message)
}

// Client sends requests to a SocketServer. Each Call uses a new
// connection.
type Client struct {
	socketPath string

	// Trace, when set, receives each raw CBOR response before it is
	// decoded.
	Trace func(action string, response []byte)
}

// NewClient returns a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends action with the given extra fields and decodes the reply's
// data into result when both are present. fields must not contain an
// "action" key.
//
// A server-side failure is a *ServiceError; connection and encoding
// failures are plain errors.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	maps.Copy(request, fields)
	request["action"] = action

	raw, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	if c.Trace != nil {
		c.Trace(action, raw)
	}
	var response Response
	if err := codec.Unmarshal(raw, &response); err != nil {
		return fmt.Errorf("decoding response to %q: %w", action, err)
	}
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// send writes request and returns the undecoded response. The server
// closes the connection after one response.
func (c *Client) send(ctx context.Context, request any) ([]byte, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(responseReadTimeout))
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	raw, err := io.ReadAll(io.LimitReader(conn, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(raw) > maxResponseSize {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseSize)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("reading response: %w", io.ErrUnexpectedEOF)
	}
	return raw, nil
}
