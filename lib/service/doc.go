// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements a small CBOR request/response protocol on
// a Unix socket, used for tcprender's admin channel.
//
// Each connection carries exactly one exchange: the client writes one
// CBOR map with an "action" field, the server dispatches it to the
// [ActionFunc] registered for that action and writes one [Response],
// then the connection closes. CBOR is self-delimiting, so no further
// framing is needed.
//
// [SocketServer] is the server side; [Client] is the client side.
//
// Access control is the socket file's permissions: the socket is
// created with mode 0600, so only the server's user can connect.
package service
