// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame implements the tcprender wire format.
//
// A request frame is a 9-byte zero-padded decimal length followed by
// that many bytes of UTF-8 document:
//
//	000000012<mjml></mjml>
//
// A response frame is one status byte ('0' success, '1' failure), a
// 9-byte zero-padded decimal length, and that many bytes of rendered
// output or error text:
//
//	0000000003<h>
//
// Lengths always count bytes, never characters.
//
// The protocol is strictly one frame per round trip. A [Decoder]
// accumulates bytes from a partial-delivery stream until exactly one
// frame is buffered. Bytes beyond the declared length are a
// [ViolationError], never the start of a next frame: a client that
// pipelines has desynchronized the stream and there is no safe way to
// recover.
//
// [Decoder] performs no I/O, so the server's connection loop and the
// tests drive it with arbitrary byte slices. [ReadResponse] is the
// blocking client-side reader used by lib/renderclient.
package frame
