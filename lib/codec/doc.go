// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration used by tcprender's admin
// socket.
//
// The render protocol itself is length-prefixed text (see lib/frame);
// CBOR is only used for the local control channel, where a
// self-delimiting binary encoding lets a request be read without any
// further framing. The encoder uses Core Deterministic Encoding
// (RFC 8949 §4.2) so the same value always produces the same bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types that are also printed as JSON by the CLI carry `json` tags;
// fxamacker/cbor reads them when `cbor` tags are absent. Purely
// internal envelopes use `cbor` tags. Never put both on one field.
package codec
