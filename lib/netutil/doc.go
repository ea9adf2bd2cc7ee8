// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies errors from network connections so that
// routine client hangups and deadline expiry can be told apart from
// real failures.
package netutil
