// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by tcprender's
// commands: attaching an exit status to an error, and reporting a
// fatal error on stderr before the structured logger exists (or after
// it is gone).
//
// Exit statuses:
//
//	0  clean shutdown
//	1  any other failure
//	2  configuration error
//	3  the listening socket could not be bound
package process
