// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Tcprender serves document rendering over a length-prefixed TCP
// protocol and includes a client for it.
//
// Usage:
//
//	# Serve markdown on 127.0.0.1:28101
//	tcprender serve
//
//	# Serve MJML through the mjml CLI, minifying output
//	tcprender serve --engine=command --command.minify=true
//
//	# Stop when /run/tcprender/stop is touched
//	tcprender serve --touchstop=/run/tcprender/stop
//
//	# Render a file through one or more running servers
//	tcprender render --server=10.0.0.5:28101 --server=10.0.0.6:28101 email.mjml
//
//	# Inspect or stop a running server
//	tcprender admin status --socket=/run/tcprender/admin.sock
//	tcprender admin shutdown --socket=/run/tcprender/admin.sock
package main

import (
	"os"

	"github.com/tcprender/tcprender/lib/process"
)

func main() {
	process.Exit(newRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute())
}
