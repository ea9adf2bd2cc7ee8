// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/tcprender/tcprender/lib/version"
)

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "tcprender",
		Short: "Render documents over a length-prefixed TCP protocol",
		Long: `tcprender keeps a rendering engine resident and serves it over TCP.

Each request is a 9-digit zero-padded byte length followed by a UTF-8
document. Each response is a status byte ('0' success, '1' failure),
a 9-digit byte length, and the rendered output or error message.
Connections may carry any number of requests, one at a time.`,
		Version:       version.Info(),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newServeCommand(),
		newRenderCommand(),
		newAdminCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	var full bool
	command := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if full {
				cmd.Printf("tcprender %s\n", version.Full())
				return nil
			}
			cmd.Printf("tcprender %s\n", version.Info())
			return nil
		},
	}
	command.Flags().BoolVar(&full, "full", false, "include Go version and platform")
	return command
}
