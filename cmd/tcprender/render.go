// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tcprender/tcprender/lib/config"
	"github.com/tcprender/tcprender/lib/renderclient"
)

func newRenderCommand() *cobra.Command {
	var (
		servers []string
		timeout time.Duration
	)
	command := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a document through running servers",
		Long: `Render a file, or standard input when no file is given, through one of
the listed servers and print the result. Servers are tried in random
order; unreachable or unresponsive ones are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				document []byte
				err      error
			)
			if len(args) == 1 && args[0] != "-" {
				document, err = os.ReadFile(args[0])
			} else {
				document, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}

			client := &renderclient.Client{Servers: servers, Timeout: timeout}
			output, err := client.Render(cmd.Context(), string(document))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			io.WriteString(out, output)
			if isTerminal(out) && !strings.HasSuffix(output, "\n") {
				io.WriteString(out, "\n")
			}
			return nil
		},
	}
	defaultServer := config.Default().Address()
	command.Flags().StringArrayVar(&servers, "server", []string{defaultServer}, "server host:port (repeatable)")
	command.Flags().DurationVar(&timeout, "timeout", renderclient.DefaultTimeout, "per-server timeout")
	return command
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
