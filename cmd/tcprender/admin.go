// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tcprender/tcprender/lib/admin"
	"github.com/tcprender/tcprender/lib/codec"
	"github.com/tcprender/tcprender/lib/service"
)

func newAdminCommand() *cobra.Command {
	var (
		socketPath string
		debug      bool
	)
	command := &cobra.Command{
		Use:   "admin",
		Short: "Query or stop a running server through its admin socket",
	}
	command.PersistentFlags().StringVar(&socketPath, "socket", "", "admin socket path (the server's --admin-socket)")
	command.PersistentFlags().BoolVar(&debug, "debug", false, "print each raw response in CBOR diagnostic notation on stderr")

	requireSocket := func(cmd *cobra.Command) (*service.Client, error) {
		if socketPath == "" {
			return nil, errors.New("--socket is required")
		}
		client := service.NewClient(socketPath)
		if debug {
			stderr := cmd.ErrOrStderr()
			client.Trace = func(action string, response []byte) {
				diagnostic, err := codec.Diagnose(response)
				if err != nil {
					fmt.Fprintf(stderr, "%s response: %d bytes, not valid CBOR: %v\n", action, len(response), err)
					return
				}
				fmt.Fprintf(stderr, "%s response: %s\n", action, diagnostic)
			}
		}
		return client, nil
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print server status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := requireSocket(cmd)
			if err != nil {
				return err
			}
			result, err := admin.FetchStatus(cmd.Context(), client)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}

	var reason string
	shutdown := &cobra.Command{
		Use:   "shutdown",
		Short: "Request graceful shutdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := requireSocket(cmd)
			if err != nil {
				return err
			}
			reply, err := admin.RequestShutdown(cmd.Context(), client, reason)
			if err != nil {
				return err
			}
			if reply.Accepted {
				cmd.Println("shutdown requested")
			} else {
				cmd.Println("shutdown already in progress")
			}
			return nil
		},
	}
	shutdown.Flags().StringVar(&reason, "reason", "", "reason recorded in the server log")

	command.AddCommand(status, shutdown)
	return command
}
