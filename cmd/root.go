// SPDX-License-Identifier: AGPL-3.0-or-later
// tgnet-e2e - Terragraph end-to-end control plane
// Copyright (C) 2026 Terragraph Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package cmd wires the controller and minion cobra entry points: loading
// config, standing up the message bus, and starting every app named in
// DESIGN.md's completeness checklist.
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgnet/e2e/internal/config"
)

// NewCommand builds the root cobra command: "e2e controller" runs the
// controller process, "e2e minion" runs a minion process, mirroring the
// teacher's single-binary-multiple-roles shape but split at the subcommand
// level since controller and minion have disjoint app sets.
func NewCommand(version, commit string) *cobra.Command {
	root := &cobra.Command{
		Use:               "e2e",
		Version:           fmt.Sprintf("%s (%s)", version, commit),
		DisableAutoGenTag: true,
		SilenceErrors:     true,
	}
	root.AddCommand(newControllerCommand(version, commit))
	root.AddCommand(newMinionCommand(version, commit))
	return root
}

func newControllerCommand(version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:   "controller",
		Short: "Run the Terragraph E2E controller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runController(cmd.Context(), version, commit)
		},
		SilenceErrors: true,
	}
}

func newMinionCommand(version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:   "minion",
		Short: "Run a Terragraph E2E minion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMinion(cmd.Context(), version, commit)
		},
		SilenceErrors: true,
	}
}

// NewControllerCommand builds a single-role root command for the
// e2e-controller binary, so a controller deployment doesn't carry a
// "minion" subcommand it will never use.
func NewControllerCommand(version, commit string) *cobra.Command {
	root := newControllerCommand(version, commit)
	root.Use = "e2e-controller"
	root.Version = fmt.Sprintf("%s (%s)", version, commit)
	root.DisableAutoGenTag = true
	return root
}

// NewMinionCommand builds a single-role root command for the e2e-minion
// binary, the minion-side counterpart to NewControllerCommand.
func NewMinionCommand(version, commit string) *cobra.Command {
	root := newMinionCommand(version, commit)
	root.Use = "e2e-minion"
	root.Version = fmt.Sprintf("%s (%s)", version, commit)
	root.DisableAutoGenTag = true
	return root
}

// waitForShutdown blocks until SIGINT/SIGTERM/SIGQUIT/SIGHUP, then cancels
// cancel and returns, the same signal set DMRHub's shutdown handler used.
func waitForShutdown(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	<-sigCh
	cancel()
}

// listenTCP is a small net.Listen wrapper so controller/minion startup
// errors get a consistent message shape.
func listenTCP(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return l, nil
}

func addrString(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// hcWait is the per-dial-attempt backoff a minion uses while the
// controller isn't reachable yet, e.g. during staggered container
// startup.
const hcWait = 2 * time.Second

func dialController(ctx context.Context, cfg config.Config) (net.Conn, error) {
	addr := addrString(cfg.ControllerHost, cfg.MinionRouterPort)
	for {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(hcWait):
		}
	}
}
