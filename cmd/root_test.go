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

package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/topology"
)

func TestNewCommand_HasControllerAndMinionSubcommands(t *testing.T) {
	t.Parallel()
	root := NewCommand("test", "abcdef")
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Use] = true
	}
	if !names["controller"] {
		t.Fatal("expected a controller subcommand")
	}
	if !names["minion"] {
		t.Fatal("expected a minion subcommand")
	}
}

func TestNewControllerCommand_SingleRole(t *testing.T) {
	t.Parallel()
	root := NewControllerCommand("test", "abcdef")
	if root.Use != "e2e-controller" {
		t.Fatalf("expected Use e2e-controller, got %q", root.Use)
	}
	if len(root.Commands()) != 0 {
		t.Fatal("expected no subcommands on a single-role command")
	}
}

func TestNewMinionCommand_SingleRole(t *testing.T) {
	t.Parallel()
	root := NewMinionCommand("test", "abcdef")
	if root.Use != "e2e-minion" {
		t.Fatalf("expected Use e2e-minion, got %q", root.Use)
	}
	if len(root.Commands()) != 0 {
		t.Fatal("expected no subcommands on a single-role command")
	}
}

func TestAddrString(t *testing.T) {
	t.Parallel()
	if got := addrString("", 7007); got != "0.0.0.0:7007" {
		t.Fatalf("expected 0.0.0.0:7007, got %q", got)
	}
	if got := addrString("127.0.0.1", 7007); got != "127.0.0.1:7007" {
		t.Fatalf("expected 127.0.0.1:7007, got %q", got)
	}
}

func TestWaitForShutdown_CancelsOnSignal(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Keep SIGHUP from terminating the test binary if it lands before
	// waitForShutdown has registered its own handler.
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, syscall.SIGHUP)
	defer signal.Stop(guard)
	done := make(chan struct{})
	go func() {
		waitForShutdown(cancel)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for {
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGHUP)
		select {
		case <-done:
			if ctx.Err() == nil {
				t.Fatal("expected context cancelled after signal")
			}
			return
		case <-deadline:
			t.Fatal("waitForShutdown did not return")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestHandshake_RoundTrip(t *testing.T) {
	t.Parallel()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	sent := bus.Envelope{DestAppID: bus.AppBroker, SenderAppID: "node-1", Type: bus.MsgDealerEcho}
	errCh := make(chan error, 1)
	go func() { errCh <- writeHandshakeFrame(clientConn, sent) }()

	got, err := readHandshakeFrame(serverConn)
	if err != nil {
		t.Fatalf("readHandshakeFrame: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("writeHandshakeFrame: %v", err)
	}
	if got.SenderAppID != sent.SenderAppID {
		t.Fatalf("expected SenderAppID %q, got %q", sent.SenderAppID, got.SenderAppID)
	}
	if got.DestAppID != sent.DestAppID {
		t.Fatalf("expected DestAppID %q, got %q", sent.DestAppID, got.DestAppID)
	}
}

func TestAcceptHandshake_MissingNodeID(t *testing.T) {
	t.Parallel()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	bad := bus.Envelope{DestAppID: bus.AppBroker, Type: bus.MsgDealerEcho}
	go func() { _ = writeHandshakeFrame(clientConn, bad) }()

	if _, err := acceptHandshake(serverConn); err == nil {
		t.Fatal("expected an error for a handshake with no node id")
	}
}

func TestLoadTopologySeed_EmptyPathIsNoop(t *testing.T) {
	t.Parallel()
	topo := topology.NewTopologyWrapper()
	if err := loadTopologySeed(topo, ""); err != nil {
		t.Fatalf("expected nil error for empty path, got: %v", err)
	}
}
