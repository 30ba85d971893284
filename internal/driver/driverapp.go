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

package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tgnet/e2e/internal/bus"
)

// Socket is the local pair-socket abstraction over the netlink driver
// process, narrow enough that tests can substitute an in-memory pipe
// instead of a real socket.
type Socket interface {
	Write(msg DriverMessage) error
	Read() (DriverMessage, error)
	Close() error
}

// DriverApp is the only app that talks to the firmware-facing driver
// process; every other app addresses it indirectly by routing through
// DriverApp, which serializes all outbound messages on a single socket
// pair.
type DriverApp struct {
	bus.BaseApp
	router Router
	socket Socket
	queue  *CookieQueue
	logger *slog.Logger
}

// Router is the narrow bus surface DriverApp needs to forward firmware
// responses; every response is routed to IgnitionApp.
type Router interface {
	Route(env bus.Envelope) error
}

// NewDriverApp wires a DriverApp around an already-open driver socket.
func NewDriverApp(nodeID string, router Router, socket Socket, logger *slog.Logger) *DriverApp {
	return &DriverApp{
		BaseApp: bus.NewBaseApp(bus.AppDriver, nodeID),
		router:  router,
		socket:  socket,
		queue:   NewCookieQueue(),
		logger:  logger,
	}
}

// Run drains the inbox (apps addressing the driver) and the driver socket
// (firmware responses), dispatching PassThru messages in per-cookie FIFO
// order. No callback blocks: the socket read loop runs in its own
// goroutine and hands completions back over a channel.
func (d *DriverApp) Run(ctx context.Context) error {
	fromDriver := make(chan DriverMessage, 64)
	go d.readLoop(ctx, fromDriver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-d.Inbox():
			if err := d.handleAppMessage(env); err != nil {
				d.logger.Warn("driver app message failed", "error", err)
			}
		case msg := <-fromDriver:
			if err := d.handleDriverMessage(msg); err != nil {
				d.logger.Warn("driver socket message failed", "error", err)
			}
		}
	}
}

func (d *DriverApp) readLoop(ctx context.Context, out chan<- DriverMessage) {
	for {
		msg, err := d.socket.Read()
		if err != nil {
			if ctx.Err() == nil {
				d.logger.Warn("driver socket read ended", "error", err)
			}
			return
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (d *DriverApp) handleAppMessage(env bus.Envelope) error {
	pt, err := DecodePassThru(env.Payload)
	if err != nil {
		return fmt.Errorf("decode passthru from %s: %w", env.SenderAppID, err)
	}
	d.queue.Enqueue(pt)
	next := d.queue.DispatchNext(pt.Cookie)
	if next == nil {
		return nil
	}
	encoded, err := next.Encode()
	if err != nil {
		return fmt.Errorf("encode passthru: %w", err)
	}
	return d.socket.Write(DriverMessage{RadioMac: next.Dest, Inner: encoded})
}

func (d *DriverApp) handleDriverMessage(msg DriverMessage) error {
	pt, err := DecodePassThru(msg.Inner)
	if err != nil {
		return fmt.Errorf("decode driver response: %w", err)
	}
	env := bus.Envelope{
		DestNodeID:  d.NodeID,
		DestAppID:   bus.AppIgnition,
		SenderAppID: bus.AppDriver,
		Type:        bus.MsgDriverMessage,
		Payload:     pt.TLVBody,
	}
	return d.router.Route(env)
}
