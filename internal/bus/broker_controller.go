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

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// minionHandle is one registered minion connection, directly modeled on the
// hub's serverEntry: a transport plus liveness bookkeeping.
type minionHandle struct {
	nodeID       string
	transport    Transport
	lastEchoAck  atomic.Int64 // unix nanos
	echoOutstanding atomic.Bool
}

// ControllerBroker routes envelopes between controller-local app inboxes
// and per-minion transports. It holds map[nodeID]*minionHandle guarded by
// an xsync.Map the same way the hub's servers map is guarded, since the
// broker is on the hot path for every minion's heartbeat.
type ControllerBroker struct {
	minions  *xsync.Map[string, *minionHandle]
	localApps *xsync.Map[string, chan Envelope]
	drops    atomic.Int64
	logger   *slog.Logger
	ctrlSocketTimeout time.Duration
	active   atomic.Bool
}

// NewControllerBroker constructs an empty broker, active by default. A
// single-instance deployment (BstarEnabled=false) never calls SetActive, so
// it stays perpetually active. ctrlSocketTimeout governs DEALER_ECHO
// liveness: absence of a reply within that window causes the handle to be
// recreated by the caller of CheckLiveness.
func NewControllerBroker(ctrlSocketTimeout time.Duration, logger *slog.Logger) *ControllerBroker {
	b := &ControllerBroker{
		minions:           xsync.NewMap[string, *minionHandle](),
		localApps:         xsync.NewMap[string, chan Envelope](),
		logger:            logger,
		ctrlSocketTimeout: ctrlSocketTimeout,
	}
	b.active.Store(true)
	return b
}

// SetActive flips whether this broker is the BinaryStarApp-elected ACTIVE
// instance. A PASSIVE broker refuses to route traffic to minions (new
// requests are rejected; already-queued sends already in flight on a
// minion's transport are unaffected) but keeps serving local controller
// apps, since BinaryStarApp itself must keep publishing/consuming peer
// state regardless of which side is active.
func (b *ControllerBroker) SetActive(active bool) { b.active.Store(active) }

// Active reports whether this broker currently routes minion traffic.
func (b *ControllerBroker) Active() bool { return b.active.Load() }

// RegisterApp attaches a local controller app's inbox so the broker can
// deliver envelopes addressed to (ControllerNodeID, app.ID()).
func (b *ControllerBroker) RegisterApp(app App) {
	b.localApps.Store(app.ID(), app.Inbox())
}

// RegisterMinion attaches a minion's transport. A duplicate registration
// for a node already present is logged and ignored, per spec.
func (b *ControllerBroker) RegisterMinion(nodeID string, t Transport) {
	h := &minionHandle{nodeID: nodeID, transport: t}
	h.lastEchoAck.Store(time.Now().UnixNano())
	_, loaded := b.minions.LoadOrStore(nodeID, h)
	if loaded {
		b.logger.Warn("duplicate minion registration ignored", "node", nodeID)
		return
	}
	go b.readFromMinion(nodeID, h)
}

// UnregisterMinion removes a minion's handle, e.g. after its transport is
// torn down by liveness failure.
func (b *ControllerBroker) UnregisterMinion(nodeID string) {
	b.minions.Delete(nodeID)
}

func (b *ControllerBroker) readFromMinion(nodeID string, h *minionHandle) {
	for env := range h.transport.Recv() {
		if env.Type == MsgDealerEcho {
			h.lastEchoAck.Store(time.Now().UnixNano())
			h.echoOutstanding.Store(false)
			continue
		}
		if err := env.DecompressPayload(); err != nil {
			b.logger.Warn("dropping envelope, decompress failed", "node", nodeID, "error", err)
			b.drops.Add(1)
			continue
		}
		_ = b.Route(env)
	}
}

// Route dispatches env either to a local controller app inbox or out over
// the destination minion's transport. Forwarding is stateless per message:
// an undeliverable envelope is dropped with a counter bump, no retry.
func (b *ControllerBroker) Route(env Envelope) error {
	if env.DestNodeID == ControllerNodeID || env.DestNodeID == "" {
		inbox, ok := b.localApps.Load(env.DestAppID)
		if !ok {
			b.drops.Add(1)
			return fmt.Errorf("no local app %q registered", env.DestAppID)
		}
		select {
		case inbox <- env:
			return nil
		default:
			b.drops.Add(1)
			return fmt.Errorf("app %q inbox full, dropped", env.DestAppID)
		}
	}

	if !b.active.Load() {
		b.drops.Add(1)
		return fmt.Errorf("broker is PASSIVE, refusing new request to %q", env.DestNodeID)
	}

	h, ok := b.minions.Load(env.DestNodeID)
	if !ok {
		b.drops.Add(1)
		return fmt.Errorf("no minion registered for node %q", env.DestNodeID)
	}
	if err := h.transport.Send(env); err != nil {
		b.drops.Add(1)
		return fmt.Errorf("send to minion %q: %w", env.DestNodeID, err)
	}
	return nil
}

// DropCount returns the cumulative number of envelopes dropped since
// startup (served as droppedEnvelopes by httpapi's /api/broker/stats).
func (b *ControllerBroker) DropCount() int64 { return b.drops.Load() }

// CheckLiveness sends DEALER_ECHO to every registered minion and
// unregisters any whose last ack predates ctrlSocketTimeout, causing the
// caller to recreate the handle on next connection attempt. Intended to be
// invoked on a ticker from the controller's bus supervisor.
func (b *ControllerBroker) CheckLiveness(ctx context.Context) {
	now := time.Now()
	var stale []string
	b.minions.Range(func(nodeID string, h *minionHandle) bool {
		if now.Sub(time.Unix(0, h.lastEchoAck.Load())) > b.ctrlSocketTimeout {
			stale = append(stale, nodeID)
			return true
		}
		echo := Envelope{DestNodeID: nodeID, DestAppID: AppBroker, SenderAppID: AppBroker, Type: MsgDealerEcho}
		if err := h.transport.Send(echo); err != nil {
			b.logger.Warn("dealer echo send failed", "node", nodeID, "error", err)
		} else {
			h.echoOutstanding.Store(true)
		}
		return true
	})
	for _, nodeID := range stale {
		b.logger.Warn("minion socket timed out, recreating handle", "node", nodeID)
		if h, ok := b.minions.Load(nodeID); ok {
			_ = h.transport.Close()
		}
		b.UnregisterMinion(nodeID)
	}
}
