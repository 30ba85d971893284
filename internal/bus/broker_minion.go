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
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// MinionBroker is the symmetric, smaller broker case: one upstream handle
// to the controller plus N local app inboxes.
type MinionBroker struct {
	nodeID    string
	upstream  Transport
	localApps *xsync.Map[string, chan Envelope]
	drops     atomic.Int64
	logger    *slog.Logger
}

// NewMinionBroker constructs a broker around the already-dialed upstream
// transport to the controller.
func NewMinionBroker(nodeID string, upstream Transport, logger *slog.Logger) *MinionBroker {
	return &MinionBroker{
		nodeID:    nodeID,
		upstream:  upstream,
		localApps: xsync.NewMap[string, chan Envelope](),
		logger:    logger,
	}
}

// RegisterApp attaches a local minion app's inbox.
func (b *MinionBroker) RegisterApp(app App) {
	b.localApps.Store(app.ID(), app.Inbox())
}

// RunUpstreamLoop drains the upstream transport, echoing DEALER_ECHO and
// dispatching everything else to the addressed local app.
func (b *MinionBroker) RunUpstreamLoop() {
	for env := range b.upstream.Recv() {
		if env.Type == MsgDealerEcho {
			_ = b.upstream.Send(Envelope{DestNodeID: ControllerNodeID, DestAppID: AppBroker, SenderAppID: AppBroker, Type: MsgDealerEcho})
			continue
		}
		if err := env.DecompressPayload(); err != nil {
			b.logger.Warn("dropping envelope, decompress failed", "error", err)
			b.drops.Add(1)
			continue
		}
		_ = b.Route(env)
	}
}

// Route dispatches env to a local app inbox when addressed to this node,
// otherwise forwards upstream to the controller.
func (b *MinionBroker) Route(env Envelope) error {
	if env.DestNodeID == "" || env.DestNodeID == b.nodeID {
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

	env.DestNodeID = ControllerNodeID
	if err := b.upstream.Send(env); err != nil {
		b.drops.Add(1)
		return fmt.Errorf("send upstream: %w", err)
	}
	return nil
}

// DropCount returns the cumulative number of envelopes dropped since
// startup.
func (b *MinionBroker) DropCount() int64 { return b.drops.Load() }
