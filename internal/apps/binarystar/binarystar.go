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

package binarystar

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/pubsub"
)

// peerTopic is the well-known pub/sub topic both controller peers publish
// to and subscribe from.
const peerTopic = "bstar.state"

// Gate is the minimal surface BinaryStarApp needs from a ControllerBroker:
// flip whether this instance's broker routes minion traffic. Kept narrow
// so tests substitute a recorder instead of a real broker.
type Gate interface {
	SetActive(active bool)
}

// Params controls BinaryStarApp's timing, per spec.md §4.7's "~1s" publish
// cadence and "2s" peer-absence threshold.
type Params struct {
	PublishInterval     time.Duration
	PeerAbsentTimeout   time.Duration
}

// DefaultParams mirrors spec.md's defaults.
func DefaultParams() Params {
	return Params{
		PublishInterval:   1 * time.Second,
		PeerAbsentTimeout: 2 * time.Second,
	}
}

// App is the controller-side BinaryStarApp.
type App struct {
	bus.BaseApp
	id      string
	ps      pubsub.PubSub
	gate    Gate
	version string
	params  Params
	logger  *slog.Logger

	mu           sync.Mutex
	state        State
	activeSince  time.Time
	lastPeer     wireMessage
	lastPeerSeen time.Time
	havePeer     bool
}

// New constructs a BinaryStarApp. id must be stable and distinct between
// the two peers (it is used only to filter out this instance's own
// publishes); primary selects the starting role (PRIMARY vs BACKUP) from
// config's bstar_primary flag; version must match between peers or the
// FSM forces PASSIVE.
func New(id string, primary bool, ps pubsub.PubSub, gate Gate, version string, params Params, logger *slog.Logger) *App {
	start := StateBackup
	if primary {
		start = StatePrimary
	}
	return &App{
		BaseApp: bus.NewBaseApp(bus.AppBinaryStar, bus.ControllerNodeID),
		id:      id,
		ps:      ps,
		gate:    gate,
		version: version,
		params:  params,
		logger:  logger,
		state:   start,
	}
}

// State returns the current FSM state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Run publishes this instance's state every PublishInterval, consumes the
// peer's publishes, and re-evaluates the FSM on every tick or peer
// message. It also drains the inbox for a manual-failover request
// (MsgBstarFeedback), the operator-triggered "force this side to step
// down" override common to primary/backup pub/sub HA patterns.
func (a *App) Run(ctx context.Context) error {
	sub := a.ps.Subscribe(peerTopic)
	defer sub.Close()

	ticker := time.NewTicker(a.params.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			a.evaluate(now)
			a.publish(now)
		case raw, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			msg, err := decodeWireMessage(raw)
			if err != nil {
				a.logger.Warn("binarystar decode failed", "error", err)
				continue
			}
			if msg.SenderID == a.id {
				continue
			}
			a.mu.Lock()
			a.lastPeer = msg
			a.lastPeerSeen = time.Now()
			a.havePeer = true
			a.mu.Unlock()
			a.evaluate(time.Now())
		case env := <-a.Inbox():
			if env.Type == bus.MsgBstarFeedback {
				a.ForceFailover()
			}
		}
	}
}

// evaluate applies NextState given the currently observed peer and, on a
// transition, flips the broker gate and (for a new ACTIVE) resets
// activeSince so a subsequent ACTIVE/ACTIVE tie-break sees this instance
// as the newer claimant.
func (a *App) evaluate(now time.Time) {
	a.mu.Lock()
	peer := PeerEvent{}
	if a.havePeer && now.Sub(a.lastPeerSeen) <= a.params.PeerAbsentTimeout {
		peer = PeerEvent{Present: true, State: a.lastPeer.State, ActiveSince: a.lastPeer.ActiveSince, Version: a.lastPeer.Version}
	}
	next := NextState(a.state, a.activeSince, a.version, peer)
	changed := next != a.state
	if changed {
		prev := a.state
		a.state = next
		if next == StateActive {
			a.activeSince = now
		}
		a.mu.Unlock()
		a.logger.Info("binarystar state transition", "from", prev, "to", next)
		if peer.Present && peer.Version != "" && a.version != "" && peer.Version != a.version {
			a.logger.Warn("binarystar peer version mismatch, forcing passive", "local_version", a.version, "peer_version", peer.Version)
		}
		if a.gate != nil {
			a.gate.SetActive(next == StateActive)
		}
		return
	}
	a.mu.Unlock()
}

func (a *App) publish(now time.Time) {
	a.mu.Lock()
	state, activeSince := a.state, a.activeSince
	a.mu.Unlock()
	payload := encodeWireMessage(a.id, state, activeSince, a.version)
	if err := a.ps.Publish(peerTopic, payload); err != nil {
		a.logger.Warn("binarystar publish failed", "error", err)
	}
}

// ForceFailover steps an ACTIVE instance down to PASSIVE immediately,
// without waiting for a peer event, mirroring the administrative
// force-switchover operation of the binary-star pub/sub HA pattern. A
// BACKUP/PRIMARY/PASSIVE instance is unaffected.
func (a *App) ForceFailover() {
	a.mu.Lock()
	if a.state != StateActive {
		a.mu.Unlock()
		return
	}
	a.state = StatePassive
	a.mu.Unlock()
	a.logger.Warn("binarystar forced failover to passive")
	if a.gate != nil {
		a.gate.SetActive(false)
	}
}
