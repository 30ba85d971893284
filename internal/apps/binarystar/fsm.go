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

// Package binarystar is the controller's primary/backup HA FSM: two
// controller instances peer over internal/pubsub, publishing one-byte
// state every ~1s, and react to each other's state per spec.md §4.7.
package binarystar

import "time"

// State is the BinaryStarState enum of spec.md §3: PRIMARY/BACKUP are the
// two configured roles a peer starts in; ACTIVE/PASSIVE are the
// operational states the FSM evolves into. No transition ever returns to
// PRIMARY or BACKUP once left.
type State byte

const (
	StatePrimary State = iota
	StateBackup
	StateActive
	StatePassive
)

func (s State) String() string {
	switch s {
	case StatePrimary:
		return "PRIMARY"
	case StateBackup:
		return "BACKUP"
	case StateActive:
		return "ACTIVE"
	case StatePassive:
		return "PASSIVE"
	default:
		return "UNKNOWN"
	}
}

// PeerEvent is what the local FSM observes about its peer on each
// evaluation: either no recent publish (Present=false, once the peer has
// been silent for the configured absence window) or its last published
// state plus the wall-clock time it claims to have become ACTIVE.
type PeerEvent struct {
	Present     bool
	State       State
	ActiveSince time.Time
	Version     string
}

// NextState applies spec.md §4.7's transition table. localVersion and
// peer.Version being both non-empty and unequal forces PASSIVE
// unconditionally, ahead of the table itself, per "version equality
// between peers is required".
func NextState(local State, localActiveSince time.Time, localVersion string, peer PeerEvent) State {
	if peer.Present && localVersion != "" && peer.Version != "" && peer.Version != localVersion {
		return StatePassive
	}

	switch local {
	case StatePrimary:
		if !peer.Present {
			return StatePrimary
		}
		switch peer.State {
		case StatePassive:
			return StateActive
		case StateActive:
			return StatePassive
		default:
			return StatePrimary
		}

	case StateBackup:
		if !peer.Present {
			return StateActive
		}
		if peer.State == StateActive {
			return StatePassive
		}
		return StateBackup

	case StateActive:
		if peer.Present && peer.State == StateActive {
			// Newer ACTIVE wins: whichever side claims the later
			// ActiveSince stays active, the other steps down. A peer
			// that claims an earlier ActiveSince loses; with identical
			// ActiveSince values neither side steps down.
			if peer.ActiveSince.After(localActiveSince) {
				return StatePassive
			}
			return StateActive
		}
		return StateActive

	case StatePassive:
		if !peer.Present {
			return StateActive
		}
		return StatePassive

	default:
		return local
	}
}
