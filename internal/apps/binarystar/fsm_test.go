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
	"testing"
	"time"
)

func TestPrimaryBecomesActiveWhenPeerPassive(t *testing.T) {
	got := NextState(StatePrimary, time.Time{}, "v1", PeerEvent{Present: true, State: StatePassive, Version: "v1"})
	if got != StateActive {
		t.Fatalf("expected ACTIVE, got %v", got)
	}
}

func TestPrimaryBecomesPassiveWhenPeerActive(t *testing.T) {
	got := NextState(StatePrimary, time.Time{}, "v1", PeerEvent{Present: true, State: StateActive, Version: "v1"})
	if got != StatePassive {
		t.Fatalf("expected PASSIVE (backup wins split-brain), got %v", got)
	}
}

func TestPrimaryStaysPrimaryWithoutPeer(t *testing.T) {
	got := NextState(StatePrimary, time.Time{}, "v1", PeerEvent{Present: false})
	if got != StatePrimary {
		t.Fatalf("expected PRIMARY to hold absent a peer signal, got %v", got)
	}
}

func TestBackupBecomesActiveWhenPeerAbsent(t *testing.T) {
	got := NextState(StateBackup, time.Time{}, "v1", PeerEvent{Present: false})
	if got != StateActive {
		t.Fatalf("expected ACTIVE after peer absence, got %v", got)
	}
}

func TestBackupBecomesPassiveWhenPeerActive(t *testing.T) {
	got := NextState(StateBackup, time.Time{}, "v1", PeerEvent{Present: true, State: StateActive, Version: "v1"})
	if got != StatePassive {
		t.Fatalf("expected PASSIVE, got %v", got)
	}
}

func TestBackupStaysBackupWhenPeerPrimary(t *testing.T) {
	got := NextState(StateBackup, time.Time{}, "v1", PeerEvent{Present: true, State: StatePrimary, Version: "v1"})
	if got != StateBackup {
		t.Fatalf("expected BACKUP to hold, got %v", got)
	}
}

func TestActiveYieldsToNewerActivePeer(t *testing.T) {
	localSince := time.Unix(100, 0)
	peerSince := time.Unix(200, 0)
	got := NextState(StateActive, localSince, "v1", PeerEvent{Present: true, State: StateActive, ActiveSince: peerSince, Version: "v1"})
	if got != StatePassive {
		t.Fatalf("expected PASSIVE when peer's ActiveSince is newer, got %v", got)
	}
}

func TestActiveHoldsAgainstOlderActivePeer(t *testing.T) {
	localSince := time.Unix(200, 0)
	peerSince := time.Unix(100, 0)
	got := NextState(StateActive, localSince, "v1", PeerEvent{Present: true, State: StateActive, ActiveSince: peerSince, Version: "v1"})
	if got != StateActive {
		t.Fatalf("expected ACTIVE to hold against an older peer, got %v", got)
	}
}

func TestActiveHoldsWhenPeerPassive(t *testing.T) {
	got := NextState(StateActive, time.Time{}, "v1", PeerEvent{Present: true, State: StatePassive, Version: "v1"})
	if got != StateActive {
		t.Fatalf("expected ACTIVE to hold, got %v", got)
	}
}

func TestPassiveBecomesActiveWhenPeerAbsent(t *testing.T) {
	got := NextState(StatePassive, time.Time{}, "v1", PeerEvent{Present: false})
	if got != StateActive {
		t.Fatalf("expected ACTIVE after peer absence, got %v", got)
	}
}

func TestPassiveStaysPassiveWhenPeerPresent(t *testing.T) {
	got := NextState(StatePassive, time.Time{}, "v1", PeerEvent{Present: true, State: StateActive, Version: "v1"})
	if got != StatePassive {
		t.Fatalf("expected PASSIVE to hold, got %v", got)
	}
}

func TestVersionMismatchForcesPassiveRegardless(t *testing.T) {
	cases := []State{StatePrimary, StateBackup, StateActive, StatePassive}
	for _, local := range cases {
		got := NextState(local, time.Now(), "v1", PeerEvent{Present: true, State: StatePassive, Version: "v2"})
		if got != StatePassive {
			t.Fatalf("local=%v: expected PASSIVE on version mismatch, got %v", local, got)
		}
	}
}
