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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tgnet/e2e/internal/pubsub"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingGate struct {
	calls []bool
}

func (g *recordingGate) SetActive(active bool) { g.calls = append(g.calls, active) }

func (g *recordingGate) last() (bool, bool) {
	if len(g.calls) == 0 {
		return false, false
	}
	return g.calls[len(g.calls)-1], true
}

func TestEncodeDecodeWireMessageRoundTrips(t *testing.T) {
	since := time.Unix(1000, 0)
	raw := encodeWireMessage("peer-a", StateActive, since, "v1.2.3")
	msg, err := decodeWireMessage(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.SenderID != "peer-a" || msg.State != StateActive || msg.Version != "v1.2.3" {
		t.Fatalf("unexpected decode: %+v", msg)
	}
	if !msg.ActiveSince.Equal(since) {
		t.Fatalf("expected ActiveSince %v, got %v", since, msg.ActiveSince)
	}
}

// TestTwoPeersConvergeToOneActive runs both sides of a primary/backup pair
// against a shared in-process broker and checks the FSM converges: the
// primary becomes ACTIVE and the backup PASSIVE, with exactly one gate
// flipped active.
func TestTwoPeersConvergeToOneActive(t *testing.T) {
	broker := pubsub.NewInMemoryPubSub()
	gateA := &recordingGate{}
	gateB := &recordingGate{}

	params := Params{PublishInterval: 10 * time.Millisecond, PeerAbsentTimeout: 100 * time.Millisecond}
	primary := New("peer-a", true, broker, gateA, "v1", params, testLogger())
	backup := New("peer-b", false, broker, gateB, "v1", params, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go primary.Run(ctx)
	go backup.Run(ctx)

	<-ctx.Done()

	if primary.State() != StateActive {
		t.Fatalf("expected primary ACTIVE, got %v", primary.State())
	}
	if backup.State() != StatePassive {
		t.Fatalf("expected backup PASSIVE, got %v", backup.State())
	}
	if active, ok := gateA.last(); !ok || !active {
		t.Fatalf("expected primary's gate to have been set active, got %v ok=%v", active, ok)
	}
	if active, ok := gateB.last(); ok && active {
		t.Fatalf("expected backup's gate never set active, got %v", active)
	}
}

func TestForceFailoverStepsDownActiveOnly(t *testing.T) {
	gate := &recordingGate{}
	a := New("peer-a", true, pubsub.NewInMemoryPubSub(), gate, "v1", DefaultParams(), testLogger())

	// Not ACTIVE yet (still PRIMARY): no-op.
	a.ForceFailover()
	if a.State() != StatePrimary {
		t.Fatalf("expected PRIMARY unaffected, got %v", a.State())
	}

	a.mu.Lock()
	a.state = StateActive
	a.mu.Unlock()

	a.ForceFailover()
	if a.State() != StatePassive {
		t.Fatalf("expected PASSIVE after forced failover, got %v", a.State())
	}
	if active, ok := gate.last(); !ok || active {
		t.Fatalf("expected gate set inactive, got %v ok=%v", active, ok)
	}
}
