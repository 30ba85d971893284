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

package upgrade

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/topology"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingRouter captures every envelope routed to it, keyed by
// destination node, so tests can assert who was dispatched to.
type recordingRouter struct {
	sent []bus.Envelope
}

func (r *recordingRouter) Route(env bus.Envelope) error {
	r.sent = append(r.sent, env)
	return nil
}

// stubTopo is a minimal LinkAndBGPQuery for batch tests.
type stubTopo struct {
	links map[string][]topology.Link
	nodes map[string]topology.Node
	bgp   map[string]int
}

func newStubTopo() *stubTopo {
	return &stubTopo{
		links: make(map[string][]topology.Link),
		nodes: make(map[string]topology.Node),
		bgp:   make(map[string]int),
	}
}

func (s *stubTopo) LinksOfNode(name string) []topology.Link { return s.links[name] }

func (s *stubTopo) Node(name string) (topology.Node, error) {
	n, ok := s.nodes[name]
	if !ok {
		return topology.Node{}, topology.ErrNodeNotFound
	}
	return n, nil
}

func (s *stubTopo) BGPPeerCount(name string) int { return s.bgp[name] }

func TestSplitIntoBatches(t *testing.T) {
	nodes := []string{"a", "b", "c", "d", "e"}

	batches := splitIntoBatches(nodes, 2)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[2]) != 1 {
		t.Fatalf("unexpected batch sizes: %v", batches)
	}

	unbounded := splitIntoBatches(nodes, 0)
	if len(unbounded) != 1 || len(unbounded[0]) != 5 {
		t.Fatalf("expected one batch of 5 with limit 0, got %v", unbounded)
	}
}

func TestEnqueueRequestDispatchesPrepareToEveryNode(t *testing.T) {
	topo := newStubTopo()
	router := &recordingRouter{}
	c := NewController(router, topo, nil, testLogger())

	req := UpgradeRequest{
		ReqID:      "req-1",
		Action:     ActionPrepare,
		Nodes:      []string{"dn1", "dn2"},
		TimeoutSec: 60,
	}
	if err := c.EnqueueRequest(req); err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}

	if len(router.sent) != 2 {
		t.Fatalf("expected 2 dispatched envelopes, got %d", len(router.sent))
	}
	for _, env := range router.sent {
		if env.Type != bus.MsgUpgradeGroupReq {
			t.Fatalf("expected MsgUpgradeGroupReq, got %v", env.Type)
		}
	}
}

func TestBatchLimitSplitsDispatchAcrossRounds(t *testing.T) {
	topo := newStubTopo()
	router := &recordingRouter{}
	c := NewController(router, topo, nil, testLogger())

	req := UpgradeRequest{
		ReqID:      "req-2",
		Action:     ActionPrepare,
		Nodes:      []string{"dn1", "dn2", "dn3"},
		Limit:      2,
		TimeoutSec: 60,
	}
	if err := c.EnqueueRequest(req); err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}

	// Only the first batch (2 nodes) should have been dispatched; the third
	// node waits for the first batch to drain.
	if len(router.sent) != 2 {
		t.Fatalf("expected 2 dispatched envelopes in first batch, got %d", len(router.sent))
	}

	now := time.Now()
	c.onNodeReport("dn1", true, true, now)
	c.onNodeReport("dn2", true, true, now)

	if len(router.sent) != 3 {
		t.Fatalf("expected second batch (dn3) to dispatch after first batch drained, got %d envelopes", len(router.sent))
	}
}

func TestOnNodeReportFailureAbortsWithoutSkipFailure(t *testing.T) {
	topo := newStubTopo()
	router := &recordingRouter{}
	c := NewController(router, topo, nil, testLogger())

	req := UpgradeRequest{
		ReqID:      "req-3",
		Action:     ActionPrepare,
		Nodes:      []string{"dn1", "dn2"},
		Limit:      1,
		TimeoutSec: 60,
	}
	if err := c.EnqueueRequest(req); err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}
	if len(router.sent) != 1 {
		t.Fatalf("expected 1 dispatched envelope, got %d", len(router.sent))
	}

	c.onNodeReport("dn1", false, true, time.Now())

	if c.active != nil {
		t.Fatalf("expected request aborted and cleared, got active=%+v", c.active)
	}
	// dn2's batch must never have been dispatched since the request aborted.
	if len(router.sent) != 1 {
		t.Fatalf("expected no further dispatch after abort, got %d envelopes", len(router.sent))
	}
}

func TestOnNodeReportFailureWithSkipFailureContinues(t *testing.T) {
	topo := newStubTopo()
	router := &recordingRouter{}
	c := NewController(router, topo, nil, testLogger())

	req := UpgradeRequest{
		ReqID:       "req-4",
		Action:      ActionPrepare,
		Nodes:       []string{"dn1", "dn2"},
		Limit:       1,
		TimeoutSec:  60,
		SkipFailure: true,
	}
	if err := c.EnqueueRequest(req); err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}

	c.onNodeReport("dn1", false, true, time.Now())

	if len(router.sent) != 2 {
		t.Fatalf("expected second batch dispatched after skip-failure drop, got %d envelopes", len(router.sent))
	}
}

func TestCheckTimeoutAbortsWithoutSkipFailure(t *testing.T) {
	topo := newStubTopo()
	router := &recordingRouter{}
	c := NewController(router, topo, nil, testLogger())

	req := UpgradeRequest{
		ReqID:      "req-5",
		Action:     ActionPrepare,
		Nodes:      []string{"dn1"},
		TimeoutSec: 1,
	}
	if err := c.EnqueueRequest(req); err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}

	c.checkTimeout(time.Now().Add(2 * time.Second))

	if c.active != nil {
		t.Fatalf("expected batch timeout to abort the request, got active=%+v", c.active)
	}
}

func TestCommitSafetyPreconditionBlocksOnLinkDown(t *testing.T) {
	topo := newStubTopo()
	topo.nodes["pop1"] = topology.Node{Name: "pop1", PopNode: true}
	topo.links["pop1"] = []topology.Link{{Name: "link-dn1-pop1", ANode: "dn1", ZNode: "pop1", IsAlive: true}}
	topo.bgp["pop1"] = 2

	router := &recordingRouter{}
	c := NewController(router, topo, nil, testLogger())

	req := UpgradeRequest{
		ReqID:      "req-6",
		Action:     ActionCommit,
		Nodes:      []string{"pop1"},
		TimeoutSec: 60,
	}
	if err := c.EnqueueRequest(req); err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}
	if len(router.sent) != 1 {
		t.Fatalf("expected COMMIT dispatched once link/BGP safety holds, got %d envelopes", len(router.sent))
	}

	// Simulate the link dropping after batch init but before the (imaginary)
	// retry: safetyOK must now report false.
	topo.links["pop1"][0] = topology.Link{Name: "link-dn1-pop1", ANode: "dn1", ZNode: "pop1", IsAlive: false}
	if c.safetyOK(c.active.current) {
		t.Fatal("expected safetyOK to fail after snapshotted link went down")
	}
}

func TestCommitSafetyPreconditionBlocksOnBGPPeerDrop(t *testing.T) {
	topo := newStubTopo()
	topo.nodes["pop1"] = topology.Node{Name: "pop1", PopNode: true}
	topo.bgp["pop1"] = 2

	router := &recordingRouter{}
	c := NewController(router, topo, nil, testLogger())

	req := UpgradeRequest{
		ReqID:      "req-7",
		Action:     ActionCommit,
		Nodes:      []string{"pop1"},
		TimeoutSec: 60,
	}
	if err := c.EnqueueRequest(req); err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}

	topo.bgp["pop1"] = 1
	if c.safetyOK(c.active.current) {
		t.Fatal("expected safetyOK to fail after BGP peer count dropped")
	}
}
