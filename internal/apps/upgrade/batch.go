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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/topology"
)

// LinkAndBGPQuery is the narrow topology surface the batch safety
// precondition needs: link liveness and POP BGP peer counts.
type LinkAndBGPQuery interface {
	LinksOfNode(name string) []topology.Link
	Node(name string) (topology.Node, error)
	BGPPeerCount(name string) int
}

// activeRequest tracks one popped UpgradeRequest's progress through its
// ordered batches.
type activeRequest struct {
	req       UpgradeRequest
	batches   [][]string
	batchIdx  int
	current   *Batch
}

// Controller is the controller-side UpgradeApp: a FIFO request queue that
// decomposes into batches, dispatches PREPARE/COMMIT, and applies the
// per-batch safety precondition before COMMIT, per spec.md §4.5.
type Controller struct {
	bus.BaseApp
	router bus.Router
	topo   LinkAndBGPQuery
	store  *Store
	logger *slog.Logger

	pending []UpgradeRequest
	active  *activeRequest

	batchSnapshot atomic.Pointer[BatchSnapshot]
}

// NewController constructs the controller-side UpgradeApp.
func NewController(router bus.Router, topo LinkAndBGPQuery, store *Store, logger *slog.Logger) *Controller {
	return &Controller{
		BaseApp: bus.NewBaseApp(bus.AppUpgrade, bus.ControllerNodeID),
		router:  router,
		topo:    topo,
		store:   store,
		logger:  logger,
	}
}

// EnqueueRequest appends req to the FIFO queue and, if nothing is active,
// starts advancing immediately.
func (c *Controller) EnqueueRequest(req UpgradeRequest) error {
	if c.store != nil {
		if err := c.store.SaveRequest(req); err != nil {
			return fmt.Errorf("persist upgrade request: %w", err)
		}
	}
	c.pending = append(c.pending, req)
	if c.active == nil {
		c.advance(time.Now())
	}
	return nil
}

// Run drains the inbox for UpgradeStateReport and checks the active
// batch's deadline on a 1-second tick (fine enough granularity for
// timeoutSec-scale batch timers without a per-batch timer goroutine).
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.checkTimeout(now)
			c.publishSnapshot()
		case env := <-c.Inbox():
			if err := c.handle(env); err != nil {
				c.logger.Warn("upgrade controller handling failed", "error", err)
			}
			c.publishSnapshot()
		}
	}
}

// publishSnapshot refreshes the atomically-readable status snapshot
// ActiveBatchSummary serves to httpapi; Run is the sole writer, so this is
// the only place batchSnapshot is stored.
func (c *Controller) publishSnapshot() {
	if c.active == nil || c.active.current == nil {
		c.batchSnapshot.Store(nil)
		return
	}
	b := c.active.current
	done := 0
	for _, st := range b.nodeStates {
		if st == NodeStateCommitted || st == NodeStateFailed {
			done++
		}
	}
	c.batchSnapshot.Store(&BatchSnapshot{
		ReqID: c.active.req.ReqID,
		State: b.State,
		Nodes: append([]string(nil), b.Nodes...),
		Done:  done,
		Total: len(b.Nodes),
	})
}

// BatchSnapshot is the read-only view of the in-flight batch httpapi
// serves at /api/upgrade/status.
type BatchSnapshot struct {
	ReqID string
	State BatchState
	Nodes []string
	Done  int
	Total int
}

// ActiveBatchSummary reports the current batch snapshot, safe to call
// from any goroutine (e.g. an HTTP handler), unlike the rest of
// Controller's methods which are Run-goroutine-only.
func (c *Controller) ActiveBatchSummary() (BatchSnapshot, bool) {
	s := c.batchSnapshot.Load()
	if s == nil {
		return BatchSnapshot{}, false
	}
	return *s, true
}

type stateReport struct {
	NodeName string `json:"nodeName"`
	Success  bool   `json:"success"`
	Terminal bool   `json:"terminal"`
}

func (c *Controller) handle(env bus.Envelope) error {
	if env.Type != bus.MsgUpgradeStateReport {
		return nil
	}
	var rep stateReport
	if err := json.Unmarshal(env.Payload, &rep); err != nil {
		return fmt.Errorf("decode upgrade state report: %w", err)
	}
	c.onNodeReport(rep.NodeName, rep.Success, rep.Terminal, time.Now())
	return nil
}

// splitIntoBatches groups nodes into slices of at most limit (0 meaning
// unbounded, i.e. one batch).
func splitIntoBatches(nodes []string, limit int) [][]string {
	if limit <= 0 || limit >= len(nodes) {
		return [][]string{nodes}
	}
	var out [][]string
	for i := 0; i < len(nodes); i += limit {
		end := i + limit
		if end > len(nodes) {
			end = len(nodes)
		}
		out = append(out, nodes[i:end])
	}
	return out
}

// advance pops the next request (if none active) and initiates its first
// non-empty batch.
func (c *Controller) advance(now time.Time) {
	for c.active == nil {
		if len(c.pending) == 0 {
			return
		}
		req := c.pending[0]
		c.pending = c.pending[1:]
		c.active = &activeRequest{req: req, batches: splitIntoBatches(req.Nodes, req.Limit)}
		c.advanceBatch(now)
	}
}

// advanceBatch pops the next batch of the active request, filtering nodes
// already in the target state (idempotence), and initiates it. If every
// remaining batch is empty, the request completes and the queue advances.
func (c *Controller) advanceBatch(now time.Time) {
	a := c.active
	for a.batchIdx < len(a.batches) {
		nodes := c.filterAlreadyInTargetState(a.req, a.batches[a.batchIdx])
		a.batchIdx++
		if len(nodes) == 0 {
			continue
		}
		a.current = c.initiateBatch(a.req, nodes, now)
		return
	}
	c.active = nil
	c.advance(now)
}

// filterAlreadyInTargetState drops nodes whose current state already
// matches what this request would produce (duplicate-PREPARE idempotence
// lives at the minion; this is the controller-side analogue: don't
// re-dispatch to a node the controller already marked committed).
func (c *Controller) filterAlreadyInTargetState(req UpgradeRequest, nodes []string) []string {
	if c.store == nil {
		return nodes
	}
	var out []string
	for _, n := range nodes {
		if c.store.IsInTargetState(req.ReqID, n, req.Action) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (c *Controller) initiateBatch(req UpgradeRequest, nodes []string, now time.Time) *Batch {
	b := &Batch{
		Nodes:      nodes,
		State:      BatchInitiating,
		Deadline:   now.Add(time.Duration(req.TimeoutSec) * time.Second),
		nodeStates: make(map[string]NodeUpgradeState, len(nodes)),
	}
	if req.Action == ActionCommit {
		b.linkBase, b.bgpBase = c.snapshotSafety(nodes, req.SkipLinks)
	}
	for _, n := range nodes {
		b.nodeStates[n] = NodeStatePending
		if err := c.dispatch(n, req, b); err != nil {
			c.logger.Warn("upgrade dispatch failed", "node", n, "error", err)
			b.nodeStates[n] = NodeStateFailed
		}
	}
	b.State = BatchInFlight
	return b
}

func (c *Controller) snapshotSafety(nodes []string, skipLinks []string) ([]linkSnapshot, []bgpSnapshot) {
	skip := make(map[string]bool, len(skipLinks))
	for _, s := range skipLinks {
		skip[s] = true
	}
	var links []linkSnapshot
	var bgps []bgpSnapshot
	seen := make(map[string]bool)
	for _, n := range nodes {
		for _, l := range c.topo.LinksOfNode(n) {
			if skip[l.Name] || seen[l.Name] {
				continue
			}
			seen[l.Name] = true
			links = append(links, linkSnapshot{name: l.Name, alive: l.IsAlive})
		}
		if node, err := c.topo.Node(n); err == nil && node.PopNode {
			bgps = append(bgps, bgpSnapshot{node: n, peerCount: c.topo.BGPPeerCount(n)})
		}
	}
	return links, bgps
}

// safetyOK re-verifies the COMMIT precondition of spec.md §4.5: no
// snapshotted link has gone down, and no POP node has fewer BGP peers
// than at batch init.
func (c *Controller) safetyOK(b *Batch) bool {
	// Re-derive current link aliveness for each snapshotted link by
	// scanning the batch's nodes' current links (LinksOfNode is the only
	// surface LinkAndBGPQuery exposes).
	current := make(map[string]bool)
	for _, n := range b.Nodes {
		for _, l := range c.topo.LinksOfNode(n) {
			current[l.Name] = l.IsAlive
		}
	}
	for _, ls := range b.linkBase {
		if ls.alive {
			if alive, ok := current[ls.name]; ok && !alive {
				return false
			}
		}
	}
	for _, bs := range b.bgpBase {
		if c.topo.BGPPeerCount(bs.node) < bs.peerCount {
			return false
		}
	}
	return true
}

func (c *Controller) dispatch(nodeName string, req UpgradeRequest, b *Batch) error {
	if req.Action == ActionCommit && !c.safetyOK(b) {
		return fmt.Errorf("safety precondition failed for node %s", nodeName)
	}
	payload, err := json.Marshal(struct {
		ReqID  string        `json:"reqId"`
		Action UpgradeAction `json:"action"`
		Image  ImageRef      `json:"image"`
	}{req.ReqID, req.Action, req.Image})
	if err != nil {
		return fmt.Errorf("marshal upgrade group request: %w", err)
	}
	return c.Send(c.router, nodeName, bus.AppUpgrade, bus.MsgUpgradeGroupReq, payload)
}

// onNodeReport handles a minion's terminal success/failure report for a
// node in the active batch.
func (c *Controller) onNodeReport(nodeName string, success, terminal bool, now time.Time) {
	if c.active == nil || c.active.current == nil {
		return
	}
	b := c.active.current
	if _, tracked := b.nodeStates[nodeName]; !tracked {
		return
	}
	if !terminal {
		return
	}
	if success {
		b.nodeStates[nodeName] = NodeStateCommitted
		c.persistNodeState(nodeName, NodeStateCommitted)
		c.removeNodeFromBatch(nodeName)
	} else {
		b.nodeStates[nodeName] = NodeStateFailed
		c.persistNodeState(nodeName, NodeStateFailed)
		if c.active.req.SkipFailure {
			c.removeNodeFromBatch(nodeName)
		} else {
			c.abortRequest()
			c.advance(now)
			return
		}
	}
	c.maybeCompleteBatch(now)
}

func (c *Controller) persistNodeState(nodeName string, state NodeUpgradeState) {
	if c.store == nil {
		return
	}
	if err := c.store.RecordNodeState(c.active.req.ReqID, nodeName, c.active.req.Action, state); err != nil {
		c.logger.Warn("persist upgrade node state failed", "node", nodeName, "error", err)
	}
}

func (c *Controller) removeNodeFromBatch(nodeName string) {
	b := c.active.current
	out := b.Nodes[:0]
	for _, n := range b.Nodes {
		if n != nodeName {
			out = append(out, n)
		}
	}
	b.Nodes = out
}

func (c *Controller) maybeCompleteBatch(now time.Time) {
	if c.active == nil || c.active.current == nil {
		return
	}
	if len(c.active.current.Nodes) == 0 {
		c.active.current.State = BatchDone
		c.active.current = nil
		c.advanceBatch(now)
	}
}

// abortRequest marks the current batch aborted and clears the remaining
// (not-yet-initiated) batches of the active request, per spec.md §4.5
// "abort entire request, clear pending batches". It leaves c.active nil;
// callers call advance to move to the next queued request.
func (c *Controller) abortRequest() {
	if c.active == nil {
		return
	}
	c.active.current.State = BatchAborted
	c.active.current = nil
	c.active.batchIdx = len(c.active.batches)
	c.active = nil
}

// checkTimeout fails the active batch's still-pending nodes if its
// deadline has passed.
func (c *Controller) checkTimeout(now time.Time) {
	if c.active == nil || c.active.current == nil {
		return
	}
	b := c.active.current
	if now.Before(b.Deadline) {
		return
	}
	if c.active.req.SkipFailure {
		b.State = BatchDone
		c.active.current = nil
		c.advanceBatch(now)
		return
	}
	c.abortRequest()
	c.advance(now)
}
