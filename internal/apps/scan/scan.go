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

// Package scan is ScanApp: a boundary-only bus client per spec.md §4.6.
// It assigns a monotonic scanId, asks SchedulerApp's Arbiter for a future
// BWGD slot, dispatches a ScanReq to every participating radio, and
// aggregates ScanResp frames keyed by (radioMac, token) until every
// participant reports complete or a per-scan timer fires.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tgnet/e2e/internal/apps/scheduler"
	"github.com/tgnet/e2e/internal/bus"
)

// Req is the ScanReq payload dispatched to each participating node.
type Req struct {
	ScanID    uint64   `json:"scanId"`
	Token     string   `json:"token"`
	ScanType  string   `json:"scanType"`
	BwgdIdx   int64    `json:"bwgdIdx"`
	RadioMacs []string `json:"radioMacs"`
}

// Resp is the ScanResp payload a minion posts back per participating
// radio; Complete marks the scan-complete marker for that radioMac.
type Resp struct {
	ScanID       uint64            `json:"scanId"`
	Token        string            `json:"token"`
	RadioMac     string            `json:"radioMac"`
	Complete     bool              `json:"complete"`
	TopoResponse *TopoResponderInfo `json:"topoResponse,omitempty"`
}

// TopoResponderInfo is one responder's merged topology-scan measurement.
// A single scan may arrive as several partial frames for the same
// responder (one per beam index swept); Merge folds a new frame's metrics
// in without discarding earlier ones.
type TopoResponderInfo struct {
	ResponderMac string             `json:"responderMac"`
	BestTxAngle  float64            `json:"bestTxAngle"`
	BestRxAngle  float64            `json:"bestRxAngle"`
	Metrics      map[string]float64 `json:"metrics"`
}

// Merge folds other's fields into r, keeping the strongest signal
// (largest SNR-ish metric values are assumed better) and the union of
// per-beam metrics.
func (r *TopoResponderInfo) Merge(other TopoResponderInfo) {
	if r.Metrics == nil {
		r.Metrics = make(map[string]float64)
	}
	for k, v := range other.Metrics {
		if existing, ok := r.Metrics[k]; !ok || v > existing {
			r.Metrics[k] = v
		}
	}
	if other.BestTxAngle != 0 {
		r.BestTxAngle = other.BestTxAngle
	}
	if other.BestRxAngle != 0 {
		r.BestRxAngle = other.BestRxAngle
	}
}

// pendingScan is the controller's in-flight aggregation state for one
// scanId.
type pendingScan struct {
	req        Req
	responders map[string]*TopoResponderInfo // keyed by radioMac
	complete   map[string]bool               // radioMac -> scan-complete marker seen
	deadline   time.Time
}

func (p *pendingScan) allComplete() bool {
	for _, mac := range p.req.RadioMacs {
		if !p.complete[mac] {
			return false
		}
	}
	return true
}

// App is the controller-side ScanApp.
type App struct {
	bus.BaseApp
	router  bus.Router
	arbiter *scheduler.Arbiter
	timeout time.Duration
	logger  *slog.Logger

	nextScanID uint64
	pending    map[uint64]*pendingScan
	completed  map[uint64]map[string]*TopoResponderInfo
}

// New constructs the controller-side ScanApp. timeout bounds how long an
// incomplete scan is kept pending before it is abandoned.
func New(router bus.Router, arbiter *scheduler.Arbiter, timeout time.Duration, logger *slog.Logger) *App {
	return &App{
		BaseApp: bus.NewBaseApp(bus.AppScan, bus.ControllerNodeID),
		router:  router,
		arbiter: arbiter,
		timeout: timeout,
		logger:    logger,
		pending:   make(map[uint64]*pendingScan),
		completed: make(map[uint64]map[string]*TopoResponderInfo),
	}
}

// Run drains the inbox for ScanResp frames and sweeps timed-out scans.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.timeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			a.sweepTimedOut(now)
		case env := <-a.Inbox():
			if env.Type != bus.MsgScanResp {
				continue
			}
			if err := a.handleResp(env); err != nil {
				a.logger.Warn("scan app handling failed", "error", err)
			}
		}
	}
}

// StartScan assigns a scanId, reserves a BWGD slot, and dispatches ScanReq
// to every node in nodeAddrs (the node name used to address the bus,
// distinct from the radioMacs carried in the payload).
func (a *App) StartScan(scanType string, nodeAddrs []string, radioMacs []string, now time.Time, leadTime time.Duration) (uint64, error) {
	a.nextScanID++
	scanID := a.nextScanID

	req := Req{
		ScanID:    scanID,
		Token:     fmt.Sprintf("scan-%d", scanID),
		ScanType:  scanType,
		BwgdIdx:   a.arbiter.Reserve(now, leadTime),
		RadioMacs: radioMacs,
	}
	a.pending[scanID] = &pendingScan{
		req:        req,
		responders: make(map[string]*TopoResponderInfo),
		complete:   make(map[string]bool),
		deadline:   now.Add(a.timeout),
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal scan req: %w", err)
	}
	for _, node := range nodeAddrs {
		if err := a.Send(a.router, node, bus.AppScan, bus.MsgScanReq, payload); err != nil {
			a.logger.Warn("dispatch scan req failed", "node", node, "error", err)
		}
	}
	return scanID, nil
}

func (a *App) handleResp(env bus.Envelope) error {
	var resp Resp
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return fmt.Errorf("decode scan resp: %w", err)
	}
	p, ok := a.pending[resp.ScanID]
	if !ok || p.req.Token != resp.Token {
		a.logger.Warn("scan resp for unknown or stale scan", "scan_id", resp.ScanID, "token", resp.Token)
		return nil
	}

	if resp.TopoResponse != nil {
		existing, ok := p.responders[resp.RadioMac]
		if !ok {
			cp := *resp.TopoResponse
			p.responders[resp.RadioMac] = &cp
		} else {
			existing.Merge(*resp.TopoResponse)
		}
	}
	if resp.Complete {
		p.complete[resp.RadioMac] = true
	}

	if p.allComplete() {
		a.completed[resp.ScanID] = p.responders
		delete(a.pending, resp.ScanID)
	}
	return nil
}

func (a *App) sweepTimedOut(now time.Time) {
	for id, p := range a.pending {
		if now.After(p.deadline) {
			a.logger.Warn("scan timed out, abandoning", "scan_id", id, "reported", len(p.complete), "expected", len(p.req.RadioMacs))
			a.completed[id] = p.responders
			delete(a.pending, id)
		}
	}
}

// Result returns the merged responder set for scanId, whether it is still
// in flight (pending), completed, or timed out, and whether scanId is
// known at all.
func (a *App) Result(scanID uint64) (responders map[string]*TopoResponderInfo, ok bool) {
	if p, ok := a.pending[scanID]; ok {
		return p.responders, true
	}
	r, ok := a.completed[scanID]
	return r, ok
}
