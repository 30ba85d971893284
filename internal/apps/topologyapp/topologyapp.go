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

// Package topologyapp runs the controller-side timers that keep the
// topology graph, node liveness, and routing adjacency view current.
package topologyapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/topology"
)

// Params are the four timer intervals from spec.md §4.3 plus the
// NodeAliveTimeout staleness threshold, all with their documented defaults.
type Params struct {
	StatusReconcileInterval time.Duration
	InfoSyncInterval        time.Duration
	RoutingAdjDumpInterval  time.Duration
	SnapshotInterval        time.Duration
	NodeAliveTimeout        time.Duration
}

// DefaultParams mirrors spec.md's defaults.
func DefaultParams() Params {
	return Params{
		StatusReconcileInterval: 5 * time.Second,
		InfoSyncInterval:        300 * time.Second,
		RoutingAdjDumpInterval:  30 * time.Second,
		SnapshotInterval:        30 * time.Second,
		NodeAliveTimeout:        30 * time.Second,
	}
}

// RoutingAdjacencyFetcher polls one minion's routing daemon state. It is
// satisfied by a kv.KV-backed adapter (see routingkv.go); kept narrow here
// so TopologyApp doesn't need the full kv.KV surface.
type RoutingAdjacencyFetcher interface {
	FetchAdjacencies(ctx context.Context, nodeName string) ([]string, error)
}

// TopologyApp owns the four periodic timers plus the StatusReport handler
// that keeps Node.Status and LastSeen current.
type TopologyApp struct {
	bus.BaseApp
	router   bus.Router
	topo     *topology.TopologyWrapper
	snapshot *topology.SnapshotStore
	routing  RoutingAdjacencyFetcher
	params   Params
	logger   *slog.Logger

	lastReportedMd5 map[string]string
}

// NewTopologyApp constructs the controller-side TopologyApp.
func NewTopologyApp(router bus.Router, topo *topology.TopologyWrapper, snapshot *topology.SnapshotStore, routing RoutingAdjacencyFetcher, params Params, logger *slog.Logger) *TopologyApp {
	return &TopologyApp{
		BaseApp:         bus.NewBaseApp(bus.AppTopology, bus.ControllerNodeID),
		router:          router,
		topo:            topo,
		snapshot:        snapshot,
		routing:         routing,
		params:          params,
		logger:          logger,
		lastReportedMd5: make(map[string]string),
	}
}

// Run arms the four timers and drains the inbox for StatusReport envelopes.
func (a *TopologyApp) Run(ctx context.Context) error {
	statusTicker := time.NewTicker(a.params.StatusReconcileInterval)
	infoSyncTicker := time.NewTicker(a.params.InfoSyncInterval)
	routingTicker := time.NewTicker(a.params.RoutingAdjDumpInterval)
	snapshotTicker := time.NewTicker(a.params.SnapshotInterval)
	defer statusTicker.Stop()
	defer infoSyncTicker.Stop()
	defer routingTicker.Stop()
	defer snapshotTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-statusTicker.C:
			a.reconcileStatus(time.Now())
		case <-infoSyncTicker.C:
			a.broadcastInfoSync()
		case <-routingTicker.C:
			a.pollRoutingAdjacencies(ctx)
		case <-snapshotTicker.C:
			if a.snapshot != nil {
				if err := a.snapshot.Capture(); err != nil {
					a.logger.Warn("topology snapshot failed", "error", err)
				}
			}
		case env := <-a.Inbox():
			if err := a.handle(env); err != nil {
				a.logger.Warn("topology app handling failed", "error", err)
			}
		}
	}
}

type statusReport struct {
	NodeName    string `json:"nodeName"`
	Timestamp   int64  `json:"timestamp"`
	SoftwareVer string `json:"softwareVer,omitempty"`
	ConfigMd5   string `json:"configMd5,omitempty"`
}

func (a *TopologyApp) handle(env bus.Envelope) error {
	if env.Type != bus.MsgStatusReport {
		return nil
	}
	var rep statusReport
	if err := json.Unmarshal(env.Payload, &rep); err != nil {
		return fmt.Errorf("decode status report: %w", err)
	}
	if rep.SoftwareVer != "" || rep.ConfigMd5 != "" {
		if err := a.topo.SetNodeVersions(rep.NodeName, rep.SoftwareVer, rep.ConfigMd5); err != nil {
			a.logger.Warn("set node versions failed", "node", rep.NodeName, "error", err)
		}
	}
	return a.topo.Touch(rep.NodeName, time.Now())
}

// reconcileStatus flips any node whose LastSeen is older than
// NodeAliveTimeout to offline.
func (a *TopologyApp) reconcileStatus(now time.Time) {
	for _, n := range a.topo.Nodes() {
		if n.Status == topology.NodeOffline {
			continue
		}
		if now.Sub(n.LastSeen) > a.params.NodeAliveTimeout {
			if err := a.topo.UpdateNodeStatus(n.Name, topology.NodeOffline); err != nil {
				a.logger.Warn("mark node offline failed", "node", n.Name, "error", err)
			}
		}
	}
}

// broadcastInfoSync pushes the full node/link set to every online node, so
// minion-side consumers (e.g. the OpenR client) stay in sync without
// waiting for an explicit pull.
func (a *TopologyApp) broadcastInfoSync() {
	payload, err := json.Marshal(struct {
		Nodes []topology.Node `json:"nodes"`
		Links []topology.Link `json:"links"`
	}{a.topo.Nodes(), a.topo.Links()})
	if err != nil {
		a.logger.Warn("marshal topology info sync failed", "error", err)
		return
	}
	for _, n := range a.topo.Nodes() {
		if n.Status == topology.NodeOffline {
			continue
		}
		if err := a.Send(a.router, n.Name, bus.AppTopology, bus.MsgTopologyInfoSync, payload); err != nil {
			a.logger.Warn("send topology info sync failed", "node", n.Name, "error", err)
		}
	}
}

// pollRoutingAdjacencies asks the routing fetcher for each online node's
// current adjacency set. Purely observational: no topology mutation, only
// logging today, pending a consumer (e.g. httpapi's topology view).
func (a *TopologyApp) pollRoutingAdjacencies(ctx context.Context) {
	if a.routing == nil {
		return
	}
	for _, n := range a.topo.Nodes() {
		if n.Status == topology.NodeOffline {
			continue
		}
		adj, err := a.routing.FetchAdjacencies(ctx, n.Name)
		if err != nil {
			a.logger.Warn("fetch routing adjacencies failed", "node", n.Name, "error", err)
			continue
		}
		a.logger.Debug("routing adjacencies", "node", n.Name, "adjacencies", adj)
	}
}
