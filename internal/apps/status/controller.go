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

// Package status is the controller's StatusApp: the sole front door for
// minion StatusReport heartbeats. It tracks per-node liveness/version,
// acks the sender, and forwards derived notifications to TopologyApp (for
// LastSeen/Status bookkeeping) and ConfigApp (for configMd5 reconciliation)
// so those apps stay decoupled from the wire format minions actually send.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tgnet/e2e/internal/bus"
)

// Report is the heartbeat payload a minion's StatusApp sends on every
// StatusReportInterval tick, per spec.md §4.3/§2.
type Report struct {
	NodeName    string `json:"nodeName"`
	Timestamp   int64  `json:"timestamp"`
	SoftwareVer string `json:"softwareVer,omitempty"`
	ConfigMd5   string `json:"configMd5,omitempty"`
	Full        bool   `json:"full,omitempty"`
}

// topologyTouch is the trimmed notification ControllerApp forwards to
// TopologyApp, matching the payload shape topologyapp.TopologyApp.handle
// already expects from a MsgStatusReport envelope.
type topologyTouch struct {
	NodeName    string `json:"nodeName"`
	Timestamp   int64  `json:"timestamp"`
	SoftwareVer string `json:"softwareVer,omitempty"`
	ConfigMd5   string `json:"configMd5,omitempty"`
}

// configReconcile is the payload ConfigApp's controller side expects,
// carrying the reported configMd5 for mismatch detection.
type configReconcile struct {
	NodeName          string `json:"nodeName"`
	ReportedConfigMd5 string `json:"reportedConfigMd5"`
}

// nodeLiveness is ControllerApp's own bookkeeping, independent of
// TopologyApp's copy: it exists so liveness/version can be inspected (e.g.
// by an httpapi handler) without taking the topology lock.
type nodeLiveness struct {
	lastSeen    time.Time
	softwareVer string
	configMd5   string
}

// ControllerApp is the controller-side StatusApp: the mandatory heartbeat
// sink named in spec.md §1(b)/§2/§4.3.
type ControllerApp struct {
	bus.BaseApp
	router bus.Router
	logger *slog.Logger

	mu    sync.RWMutex
	nodes map[string]nodeLiveness
}

// NewControllerApp constructs the controller-side StatusApp.
func NewControllerApp(router bus.Router, logger *slog.Logger) *ControllerApp {
	return &ControllerApp{
		BaseApp: bus.NewBaseApp(bus.AppStatus, bus.ControllerNodeID),
		router:  router,
		logger:  logger,
		nodes:   make(map[string]nodeLiveness),
	}
}

// Run drains the inbox for StatusReport heartbeats.
func (c *ControllerApp) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-c.Inbox():
			if err := c.handle(env); err != nil {
				c.logger.Warn("status app handling failed", "error", err)
			}
		}
	}
}

func (c *ControllerApp) handle(env bus.Envelope) error {
	if env.Type != bus.MsgStatusReport {
		return nil
	}
	var rep Report
	if err := json.Unmarshal(env.Payload, &rep); err != nil {
		return fmt.Errorf("decode status report: %w", err)
	}
	if rep.NodeName == "" {
		return fmt.Errorf("status report missing nodeName")
	}

	c.mu.Lock()
	c.nodes[rep.NodeName] = nodeLiveness{
		lastSeen:    time.Now(),
		softwareVer: rep.SoftwareVer,
		configMd5:   rep.ConfigMd5,
	}
	c.mu.Unlock()

	if err := c.forwardToTopology(rep); err != nil {
		c.logger.Warn("forward status report to topology app failed", "node", rep.NodeName, "error", err)
	}
	if err := c.forwardToConfig(rep); err != nil {
		c.logger.Warn("forward status report to config app failed", "node", rep.NodeName, "error", err)
	}
	return c.ack(rep.NodeName)
}

func (c *ControllerApp) forwardToTopology(rep Report) error {
	payload, err := json.Marshal(topologyTouch{
		NodeName:    rep.NodeName,
		Timestamp:   rep.Timestamp,
		SoftwareVer: rep.SoftwareVer,
		ConfigMd5:   rep.ConfigMd5,
	})
	if err != nil {
		return fmt.Errorf("marshal topology touch: %w", err)
	}
	return c.Send(c.router, bus.ControllerNodeID, bus.AppTopology, bus.MsgStatusReport, payload)
}

func (c *ControllerApp) forwardToConfig(rep Report) error {
	payload, err := json.Marshal(configReconcile{NodeName: rep.NodeName, ReportedConfigMd5: rep.ConfigMd5})
	if err != nil {
		return fmt.Errorf("marshal config reconcile: %w", err)
	}
	return c.Send(c.router, bus.ControllerNodeID, bus.AppConfig, bus.MsgStatusReport, payload)
}

func (c *ControllerApp) ack(nodeName string) error {
	ack, err := json.Marshal(struct {
		Success bool `json:"success"`
	}{true})
	if err != nil {
		return fmt.Errorf("marshal ack: %w", err)
	}
	return c.Send(c.router, nodeName, bus.AppStatus, bus.MsgE2EAck, ack)
}

// LastSeen returns the last heartbeat time recorded for name, and whether
// any heartbeat has ever been recorded.
func (c *ControllerApp) LastSeen(name string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[name]
	return n.lastSeen, ok
}

// Versions returns the last self-reported software version and config MD5
// for name.
func (c *ControllerApp) Versions(name string) (softwareVer, configMd5 string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.nodes[name]
	return n.softwareVer, n.configMd5
}
