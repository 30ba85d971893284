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

package configapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/configstore"
	"github.com/tgnet/e2e/internal/topology"
)

// ControllerConfigApp composes and distributes effective config per node:
// on every StatusReport, if the node's reported configMd5 doesn't match
// the locally computed one, it resends SetMinionConfigReq.
type ControllerConfigApp struct {
	bus.BaseApp
	router bus.Router
	topo   *topology.TopologyWrapper
	helper *configstore.ConfigHelper
	logger *slog.Logger

	nodeVersions map[string]configstore.NodeVersions
}

// NewControllerConfigApp constructs the controller-side ConfigApp.
func NewControllerConfigApp(router bus.Router, topo *topology.TopologyWrapper, helper *configstore.ConfigHelper, logger *slog.Logger) *ControllerConfigApp {
	return &ControllerConfigApp{
		BaseApp:      bus.NewBaseApp(bus.AppConfig, bus.ControllerNodeID),
		router:       router,
		topo:         topo,
		helper:       helper,
		logger:       logger,
		nodeVersions: make(map[string]configstore.NodeVersions),
	}
}

// RegisterNodeVersions tells the app which software/firmware/hardware
// identity to resolve layers for, for the given node (normally populated
// from StatusApp / TopologyApp on first contact).
func (c *ControllerConfigApp) RegisterNodeVersions(v configstore.NodeVersions) {
	c.nodeVersions[v.NodeName] = v
}

// Run drains the inbox, handling StatusReport-derived reconciliation
// requests (posted by StatusApp as a MsgStatusReport envelope carrying the
// reported configMd5 as payload) by resending config on mismatch.
func (c *ControllerConfigApp) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-c.Inbox():
			if err := c.handle(env); err != nil {
				c.logger.Warn("config app handling failed", "error", err)
			}
		}
	}
}

// reconcileRequest is the payload StatusApp posts after decoding a
// StatusReport's configMd5 field.
type reconcileRequest struct {
	NodeName        string `json:"nodeName"`
	ReportedConfigMd5 string `json:"reportedConfigMd5"`
}

func (c *ControllerConfigApp) handle(env bus.Envelope) error {
	if env.Type != bus.MsgStatusReport {
		return nil
	}
	var req reconcileRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return fmt.Errorf("decode reconcile request: %w", err)
	}
	return c.Reconcile(req.NodeName, req.ReportedConfigMd5)
}

// Reconcile resends the effective config to nodeName if reportedMd5
// doesn't match the currently computed configMd5.
func (c *ControllerConfigApp) Reconcile(nodeName, reportedMd5 string) error {
	v, ok := c.nodeVersions[nodeName]
	if !ok {
		v = configstore.NodeVersions{NodeName: nodeName}
	}
	effective, md5sum, err := c.helper.EffectiveConfig(v)
	if err != nil {
		return fmt.Errorf("compute effective config for %s: %w", nodeName, err)
	}
	if md5sum == reportedMd5 {
		return nil
	}

	payload, err := json.Marshal(effective)
	if err != nil {
		return fmt.Errorf("marshal effective config for %s: %w", nodeName, err)
	}
	c.logger.Info("config mismatch detected, resending", "node", nodeName, "want_md5", md5sum, "have_md5", reportedMd5)
	return c.Send(c.router, nodeName, bus.AppConfig, bus.MsgSetMinionConfigReq, payload)
}

// PeriodicReconcile is intended to be scheduled on a ticker to sweep every
// known node, covering nodes whose most recent StatusReport already
// matched but whose layers changed underneath them (e.g. a base-version
// rollout).
func (c *ControllerConfigApp) PeriodicReconcile(lastKnownMd5 map[string]string) {
	for nodeName, reportedMd5 := range lastKnownMd5 {
		if err := c.Reconcile(nodeName, reportedMd5); err != nil {
			c.logger.Warn("periodic reconcile failed", "node", nodeName, "error", err)
		}
	}
}

