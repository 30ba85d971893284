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

package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tgnet/e2e/internal/bus"
)

// VersionSource supplies the minion's current self-reported identity. Kept
// narrow so MinionApp doesn't depend on configstore or the driver's full
// surface, mirroring configapp.ActionExecutor's shape.
type VersionSource interface {
	CurrentVersions() (softwareVer, configMd5 string)
}

// Params controls the minion's heartbeat cadence, per spec.md §4.3's
// StatusReportInterval / FullStatusReportInterval pair.
type Params struct {
	ReportInterval     time.Duration
	FullReportInterval time.Duration
}

// MinionApp is the minion-side StatusApp: sends a lightweight heartbeat
// every ReportInterval and a full one (identical payload today, flagged)
// every FullReportInterval, and tracks whether the controller is acking.
type MinionApp struct {
	bus.BaseApp
	router  bus.Router
	source  VersionSource
	params  Params
	logger  *slog.Logger

	lastAckUnixNano atomic.Int64
}

// NewMinionApp constructs the minion-side StatusApp.
func NewMinionApp(nodeID string, router bus.Router, source VersionSource, params Params, logger *slog.Logger) *MinionApp {
	return &MinionApp{
		BaseApp: bus.NewBaseApp(bus.AppStatus, nodeID),
		router:  router,
		source:  source,
		params:  params,
		logger:  logger,
	}
}

// Run arms the heartbeat ticker and drains the inbox for E2E acks.
func (m *MinionApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.params.ReportInterval)
	defer ticker.Stop()

	var lastFull time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			full := now.Sub(lastFull) >= m.params.FullReportInterval
			if full {
				lastFull = now
			}
			if err := m.sendReport(now, full); err != nil {
				m.logger.Warn("send status report failed", "error", err)
			}
		case env := <-m.Inbox():
			m.handle(env)
		}
	}
}

func (m *MinionApp) sendReport(now time.Time, full bool) error {
	softwareVer, configMd5 := "", ""
	if m.source != nil {
		softwareVer, configMd5 = m.source.CurrentVersions()
	}
	payload, err := json.Marshal(Report{
		NodeName:    m.NodeID,
		Timestamp:   now.Unix(),
		SoftwareVer: softwareVer,
		ConfigMd5:   configMd5,
		Full:        full,
	})
	if err != nil {
		return fmt.Errorf("marshal status report: %w", err)
	}
	return m.Send(m.router, bus.ControllerNodeID, bus.AppStatus, bus.MsgStatusReport, payload)
}

func (m *MinionApp) handle(env bus.Envelope) {
	if env.Type != bus.MsgE2EAck {
		return
	}
	m.lastAckUnixNano.Store(time.Now().UnixNano())
}

// LastAck returns the last time the controller acked a heartbeat, and
// whether any ack has ever been received.
func (m *MinionApp) LastAck() (time.Time, bool) {
	ns := m.lastAckUnixNano.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}
