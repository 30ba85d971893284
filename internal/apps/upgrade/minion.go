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
	"log/slog"
	"strings"

	"github.com/tgnet/e2e/internal/bus"
)

// Flasher writes a verified image to the inactive partition (Flash) and
// boots into it (Boot); both report only success or an error. Abstracted so
// tests substitute a recorder instead of touching real block devices.
type Flasher struct {
	Flash func(image []byte, meta ImageMeta) error
	Boot  func() error
}

// Minion is the minion-side UpgradeApp: fetches, verifies, and flashes
// images on PREPARE, reboots on COMMIT, and reports terminal state back
// to the controller.
type Minion struct {
	bus.BaseApp
	router  bus.Router
	flasher Flasher
	logger  *slog.Logger

	flashedMD5 string
}

// NewMinion constructs the minion-side UpgradeApp.
func NewMinion(nodeID string, router bus.Router, flasher Flasher, logger *slog.Logger) *Minion {
	return &Minion{
		BaseApp: bus.NewBaseApp(bus.AppUpgrade, nodeID),
		router:  router,
		flasher: flasher,
		logger:  logger,
	}
}

func (m *Minion) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-m.Inbox():
			if env.Type != bus.MsgUpgradeGroupReq {
				continue
			}
			m.handle(ctx, env)
		}
	}
}

type groupReq struct {
	ReqID  string        `json:"reqId"`
	Action UpgradeAction `json:"action"`
	Image  ImageRef      `json:"image"`
}

func (m *Minion) handle(ctx context.Context, env bus.Envelope) {
	var req groupReq
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		m.logger.Warn("decode upgrade group request failed", "error", err)
		return
	}
	switch req.Action {
	case ActionPrepare:
		m.prepare(ctx, req)
	case ActionCommit:
		m.commit(req)
	case ActionReset:
		m.reportTerminal(req.ReqID, true)
	case ActionFull:
		m.prepare(ctx, req)
		m.commit(req)
	}
}

// prepare fetches, verifies, and flashes the image, with idempotent
// handling of a duplicate PREPARE for an already-flashed MD5 per
// spec.md §4.5.
func (m *Minion) prepare(ctx context.Context, req groupReq) {
	if req.Image.ExpectedMD5 != "" && req.Image.ExpectedMD5 == m.flashedMD5 {
		m.reportTerminal(req.ReqID, true)
		return
	}

	src := NewHTTPImageSource(req.Image.URL, nil)
	body, err := src.Fetch(ctx)
	if err != nil {
		m.logger.Warn("upgrade image fetch failed", "error", err)
		m.reportTerminal(req.ReqID, false)
		return
	}
	defer body.Close()

	meta, err := DecodeAndVerify(body, strings.HasSuffix(req.Image.URL, ".xz"), req.Image.ExpectedMD5)
	if err != nil {
		m.logger.Warn("upgrade image verification failed", "error", err)
		m.reportTerminal(req.ReqID, false)
		return
	}

	if err := m.flasher.Flash(nil, meta); err != nil {
		m.logger.Warn("upgrade image flash failed", "error", err)
		m.reportTerminal(req.ReqID, false)
		return
	}
	m.flashedMD5 = meta.MD5
	m.reportTerminal(req.ReqID, true)
}

// commit reboots into the freshly flashed partition. The controller is
// expected to observe the node rebooting to the target version via a
// subsequent StatusReport rather than a synchronous response here.
func (m *Minion) commit(req groupReq) {
	if err := m.flasher.Boot(); err != nil {
		m.logger.Warn("upgrade commit boot failed", "error", err)
		m.reportTerminal(req.ReqID, false)
		return
	}
}

func (m *Minion) reportTerminal(reqID string, success bool) {
	payload, err := json.Marshal(struct {
		ReqID    string `json:"reqId"`
		NodeName string `json:"nodeName"`
		Success  bool   `json:"success"`
		Terminal bool   `json:"terminal"`
	}{reqID, m.NodeID, success, true})
	if err != nil {
		m.logger.Warn("marshal upgrade state report failed", "error", err)
		return
	}
	if err := m.Send(m.router, bus.ControllerNodeID, bus.AppUpgrade, bus.MsgUpgradeStateReport, payload); err != nil {
		m.logger.Warn("send upgrade state report failed", "error", err)
	}
}
