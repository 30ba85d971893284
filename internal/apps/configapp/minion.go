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
	"sync"
	"time"

	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/configstore"
)

// kDelayedActionTime is the grace period before a REBOOT or
// RELOAD_FIRMWARE-triggered RESTART_MINION fires, so the current SET's ACK
// flushes to the caller first.
const kDelayedActionTime = 2 * time.Second

// ActionExecutor performs one resolved Action's side effect (restart a
// daemon, reload a resolver, reboot, ...). Kept as an interface so the
// minion binary can wire real process-control while tests substitute a
// recorder.
type ActionExecutor interface {
	Execute(action configstore.Action) error
}

// MinionConfigApp applies SetMinionConfigReq, diffs old vs new config, and
// executes the resulting action set in the order BuildExecutionPlan
// resolves, including the delayed REBOOT/RESTART_MINION follow-up.
type MinionConfigApp struct {
	bus.BaseApp
	router   bus.Router
	registry map[string][]configstore.Action
	executor ActionExecutor
	logger   *slog.Logger

	mu         sync.Mutex
	currentCfg configstore.JSONObject
	knownPeers []string
	lastMd5    string
}

// NewMinionConfigApp constructs the minion-side ConfigApp.
func NewMinionConfigApp(nodeID string, router bus.Router, executor ActionExecutor, logger *slog.Logger) *MinionConfigApp {
	return &MinionConfigApp{
		BaseApp:    bus.NewBaseApp(bus.AppConfig, nodeID),
		router:     router,
		registry:   configstore.DefaultPathRegistry,
		executor:   executor,
		logger:     logger,
		currentCfg: configstore.JSONObject{},
	}
}

// SetKnownPeers tells the app which radio MACs to target when a changed
// path has no per-MAC override scope.
func (m *MinionConfigApp) SetKnownPeers(peers []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.knownPeers = append([]string(nil), peers...)
}

func (m *MinionConfigApp) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-m.Inbox():
			if env.Type != bus.MsgSetMinionConfigReq {
				continue
			}
			if err := m.applyConfig(env.Payload); err != nil {
				m.logger.Warn("apply config failed", "error", err)
			}
		}
	}
}

func (m *MinionConfigApp) applyConfig(payload []byte) error {
	var newCfg configstore.JSONObject
	if err := json.Unmarshal(payload, &newCfg); err != nil {
		return fmt.Errorf("decode new config: %w", err)
	}

	m.mu.Lock()
	oldCfg := m.currentCfg
	peers := append([]string(nil), m.knownPeers...)
	m.mu.Unlock()

	changed := configstore.Diff(oldCfg, newCfg)
	actions := configstore.ActionsForPaths(changed, m.registry)
	plan := configstore.BuildExecutionPlan(actions)

	for _, a := range plan.Immediate {
		if a == configstore.ActionSetFwParams || a == configstore.ActionSetFwParamsSyncOrReloadFirmware {
			if err := m.patchFirmwareParams(changed, newCfg, peers); err != nil {
				m.logger.Warn("firmware param patch failed, escalating to reload", "error", err)
				if err := m.executor.Execute(configstore.ActionReloadFirmware); err != nil {
					m.logger.Warn("action execution failed", "action", configstore.ActionReloadFirmware, "error", err)
				}
			}
			continue
		}
		if err := m.executor.Execute(a); err != nil {
			m.logger.Warn("action execution failed", "action", a, "error", err)
		}
	}

	if plan.Delayed != nil {
		delayed := *plan.Delayed
		time.AfterFunc(kDelayedActionTime, func() {
			if err := m.executor.Execute(delayed); err != nil {
				m.logger.Warn("delayed action execution failed", "action", delayed, "error", err)
			}
		})
	}

	m.mu.Lock()
	m.currentCfg = newCfg
	m.mu.Unlock()

	configMd5, err := configstore.CanonicalMd5(newCfg)
	if err != nil {
		return fmt.Errorf("canonicalize applied config: %w", err)
	}
	m.mu.Lock()
	m.lastMd5 = configMd5
	m.mu.Unlock()
	m.logger.Info("config applied", "config_md5", configMd5, "actions", actions)
	return nil
}

// LastAppliedMd5 returns the canonical MD5 of the most recently applied
// config, the value StatusApp's heartbeat reports to the controller for
// §4.3 reconciliation. Safe to call from any goroutine.
func (m *MinionConfigApp) LastAppliedMd5() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMd5
}

// patchFirmwareParams builds and dispatches runtime firmware parameter
// patches for changed keys, without a restart. It passes an empty queued
// count and bwgdIdx 0, so patches apply immediately and no pool overflow is
// reported; an error here comes from building, encoding or sending.
func (m *MinionConfigApp) patchFirmwareParams(changed []string, newCfg configstore.JSONObject, peers []string) error {
	built, err := BuildFwConfigParams(changed, newCfg, peers, map[string]int{}, 0)
	if err != nil {
		return err
	}
	for radioMac, fc := range built {
		for _, pt := range fc.EncodePassThrus(0) {
			payload, err := json.Marshal(pt)
			if err != nil {
				return fmt.Errorf("marshal passthru for %s: %w", radioMac, err)
			}
			if err := m.Send(m.router, m.NodeID, bus.AppDriver, bus.MsgSetFwParams, payload); err != nil {
				return fmt.Errorf("send fw params to driver for %s: %w", radioMac, err)
			}
		}
	}
	return nil
}
