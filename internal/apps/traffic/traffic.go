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

// Package traffic is the minion-side TrafficApp: it spawns iperf/ping
// subprocesses per spec.md §5 ("the fork+exec runs in a dedicated worker
// thread; only the completion hand-off crosses into the app loop"),
// mirroring the teacher's call-tracker pattern of a mutex-guarded map
// tracking in-flight work keyed by request id.
package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tgnet/e2e/internal/bus"
)

// Req is the TrafficReq payload ScanApp/operator tooling sends to request
// an iperf or ping run against Target.
type Req struct {
	ReqID       string   `json:"reqId"`
	Tool        string   `json:"tool"` // "iperf" or "ping"
	Target      string   `json:"target"`
	DurationSec int      `json:"durationSec"`
	Args        []string `json:"args,omitempty"`
}

// Resp is the TrafficResp payload posted back once the subprocess exits
// (or is cancelled).
type Resp struct {
	ReqID   string `json:"reqId"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Runner executes one traffic tool invocation and returns its captured
// output, or an error if it failed to start or exited non-zero.
// Abstracted so tests substitute a recorder instead of forking real
// iperf/ping binaries.
type Runner interface {
	Run(ctx context.Context, req Req) (output string, err error)
}

// MinionApp is the minion-side TrafficApp.
type MinionApp struct {
	bus.BaseApp
	router bus.Router
	runner Runner
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
}

// NewMinionApp constructs the minion-side TrafficApp.
func NewMinionApp(nodeID string, router bus.Router, runner Runner, logger *slog.Logger) *MinionApp {
	return &MinionApp{
		BaseApp:  bus.NewBaseApp(bus.AppTraffic, nodeID),
		router:   router,
		runner:   runner,
		logger:   logger,
		inFlight: make(map[string]context.CancelFunc),
	}
}

// Run drains the inbox for TrafficReq envelopes, spawning one worker
// goroutine per request; the app loop itself never blocks on a
// subprocess.
func (m *MinionApp) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			m.cancelAll()
			return ctx.Err()
		case env := <-m.Inbox():
			if env.Type != bus.MsgTrafficReq {
				continue
			}
			m.dispatch(ctx, env)
		}
	}
}

func (m *MinionApp) dispatch(parent context.Context, env bus.Envelope) {
	var req Req
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		m.logger.Warn("decode traffic req failed", "error", err)
		return
	}
	if req.ReqID == "" {
		m.logger.Warn("traffic req missing reqId, dropping")
		return
	}

	m.mu.Lock()
	if _, dup := m.inFlight[req.ReqID]; dup {
		m.mu.Unlock()
		m.logger.Warn("duplicate traffic req ignored", "req_id", req.ReqID)
		return
	}
	runCtx := parent
	var cancel context.CancelFunc
	if req.DurationSec > 0 {
		runCtx, cancel = context.WithTimeout(parent, time.Duration(req.DurationSec)*time.Second+5*time.Second)
	} else {
		runCtx, cancel = context.WithCancel(parent)
	}
	m.inFlight[req.ReqID] = cancel
	m.mu.Unlock()

	go m.runWorker(runCtx, cancel, req)
}

// runWorker is the dedicated worker goroutine: the subprocess fork+exec
// happens here, off the app loop, and only the finished result crosses
// back over resultCh-equivalent (a direct Send, since the app loop is
// otherwise idle waiting on the same Inbox a completion could also use).
func (m *MinionApp) runWorker(ctx context.Context, cancel context.CancelFunc, req Req) {
	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.inFlight, req.ReqID)
		m.mu.Unlock()
	}()

	output, err := m.runner.Run(ctx, req)
	resp := Resp{ReqID: req.ReqID, Success: err == nil, Output: output}
	if err != nil {
		resp.Error = err.Error()
	}

	payload, merr := json.Marshal(resp)
	if merr != nil {
		m.logger.Warn("marshal traffic resp failed", "error", merr)
		return
	}
	if serr := m.Send(m.router, bus.ControllerNodeID, bus.AppTraffic, bus.MsgTrafficResp, payload); serr != nil {
		m.logger.Warn("send traffic resp failed", "req_id", req.ReqID, "error", serr)
	}
}

func (m *MinionApp) cancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.inFlight {
		cancel()
		delete(m.inFlight, id)
	}
}

// InFlightCount reports how many traffic runs are currently outstanding,
// for tests and operational introspection.
func (m *MinionApp) InFlightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}

// ErrUnsupportedTool is returned by ExecRunner for a tool it doesn't know
// how to invoke.
var ErrUnsupportedTool = fmt.Errorf("unsupported traffic tool")
