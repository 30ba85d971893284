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

package ignition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/topology"
)

// The ignition counters are package-private; Collectors hands them to
// cmd/controller.go, which registers them with Prometheus.
var (
	dampenedAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "e2e_ignition_dampened_attempts_total",
		Help: "Ignition candidate attempts suppressed by dampening.",
	})
	dispatchedAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "e2e_ignition_dispatched_attempts_total",
		Help: "LINK_UP commands dispatched by IgnitionApp.",
	})
)

// Collectors returns the ignition package's Prometheus collectors for
// registration by the metrics server.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{dampenedAttempts, dispatchedAttempts}
}

// IgnitionApp is the controller-side beamforming scheduler: every
// LinkUpInterval it recomputes candidates and dispatches LINK_UP commands,
// subject to dampening and backup-CN-link policy.
type IgnitionApp struct {
	bus.BaseApp
	router  bus.Router
	topo    *topology.TopologyWrapper
	damp    *DampeningTracker
	params  Params
	logger  *slog.Logger
	enabled bool

	// roundRobinIdx advances per initiator node each pass, so a
	// persistently failing candidate link does not head-of-line block
	// the others.
	roundRobinIdx map[string]int

	// cnReachableSince tracks the earliest time each CN could have been
	// ignited, for the backupCnLinkInterval policy.
	cnReachableSince map[string]time.Time
}

// NewIgnitionApp constructs the controller-side IgnitionApp.
func NewIgnitionApp(router bus.Router, topo *topology.TopologyWrapper, params Params, logger *slog.Logger) *IgnitionApp {
	return &IgnitionApp{
		BaseApp:          bus.NewBaseApp(bus.AppIgnition, bus.ControllerNodeID),
		router:           router,
		topo:             topo,
		damp:             NewDampeningTracker(params),
		params:           params,
		logger:           logger,
		enabled:          true,
		roundRobinIdx:    make(map[string]int),
		cnReachableSince: make(map[string]time.Time),
	}
}

// SetEnabled toggles auto-ignition, the IgnitionParams global disable.
func (a *IgnitionApp) SetEnabled(enabled bool) { a.enabled = enabled }

// Run arms the LinkUpInterval timer and also drains the inbox for
// LinkStatusEvent / SetLinkStatusReq messages.
func (a *IgnitionApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.params.LinkUpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if a.enabled {
				a.RunPass(time.Now())
			}
		case env := <-a.Inbox():
			if err := a.handle(env); err != nil {
				a.logger.Warn("ignition app handling failed", "error", err)
			}
		}
	}
}

type linkStatusEvent struct {
	LinkName string `json:"linkName"`
	ANode    string `json:"aNode"`
	ZNode    string `json:"zNode"`
	RadioMac string `json:"radioMac"`
	Up       bool   `json:"up"`
}

func (a *IgnitionApp) handle(env bus.Envelope) error {
	switch env.Type {
	case bus.MsgLinkStatusEvent:
		var ev linkStatusEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return fmt.Errorf("decode link status event: %w", err)
		}
		if err := a.topo.SetLinkAlive(ev.ANode, ev.ZNode, ev.Up); err != nil {
			return fmt.Errorf("apply link status: %w", err)
		}
		if ev.Up {
			a.damp.RecordLinkUp(ev.LinkName, ev.RadioMac, time.Now())
		} else {
			a.damp.RecordLinkDown(ev.LinkName, ev.RadioMac)
		}
		return nil
	case bus.MsgSetLinkStatusReq:
		return a.handleManualSetLinkStatus(env)
	}
	return nil
}

// handleManualSetLinkStatus validates and, bypassing dampening, dispatches
// a manual ignition request: CN may not be initiator, both nodes must be
// reachable, and the link must exist.
func (a *IgnitionApp) handleManualSetLinkStatus(env bus.Envelope) error {
	var req struct {
		ANode string `json:"aNode"`
		ZNode string `json:"zNode"`
	}
	ackFail := func(msg string) error {
		ack, _ := json.Marshal(struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}{false, msg})
		return a.Send(a.router, bus.ControllerNodeID, env.SenderAppID, bus.MsgE2EAck, ack)
	}

	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return ackFail("malformed request")
	}
	aNode, err := a.topo.Node(req.ANode)
	if err != nil {
		return ackFail("initiator node not found")
	}
	if aNode.Type == topology.NodeTypeCN {
		return ackFail("client node may not initiate ignition")
	}
	zNode, err := a.topo.Node(req.ZNode)
	if err != nil {
		return ackFail("responder node not found")
	}
	if aNode.Status == topology.NodeOffline || zNode.Status == topology.NodeOffline {
		return ackFail("both nodes must be reachable")
	}
	if _, err := a.topo.Link(req.ANode, req.ZNode); err != nil {
		return ackFail("link does not exist")
	}

	dispatchedAttempts.Inc()
	return a.dispatchLinkUp(req.ANode, req.ZNode)
}

func (a *IgnitionApp) dispatchLinkUp(aNode, zNode string) error {
	linkName := topology.LinkName(aNode, zNode)
	payload, err := json.Marshal(struct {
		LinkName string `json:"linkName"`
		ANode    string `json:"aNode"`
		ZNode    string `json:"zNode"`
	}{linkName, aNode, zNode})
	if err != nil {
		return fmt.Errorf("marshal link up request: %w", err)
	}
	return a.Send(a.router, aNode, bus.AppIgnition, bus.MsgSetLinkStatusReq, payload)
}

// RunPass recomputes candidates and dispatches LINK_UP commands, per
// spec.md §4.2 steps 1-5.
func (a *IgnitionApp) RunPass(now time.Time) {
	candidates := BuildCandidates(a.topo, a.damp, a.params, a.roundRobinIdx, a.cnReachableSince, now)
	for _, c := range candidates {
		a.damp.RecordAttempt(c.LinkName, c.InitiatorRadioMac, now)
		dispatchedAttempts.Inc()
		if err := a.dispatchCandidate(c); err != nil {
			a.logger.Warn("dispatch ignition candidate failed", "link", c.LinkName, "error", err)
		}
	}
}

func (a *IgnitionApp) dispatchCandidate(c topology.IgnitionCandidate) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	return a.Send(a.router, c.ANode, bus.AppIgnition, bus.MsgSetLinkStatusReq, payload)
}
