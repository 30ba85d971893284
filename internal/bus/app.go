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

package bus

import (
	"context"
	"fmt"
)

// inboxDepth bounds each app's inbox so a stuck app applies backpressure to
// the Broker rather than growing unbounded memory; the Broker drops and
// counts rather than blocking (see ControllerBroker.Route and
// MinionBroker.Route).
const inboxDepth = 256

// App is a single-threaded event loop owning one typed inbox. Exactly one
// goroutine runs Run for a given App, so no two callbacks for the same app
// ever execute concurrently.
type App interface {
	ID() string
	Inbox() chan Envelope
	Run(ctx context.Context) error
}

// BaseApp provides the inbox plumbing shared by every app implementation;
// concrete apps embed it and implement Run.
type BaseApp struct {
	AppID  string
	NodeID string
	inbox  chan Envelope
}

// NewBaseApp constructs a BaseApp with its inbox channel allocated.
func NewBaseApp(appID, nodeID string) BaseApp {
	return BaseApp{AppID: appID, NodeID: nodeID, inbox: make(chan Envelope, inboxDepth)}
}

func (b *BaseApp) ID() string             { return b.AppID }
func (b *BaseApp) Inbox() chan Envelope   { return b.inbox }

// Send addresses an envelope from this app to (destNodeID, destAppID) and
// hands it to router for forwarding.
func (b *BaseApp) Send(router Router, destNodeID, destAppID string, typ MessageType, payload []byte) error {
	env := Envelope{
		DestNodeID:  destNodeID,
		DestAppID:   destAppID,
		SenderAppID: b.AppID,
		Type:        typ,
		Payload:     payload,
	}
	if err := router.Route(env); err != nil {
		return fmt.Errorf("%s: send to %s/%s: %w", b.AppID, destNodeID, destAppID, err)
	}
	return nil
}

// Router is the minimal surface an app needs from a Broker to emit
// envelopes, kept narrow so apps don't depend on the full broker type.
type Router interface {
	Route(env Envelope) error
}
