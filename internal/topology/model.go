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

// Package topology owns the authoritative network graph: nodes, links,
// sites, and the invariants that bind them. TopologyWrapper is the single
// process-scope container apps hold a handle to, per the "no global
// singletons" design note.
package topology

import "time"

// NodeType distinguishes distribution nodes (which may initiate ignition
// and carry upstream connectivity) from client nodes (which may not).
type NodeType int

const (
	NodeTypeDN NodeType = iota
	NodeTypeCN
)

// NodeStatus tracks liveness as observed by StatusReport reconciliation.
type NodeStatus int

const (
	NodeOffline NodeStatus = iota
	NodeOnline
	NodeOnlineInitiator
)

// LinkType distinguishes wireless (beamformed) links from wired ethernet
// adjacencies inferred from site co-location.
type LinkType int

const (
	LinkWireless LinkType = iota
	LinkEthernet
)

// Node is one Terragraph node: one or more 60 GHz radios, a stable name,
// and the liveness/config bookkeeping the controller tracks per node.
type Node struct {
	Name          string
	RadioMacs     []string
	Type          NodeType
	PopNode       bool
	Status        NodeStatus
	Polarity      int
	GolayIdx      [2]int
	Channel       int
	SoftwareVer   string
	ConfigMd5     string
	LastSeen      time.Time
	SiteName      string
	HasLocation   bool
	LatitudeDeg   float64
	LongitudeDeg  float64
	AltitudeMeter float64

	// BGPPeerCount is only meaningful for PopNode nodes; UpgradeApp's
	// COMMIT safety precondition re-verifies it hasn't dropped since
	// batch init.
	BGPPeerCount int
}

// Link is one adjacency between two nodes, named canonically so (a,z) and
// (z,a) resolve to the same entry.
type Link struct {
	Name             string
	ANode            string
	ZNode            string
	Type             LinkType
	IsAlive          bool
	LinkupAttempts   int
	IsBackupCnLink   bool
}

// Site is a named container grouping co-located nodes, used by ignition to
// infer intra-site wired adjacencies.
type Site struct {
	Name string
}

// IgnitionCandidate is a transient tuple produced per ignition pass; it is
// never persisted.
type IgnitionCandidate struct {
	InitiatorRadioMac string
	ResponderRadioMac string
	LinkName          string
	ANode             string
	ZNode             string
}
