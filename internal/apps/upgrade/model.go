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

// Package upgrade implements the controller-side batch FSM and
// minion-side image fetch/flash flow for coordinated software upgrade.
package upgrade

import "time"

// UpgradeAction is the action an UpgradeRequest asks for.
type UpgradeAction int

const (
	ActionPrepare UpgradeAction = iota
	ActionCommit
	ActionReset
	ActionFull
)

// UpgradeRequest matches spec.md §3's UpgradeRequest tuple.
type UpgradeRequest struct {
	ReqID             string
	Action            UpgradeAction
	Nodes             []string
	Image             ImageRef
	TimeoutSec        int
	SkipFailure       bool
	SkipLinks         []string
	Limit             int
	RetryLimit        int
	ScheduleToCommit  *time.Time
}

// ImageRef names the image a request targets. The minion fetches URL over
// HTTP(S) only (see ImageSource in image.go); magnet URIs are not fetched.
type ImageRef struct {
	URL         string
	ExpectedMD5 string
	Version     string
}

// NodeUpgradeState is a node's progress within the current batch.
type NodeUpgradeState int

const (
	NodeStatePending NodeUpgradeState = iota
	NodeStateDownloading
	NodeStateFlashed
	NodeStateCommitted
	NodeStateFailed
)

// BatchState is the controller-side FSM state for one in-flight batch.
type BatchState int

const (
	BatchInitiating BatchState = iota
	BatchInFlight
	BatchDone
	BatchAborted
)

func (s BatchState) String() string {
	switch s {
	case BatchInitiating:
		return "INITIATING"
	case BatchInFlight:
		return "IN_FLIGHT"
	case BatchDone:
		return "DONE"
	case BatchAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// linkSnapshot and bgpSnapshot capture the safety-precondition baseline
// taken at batch-init time, per spec.md §4.5.
type linkSnapshot struct {
	name  string
	alive bool
}

type bgpSnapshot struct {
	node     string
	peerCount int
}

// Batch is one in-flight set of nodes being upgraded in parallel.
type Batch struct {
	Nodes   []string
	State   BatchState
	Deadline time.Time

	nodeStates map[string]NodeUpgradeState
	linkBase   []linkSnapshot
	bgpBase    []bgpSnapshot
}
