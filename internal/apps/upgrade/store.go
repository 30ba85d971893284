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
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// UpgradeRequestRow persists one UpgradeRequest so a controller restart can
// resume bookkeeping for in-flight batches (spec.md §4.5 durability note).
type UpgradeRequestRow struct {
	ID         uint `gorm:"primarykey"`
	ReqID      string `gorm:"uniqueIndex"`
	Action     UpgradeAction
	NodesJSON  string
	ImageJSON  string
	TimeoutSec int
	CreatedAt  time.Time
}

// UpgradeNodeStateRow tracks the last known terminal state per
// (reqId, node) pair, the persistence backing filterAlreadyInTargetState's
// idempotence check across a controller restart.
type UpgradeNodeStateRow struct {
	ID     uint `gorm:"primarykey"`
	ReqID  string `gorm:"index:idx_req_node,unique"`
	Node   string `gorm:"index:idx_req_node,unique"`
	Action UpgradeAction
	State  NodeUpgradeState
}

// Store is the gorm-backed persistence for upgrade_request_rows and
// upgrade_node_state_rows (batches are modeled as per-node state rows, since the
// "batch" itself is transient in-memory bookkeeping derived from the
// request's node list at recovery time).
type Store struct {
	db *gorm.DB
}

// NewStore wraps db. Call AutoMigrate once at startup (see Migrate).
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the upgrade_request_rows/upgrade_node_state_rows tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&UpgradeRequestRow{}, &UpgradeNodeStateRow{}); err != nil {
		return fmt.Errorf("migrate upgrade store: %w", err)
	}
	return nil
}

// SaveRequest persists req for crash recovery.
func (s *Store) SaveRequest(req UpgradeRequest) error {
	nodesJSON, err := json.Marshal(req.Nodes)
	if err != nil {
		return fmt.Errorf("marshal upgrade request nodes: %w", err)
	}
	imageJSON, err := json.Marshal(req.Image)
	if err != nil {
		return fmt.Errorf("marshal upgrade request image: %w", err)
	}
	row := UpgradeRequestRow{
		ReqID:      req.ReqID,
		Action:     req.Action,
		NodesJSON:  string(nodesJSON),
		ImageJSON:  string(imageJSON),
		TimeoutSec: req.TimeoutSec,
		CreatedAt:  time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("persist upgrade request: %w", err)
	}
	return nil
}

// RecordNodeState upserts (reqId, node)'s terminal state.
func (s *Store) RecordNodeState(reqID, node string, action UpgradeAction, state NodeUpgradeState) error {
	row := UpgradeNodeStateRow{ReqID: reqID, Node: node, Action: action, State: state}
	if err := s.db.Where(UpgradeNodeStateRow{ReqID: reqID, Node: node}).
		Assign(UpgradeNodeStateRow{Action: action, State: state}).
		FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("record upgrade node state: %w", err)
	}
	return nil
}

// IsInTargetState reports whether node already reached the terminal state
// that action would produce for the same request, covering the
// controller-restart resume case.
func (s *Store) IsInTargetState(reqID, node string, action UpgradeAction) bool {
	var row UpgradeNodeStateRow
	if err := s.db.Where("req_id = ? AND node = ?", reqID, node).First(&row).Error; err != nil {
		return false
	}
	switch action {
	case ActionPrepare:
		return row.State == NodeStateFlashed || row.State == NodeStateCommitted
	case ActionCommit:
		return row.State == NodeStateCommitted
	default:
		return false
	}
}
