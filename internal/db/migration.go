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

package db

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate runs the gormigrate chain ahead of upgrade.Store.Migrate and
// topology.SnapshotStore's AutoMigrate calls, the same two-phase shape
// the teacher uses (versioned migrations first, AutoMigrate for
// additive/idempotent column changes after).
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202607300100_upgrade_requests_created_at_index",
			Migrate: func(tx *gorm.DB) error {
				if !tx.Migrator().HasTable("upgrade_request_rows") {
					// upgrade.Store.Migrate runs its own AutoMigrate after
					// this chain; on first boot the table doesn't exist
					// yet, so there is nothing to index.
					return nil
				}
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_upgrade_requests_created_at ON upgrade_request_rows(created_at)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_upgrade_requests_created_at").Error
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
