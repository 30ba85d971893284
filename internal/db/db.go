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

// Package db opens the one gorm connection the controller process shares
// across topology.SnapshotStore and upgrade.Store, and runs the
// gormigrate migration chain ahead of either package's own AutoMigrate
// call. Minion processes never open a database.
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tgnet/e2e/internal/config"
)

// Open connects to Postgres when cfg.PostgresDSN is set, falling back to
// a SQLite file (or, when cfg.SQLitePath is empty, a private temporary
// SQLite database that is discarded on close, for tests and single-node
// trials).
func Open(cfg *config.Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch {
	case cfg.PostgresDSN != "":
		db, err = gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	default:
		path := cfg.SQLitePath
		db, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
