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

// Package logging wires up the process-wide slog logger with a tint handler
// so controller and minion log lines are colorized and level-filterable.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Init installs a tint-backed slog handler as the default logger and
// returns it. levelStr is one of "debug", "info", "warn", "error"; unknown
// or empty values default to info, matching the teacher's permissive env
// parsing elsewhere.
func Init(levelStr string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
	}))
	slog.SetDefault(logger)
	return logger
}

// For attaches app/node attributes so multi-app log streams stay
// attributable, the way a hub attributes log lines with repeaterID.
func For(appID, nodeID string) *slog.Logger {
	return slog.Default().With("app", appID, "node", nodeID)
}
