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

package topology

// RWLocker is the shared/exclusive lock surface both TopologyWrapper and
// configstore.ConfigHelper implement, kept narrow here so this package does
// not need to import configstore.
type RWLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// WithBothLocked acquires topo then cfg in that fixed order (the only
// order any code path touching both may use, per the concurrency model)
// and runs fn, releasing both on return.
func WithBothLocked(topo RWLocker, cfg RWLocker, fn func()) {
	topo.Lock()
	defer topo.Unlock()
	cfg.Lock()
	defer cfg.Unlock()
	fn()
}

// WithBothRLocked is the shared-lock counterpart of WithBothLocked, used
// by apps that only read both topology and config in one transaction.
func WithBothRLocked(topo RWLocker, cfg RWLocker, fn func()) {
	topo.RLock()
	defer topo.RUnlock()
	cfg.RLock()
	defer cfg.RUnlock()
	fn()
}
