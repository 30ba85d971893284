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

import "fmt"

// LinkName computes the canonical link name for an unordered endpoint
// pair: link-<min(a,z)>-<max(a,z)>, so (a,z) and (z,a) always map to the
// same stored link. This eliminates the need for bidirectional references;
// each link is stored once in TopologyWrapper's link map, keyed by this name.
func LinkName(a, z string) string {
	if a <= z {
		return fmt.Sprintf("link-%s-%s", a, z)
	}
	return fmt.Sprintf("link-%s-%s", z, a)
}
