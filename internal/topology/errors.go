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

import "errors"

var (
	ErrNodeNotFound      = errors.New("topology: node not found")
	ErrNodeExists        = errors.New("topology: node already exists")
	ErrNodeNameEmpty     = errors.New("topology: node name must be non-empty")
	ErrSiteNotFound      = errors.New("topology: site not found")
	ErrRadioMacDuplicate = errors.New("topology: radio mac already assigned to another node")
	ErrLinkNotFound      = errors.New("topology: link not found")
	ErrLinkExists        = errors.New("topology: link already exists")
	ErrLinkSameNode      = errors.New("topology: link endpoints must be distinct")
	ErrLinkCNtoCN        = errors.New("topology: link may not connect two client nodes")
	ErrCNMultipleLinks   = errors.New("topology: client node already has a wireless link")
)
