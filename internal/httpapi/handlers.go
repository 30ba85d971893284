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

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	deps Deps
	hub  *EventHub
}

func (h *handlers) listNodes(c *gin.Context) {
	if h.deps.Topo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "topology not available"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Topo.Nodes())
}

func (h *handlers) listLinks(c *gin.Context) {
	if h.deps.Topo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "topology not available"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Topo.Links())
}

func (h *handlers) upgradeStatus(c *gin.Context) {
	if h.deps.UpgradeStatus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upgrade controller not available"})
		return
	}
	summary, ok := h.deps.UpgradeStatus.ActiveBatchSummary()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "batch": summary})
}

func (h *handlers) brokerStats(c *gin.Context) {
	if h.deps.BrokerStats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "broker stats not available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"droppedEnvelopes": h.deps.BrokerStats.DropCount()})
}

func (h *handlers) events(c *gin.Context) {
	h.hub.serveWS(c.Writer, c.Request)
}
