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
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/tgnet/e2e/internal/topology"
)

func init() { gin.SetMode(gin.TestMode) }

type stubUpgradeStatus struct {
	summary BatchSummary
	active  bool
}

func (s stubUpgradeStatus) ActiveBatchSummary() (BatchSummary, bool) { return s.summary, s.active }

type stubBrokerStats struct{ drops int64 }

func (s stubBrokerStats) DropCount() int64 { return s.drops }

func TestListNodesReturnsTopologySnapshot(t *testing.T) {
	topo := topology.NewTopologyWrapper()
	topo.AddSite("site1")
	if err := topo.AddNode(topology.Node{Name: "n1", SiteName: "site1"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	r, _ := NewRouter(Deps{Topo: topo})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/topology/nodes", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUpgradeStatusReflectsActiveBatch(t *testing.T) {
	want := BatchSummary{ReqID: "req1", State: "DISPATCHING", Nodes: []string{"n1", "n2"}, Done: 1, Total: 2}
	r, _ := NewRouter(Deps{UpgradeStatus: stubUpgradeStatus{summary: want, active: true}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/upgrade/status", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if diff := cmp.Diff(`{"active":true,"batch":{"reqId":"req1","state":"DISPATCHING","nodes":["n1","n2"],"done":1,"total":2}}`, rec.Body.String()); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}
}

func TestBrokerStatsUnavailableReturns503(t *testing.T) {
	r, _ := NewRouter(Deps{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/broker/stats", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestBrokerStatsReportsDropCount(t *testing.T) {
	r, _ := NewRouter(Deps{BrokerStats: stubBrokerStats{drops: 7}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/broker/stats", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if diff := cmp.Diff(`{"droppedEnvelopes":7}`, rec.Body.String()); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}
}
