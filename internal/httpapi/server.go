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

// Package httpapi is the controller's read/operator-facing HTTP surface:
// a gin server exposing topology and upgrade-batch state as JSON, a
// websocket endpoint that relays whatever is passed to EventHub.Broadcast
// (cmd/controller.go discards the hub, so no events are sent), and the
// pprof debug mux,
// replacing the teacher's DMR-specific gin API with Terragraph's own
// endpoints while keeping its server/router/middleware shape.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	ginpprof "github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/tgnet/e2e/internal/topology"
)

const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	rateLimitRate     = time.Second
	rateLimitRequests = 20
)

// Deps bundles the process state the HTTP surface reads from; all fields
// are optional so a minion or a test can stand up a server exposing only
// a subset.
type Deps struct {
	Topo          *topology.TopologyWrapper
	UpgradeStatus UpgradeStatusSource
	BrokerStats   BrokerStatsSource
	EnablePProf   bool
}

// UpgradeStatusSource is the narrow read surface into the upgrade batch
// controller, kept separate from *upgrade.Controller so this package
// doesn't need to import the upgrade FSM's full API.
type UpgradeStatusSource interface {
	ActiveBatchSummary() (BatchSummary, bool)
}

// BrokerStatsSource exposes the bus broker's liveness counters.
type BrokerStatsSource interface {
	DropCount() int64
}

// BatchSummary is the JSON shape of an in-flight upgrade batch.
type BatchSummary struct {
	ReqID    string   `json:"reqId"`
	State    string   `json:"state"`
	Nodes    []string `json:"nodes"`
	Done     int      `json:"done"`
	Total    int      `json:"total"`
}

// NewRouter builds the gin engine: CORS, a per-client-IP rate limiter on
// every /api route, the read-only JSON routes, the websocket event
// endpoint, and (optionally) pprof.
func NewRouter(deps Deps) (*gin.Engine, *EventHub) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  rateLimitRate,
		Limit: rateLimitRequests,
	})
	limiter := ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.String(http.StatusTooManyRequests, "rate limit exceeded, retry after %s", time.Until(info.ResetTime))
		},
		KeyFunc: func(c *gin.Context) string { return c.ClientIP() },
	})

	hub := NewEventHub()
	h := &handlers{deps: deps, hub: hub}

	api := r.Group("/api", limiter)
	{
		api.GET("/topology/nodes", h.listNodes)
		api.GET("/topology/links", h.listLinks)
		api.GET("/upgrade/status", h.upgradeStatus)
		api.GET("/broker/stats", h.brokerStats)
		api.GET("/ws/events", h.events)
	}

	if deps.EnablePProf {
		ginpprof.Register(r)
	}

	return r, hub
}

// Run blocks serving r on addr until ctx is cancelled, then shuts the
// server down gracefully.
func Run(ctx context.Context, addr string, r *gin.Engine) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("httpapi: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), readTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
