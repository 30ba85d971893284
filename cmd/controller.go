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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tgnet/e2e/internal/apps/binarystar"
	"github.com/tgnet/e2e/internal/apps/configapp"
	"github.com/tgnet/e2e/internal/apps/ignition"
	"github.com/tgnet/e2e/internal/apps/scan"
	"github.com/tgnet/e2e/internal/apps/scheduler"
	"github.com/tgnet/e2e/internal/apps/status"
	"github.com/tgnet/e2e/internal/apps/topologyapp"
	"github.com/tgnet/e2e/internal/apps/upgrade"
	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/config"
	"github.com/tgnet/e2e/internal/configstore"
	"github.com/tgnet/e2e/internal/db"
	"github.com/tgnet/e2e/internal/httpapi"
	"github.com/tgnet/e2e/internal/kv"
	"github.com/tgnet/e2e/internal/logging"
	"github.com/tgnet/e2e/internal/metrics"
	"github.com/tgnet/e2e/internal/pubsub"
	"github.com/tgnet/e2e/internal/sdk"
	"github.com/tgnet/e2e/internal/topology"
)

// scanArbiterMinSpacingBwgds is the minimum gap SchedulerApp enforces
// between two independently scheduled scans, per spec.md §4.6.
const scanArbiterMinSpacingBwgds = 4

// scanLeadTime bounds how far ahead of "now" ScanApp reserves a BWGD slot
// when dispatching a scan, giving every radio margin to arm.
const scanLeadTime = 500 * time.Millisecond

// snapshotRetention is how long topology_snapshots rows are kept before
// SnapshotRetentionJob prunes them.
const snapshotRetention = 30 * 24 * time.Hour

// topologySnapshotDir is the flat-file mirror of captured snapshots,
// alongside the gorm-backed history.
const topologySnapshotDir = "/tmp/topology"

// upgradeStageDir is where partitionFlasher stages a fetched image before
// boot; only used by the minion side, declared here for symmetry with its
// controller-side counterparts.
const upgradeStageDir = "/tmp/e2e-upgrade"

// batchSummaryAdapter satisfies httpapi.UpgradeStatusSource by converting
// upgrade.Controller's internal BatchSnapshot into the JSON shape httpapi
// serves, so httpapi never needs to import the upgrade package's FSM
// types directly.
type batchSummaryAdapter struct {
	ctrl *upgrade.Controller
}

func (a batchSummaryAdapter) ActiveBatchSummary() (httpapi.BatchSummary, bool) {
	snap, ok := a.ctrl.ActiveBatchSummary()
	if !ok {
		return httpapi.BatchSummary{}, false
	}
	return httpapi.BatchSummary{
		ReqID: snap.ReqID,
		State: snap.State.String(),
		Nodes: snap.Nodes,
		Done:  snap.Done,
		Total: snap.Total,
	}, true
}

// seedDoc is the JSON shape of cfg.ControllerConfigFile: an initial
// sites/nodes topology loaded at startup, the controller-side analogue of
// the minion's node_config.json bootstrap file.
type seedDoc struct {
	Sites []string `json:"sites"`
	Nodes []struct {
		Name      string   `json:"name"`
		Site      string   `json:"site"`
		RadioMacs []string `json:"radioMacs"`
		PopNode   bool     `json:"popNode"`
		IsCN      bool     `json:"isCn"`
	} `json:"nodes"`
}

// loadTopologySeed populates topo from the JSON document at path, if set.
// An empty path is not an error: a freshly started controller with no
// seed simply starts with an empty topology, waiting for an operator to
// populate it through httpapi.
func loadTopologySeed(topo *topology.TopologyWrapper, path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read controller config file: %w", err)
	}
	var doc seedDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode controller config file: %w", err)
	}
	for _, site := range doc.Sites {
		topo.AddSite(site)
	}
	for _, n := range doc.Nodes {
		nodeType := topology.NodeTypeDN
		if n.IsCN {
			nodeType = topology.NodeTypeCN
		}
		node := topology.Node{
			Name:      n.Name,
			SiteName:  n.Site,
			RadioMacs: n.RadioMacs,
			PopNode:   n.PopNode,
			Type:      nodeType,
			Status:    topology.NodeOffline,
		}
		if err := topo.AddNode(node); err != nil {
			return fmt.Errorf("seed node %s: %w", n.Name, err)
		}
	}
	return nil
}

// handshakeReadTimeout bounds how long the controller waits for a minion
// to send its HELLO frame before giving up on the connection.
const handshakeReadTimeout = 5 * time.Second

// acceptHandshake reads the one HELLO envelope a freshly dialed minion
// sends before any broker traffic flows, learning its nodeID the same
// length-prefixed-frame way every other bus message is read, just without
// a Transport wrapper yet (RegisterMinion constructs that once the nodeID
// is known).
func acceptHandshake(conn net.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(handshakeReadTimeout)); err != nil {
		return "", fmt.Errorf("set handshake deadline: %w", err)
	}
	env, err := readHandshakeFrame(conn)
	if err != nil {
		return "", fmt.Errorf("read handshake: %w", err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", fmt.Errorf("clear handshake deadline: %w", err)
	}
	if env.SenderAppID == "" {
		return "", fmt.Errorf("handshake missing node id")
	}
	return env.SenderAppID, nil
}

// acceptLoop accepts minion connections on l until ctx is cancelled,
// handshaking each one and registering it with broker.
func acceptLoop(ctx context.Context, l net.Listener, broker *bus.ControllerBroker, logger interface {
	Warn(msg string, args ...any)
}) {
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("minion accept failed", "error", err)
			continue
		}
		go func() {
			nodeID, err := acceptHandshake(conn)
			if err != nil {
				logger.Warn("minion handshake failed", "error", err)
				_ = conn.Close()
				return
			}
			transport := bus.NewTCPTransport(ctx, conn, logging.For(bus.AppBroker, nodeID))
			broker.RegisterMinion(nodeID, transport)
		}()
	}
}

func runController(ctx context.Context, version, commit string) error {
	cfg := config.GetConfig()
	logger := logging.Init(cfg.LogLevel)
	logger.Info("starting controller", "version", version, "commit", commit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gormDB, err := db.Open(&cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	if err := gormDB.AutoMigrate(&topology.TopologySnapshotRow{}); err != nil {
		return fmt.Errorf("migrate topology snapshots: %w", err)
	}

	topo := topology.NewTopologyWrapper()
	if err := loadTopologySeed(topo, cfg.ControllerConfigFile); err != nil {
		return err
	}

	snapshotStore := topology.NewSnapshotStore(gormDB, topo, topologySnapshotDir)
	retentionJob, err := topologyapp.NewSnapshotRetentionJob(snapshotStore, snapshotRetention, logger)
	if err != nil {
		return err
	}
	retentionJob.Start()
	defer func() { _ = retentionJob.Stop() }()

	kvStore, err := kv.MakeKV(ctx, &cfg)
	if err != nil {
		return err
	}
	defer func() { _ = kvStore.Close() }()
	promMetrics := metrics.NewMetrics()
	kvStore = kv.Instrument(kvStore, promMetrics)

	ps, err := pubsub.MakePubSub(ctx, &cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ps.Close() }()

	broker := bus.NewControllerBroker(cfg.CtrlSocketTimeout, logging.For(bus.AppBroker, bus.ControllerNodeID))

	statusApp := status.NewControllerApp(broker, logging.For(bus.AppStatus, bus.ControllerNodeID))
	broker.RegisterApp(statusApp)

	routingFetcher := topologyapp.NewKVRoutingAdjacencyFetcher(kvStore)
	topoApp := topologyapp.NewTopologyApp(broker, topo, snapshotStore, routingFetcher, topologyapp.DefaultParams(), logging.For(bus.AppTopology, bus.ControllerNodeID))
	broker.RegisterApp(topoApp)

	configHelper := configstore.NewConfigHelper()
	configControllerApp := configapp.NewControllerConfigApp(broker, topo, configHelper, logging.For(bus.AppConfig, bus.ControllerNodeID))
	broker.RegisterApp(configControllerApp)

	ignitionApp := ignition.NewIgnitionApp(broker, topo, ignition.DefaultParams(), logging.For(bus.AppIgnition, bus.ControllerNodeID))
	broker.RegisterApp(ignitionApp)
	for _, c := range ignition.Collectors() {
		prometheus.MustRegister(c)
	}

	upgradeStore := upgrade.NewStore(gormDB)
	if err := upgradeStore.Migrate(); err != nil {
		return err
	}
	upgradeController := upgrade.NewController(broker, topo, upgradeStore, logging.For(bus.AppUpgrade, bus.ControllerNodeID))
	broker.RegisterApp(upgradeController)

	goldenSweeper, err := upgrade.NewGoldenImageSweeper(cfg.GoldenImageSweepInterval, func() {
		logger.Debug("golden image sweep tick")
	})
	if err != nil {
		return err
	}
	goldenSweeper.Start()
	defer func() { _ = goldenSweeper.Stop() }()

	arbiter := scheduler.NewArbiter(scanArbiterMinSpacingBwgds)
	scanApp := scan.New(broker, arbiter, 30*time.Second, logging.For(bus.AppScan, bus.ControllerNodeID))
	broker.RegisterApp(scanApp)

	var bstarApp *binarystar.App
	if cfg.BstarEnabled {
		bstarApp = binarystar.New(cfg.NodeID, cfg.BstarPrimary, ps, broker, sdk.Version, binarystar.DefaultParams(), logging.For(bus.AppBinaryStar, bus.ControllerNodeID))
		broker.RegisterApp(bstarApp)
	}

	minionListener, err := listenTCP(addrString("", cfg.MinionRouterPort))
	if err != nil {
		return err
	}
	go acceptLoop(ctx, minionListener, broker, logger)

	httpDeps := httpapi.Deps{
		Topo:          topo,
		UpgradeStatus: batchSummaryAdapter{ctrl: upgradeController},
		BrokerStats:   broker,
		EnablePProf:   cfg.LogLevel == "debug",
	}
	router, _ := httpapi.NewRouter(httpDeps)

	metricsServer, err := metrics.NewServer(addrString("", cfg.MetricsPort))
	if err != nil {
		return err
	}

	apps := []bus.App{statusApp, topoApp, configControllerApp, ignitionApp, upgradeController, scanApp}
	if bstarApp != nil {
		apps = append(apps, bstarApp)
	}
	errCh := make(chan error, len(apps)+1)
	for _, app := range apps {
		go func(a bus.App) { errCh <- a.Run(ctx) }(app)
	}
	go func() { errCh <- httpapi.Run(ctx, addrString("", cfg.HTTPPort), router) }()

	go waitForShutdown(cancel)

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}
	_ = minionListener.Close()
	return nil
}
