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
	"fmt"
	"os"
	"time"

	"github.com/tgnet/e2e/internal/apps/configapp"
	"github.com/tgnet/e2e/internal/apps/status"
	"github.com/tgnet/e2e/internal/apps/traffic"
	"github.com/tgnet/e2e/internal/apps/upgrade"
	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/config"
	"github.com/tgnet/e2e/internal/driver"
	"github.com/tgnet/e2e/internal/logging"
	"github.com/tgnet/e2e/internal/sdk"
)

// driverSocketEnv names the env var carrying the netlink driver process's
// unix socket path; unset means this minion runs without radio hardware
// (e.g. a test harness), and DriverApp is skipped entirely.
const driverSocketEnv = "DRIVER_SOCKET_PATH"

// driverDialTimeout bounds how long the minion waits for the driver
// process's socket to appear during staggered container startup.
const driverDialTimeout = 10 * time.Second

// versionSource adapts sdk.Version and the minion's own
// ConfigApp into status.VersionSource, so StatusApp's heartbeat reports
// both identities without depending on either package directly.
type versionSource struct {
	configApp *configapp.MinionConfigApp
}

func (v versionSource) CurrentVersions() (softwareVer, configMd5 string) {
	return sdk.Version, v.configApp.LastAppliedMd5()
}

func runMinion(ctx context.Context, version, commit string) error {
	cfg := config.GetConfig()
	logger := logging.Init(cfg.LogLevel)
	if cfg.NodeID == "" {
		return fmt.Errorf("NODE_ID must be set for a minion process")
	}
	logger.Info("starting minion", "node_id", cfg.NodeID, "version", version, "commit", commit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := dialController(ctx, cfg)
	if err != nil {
		return err
	}
	hello := bus.Envelope{DestAppID: bus.AppBroker, SenderAppID: cfg.NodeID, Type: bus.MsgDealerEcho}
	if err := writeHandshakeFrame(conn, hello); err != nil {
		_ = conn.Close()
		return err
	}

	transport := bus.NewTCPTransport(ctx, conn, logging.For(bus.AppBroker, cfg.NodeID))
	broker := bus.NewMinionBroker(cfg.NodeID, transport, logging.For(bus.AppBroker, cfg.NodeID))
	go broker.RunUpstreamLoop()

	executor := newSystemctlExecutor(cfg.CtrlSocketTimeout)
	configMinionApp := configapp.NewMinionConfigApp(cfg.NodeID, broker, executor, logging.For(bus.AppConfig, cfg.NodeID))
	broker.RegisterApp(configMinionApp)

	statusMinionApp := status.NewMinionApp(cfg.NodeID, broker, versionSource{configApp: configMinionApp}, status.Params{
		ReportInterval:     cfg.StatusReportInterval,
		FullReportInterval: cfg.FullStatusReportInterval,
	}, logging.For(bus.AppStatus, cfg.NodeID))
	broker.RegisterApp(statusMinionApp)

	flasher := newPartitionFlasher(upgradeStageDir).asUpgradeFlasher()
	upgradeMinionApp := upgrade.NewMinion(cfg.NodeID, broker, flasher, logging.For(bus.AppUpgrade, cfg.NodeID))
	broker.RegisterApp(upgradeMinionApp)

	trafficApp := traffic.NewMinionApp(cfg.NodeID, broker, traffic.ExecRunner{}, logging.For(bus.AppTraffic, cfg.NodeID))
	broker.RegisterApp(trafficApp)

	apps := []bus.App{configMinionApp, statusMinionApp, upgradeMinionApp, trafficApp}

	if socketPath := os.Getenv(driverSocketEnv); socketPath != "" {
		sock, err := driver.DialUnixSocket(socketPath, driverDialTimeout)
		if err != nil {
			return err
		}
		driverApp := driver.NewDriverApp(cfg.NodeID, broker, sock, logging.For(bus.AppDriver, cfg.NodeID))
		broker.RegisterApp(driverApp)
		apps = append(apps, driverApp)
	} else {
		logger.Warn("no driver socket configured, running without DriverApp", "env", driverSocketEnv)
	}

	errCh := make(chan error, len(apps))
	for _, app := range apps {
		go func(a bus.App) { errCh <- a.Run(ctx) }(app)
	}

	go waitForShutdown(cancel)
	<-ctx.Done()
	return nil
}
