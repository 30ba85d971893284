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
	"crypto/md5" //nolint:gosec // image integrity check, not a security boundary
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/tgnet/e2e/internal/apps/upgrade"
	"github.com/tgnet/e2e/internal/configstore"
)

// actionUnits maps a resolved configstore.Action to the systemd unit
// systemctlExecutor restarts/reloads for it, the minion-process
// counterpart to DMRHub's os/exec-based external process control.
var actionUnits = map[configstore.Action]string{
	configstore.ActionRestartMinion:  "e2e_minion.service",
	configstore.ActionReloadFirmware: "e2e_minion.service",
	configstore.ActionRestartRouting: "openr.service",
	configstore.ActionRestartStats:   "stats_agent.service",
	configstore.ActionRestartLogtail: "logtail.service",
	configstore.ActionRestartDHCP:    "dnsmasq.service",
	configstore.ActionRestartWebUI:   "webui.service",
	configstore.ActionReloadResolver: "dnsmasq.service",
	configstore.ActionReloadNTP:      "chronyd.service",
	configstore.ActionReloadSSHCA:    "sshd.service",
	configstore.ActionReloadFirewall: "iptables-restore.service",
}

// systemctlExecutor runs actions via systemctl, the same os/exec-a-binary
// shape traffic.ExecRunner uses for iperf/ping.
type systemctlExecutor struct {
	timeout time.Duration
}

func newSystemctlExecutor(timeout time.Duration) *systemctlExecutor {
	return &systemctlExecutor{timeout: timeout}
}

func (e *systemctlExecutor) Execute(action configstore.Action) error {
	if action == configstore.ActionReboot {
		return e.run("reboot")
	}
	unit, ok := actionUnits[action]
	if !ok {
		return fmt.Errorf("no systemd unit mapped for action %d", action)
	}
	verb := "restart"
	if action == configstore.ActionReloadResolver || action == configstore.ActionReloadNTP ||
		action == configstore.ActionReloadSSHCA || action == configstore.ActionReloadFirewall {
		verb = "reload-or-restart"
	}
	return e.run("systemctl", verb, unit)
}

func (e *systemctlExecutor) run(bin string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", bin, args, err, out)
	}
	return nil
}

// partitionFlasher writes a verified image to the minion's inactive
// partition path and flips an "active partition" marker file on Boot,
// standing in for the real block-device ioctl dance until a concrete
// netlink-backed implementation lands (see DESIGN.md).
type partitionFlasher struct {
	inactivePath string
	markerPath   string
}

func newPartitionFlasher(baseDir string) partitionFlasher {
	return partitionFlasher{
		inactivePath: filepath.Join(baseDir, "inactive.bin"),
		markerPath:   filepath.Join(baseDir, "active_md5"),
	}
}

func (f partitionFlasher) asUpgradeFlasher() upgrade.Flasher {
	return upgrade.Flasher{Flash: f.flash, Boot: f.boot}
}

func (f partitionFlasher) flash(image []byte, meta upgrade.ImageMeta) error {
	sum := md5.Sum(image) //nolint:gosec // matches meta.MD5 check upstream, not a security boundary
	if hex.EncodeToString(sum[:]) != meta.MD5 {
		return fmt.Errorf("image md5 mismatch writing to %s", f.inactivePath)
	}
	if err := os.MkdirAll(filepath.Dir(f.inactivePath), 0o755); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}
	return os.WriteFile(f.inactivePath, image, 0o644) //nolint:gosec // not a secret
}

func (f partitionFlasher) boot() error {
	data, err := os.ReadFile(f.inactivePath)
	if err != nil {
		return fmt.Errorf("read staged image before boot: %w", err)
	}
	sum := md5.Sum(data) //nolint:gosec // matches meta.MD5 check upstream, not a security boundary
	return os.WriteFile(f.markerPath, []byte(hex.EncodeToString(sum[:])), 0o644) //nolint:gosec // not a secret
}
