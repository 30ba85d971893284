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

package topologyapp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/tgnet/e2e/internal/topology"
)

// SnapshotRetentionJob prunes topology_snapshot_rows rows older than the
// retention window on a daily gocron cadence, the same job-lifecycle
// pattern the teacher uses for its own scheduled background sweeps.
type SnapshotRetentionJob struct {
	scheduler gocron.Scheduler
	store     *topology.SnapshotStore
	retention time.Duration
	logger    *slog.Logger
}

// NewSnapshotRetentionJob constructs and registers (but does not start) the
// daily retention sweep.
func NewSnapshotRetentionJob(store *topology.SnapshotStore, retention time.Duration, logger *slog.Logger) (*SnapshotRetentionJob, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create snapshot retention scheduler: %w", err)
	}
	j := &SnapshotRetentionJob{scheduler: s, store: store, retention: retention, logger: logger}

	_, err = s.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(j.prune),
		gocron.WithName("topology-snapshot-retention"),
	)
	if err != nil {
		return nil, fmt.Errorf("register snapshot retention job: %w", err)
	}
	return j, nil
}

func (j *SnapshotRetentionJob) prune() {
	if err := j.store.PruneOlderThan(j.retention); err != nil {
		j.logger.Warn("topology snapshot retention sweep failed", "error", err)
	}
}

// Start starts the underlying gocron scheduler.
func (j *SnapshotRetentionJob) Start() { j.scheduler.Start() }

// Stop shuts the scheduler down.
func (j *SnapshotRetentionJob) Stop() error {
	if err := j.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shut down snapshot retention scheduler: %w", err)
	}
	return nil
}
