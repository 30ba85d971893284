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

package upgrade

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// GoldenImageSweeper runs a caller-supplied check callback on a fixed
// interval. Comparing the golden image's MD5 against what nodes report,
// and queuing any upgrade request, is up to that callback; the sweeper
// itself does neither. Not named by the distilled spec, but a
// natural consequence of "coordinated software upgrade" — grounded in the
// teacher's own daily gocron sweep pattern (see SnapshotRetentionJob).
type GoldenImageSweeper struct {
	scheduler gocron.Scheduler
	check     func()
}

// NewGoldenImageSweeper registers (but does not start) a sweep job on the
// given interval, calling check each time it fires.
func NewGoldenImageSweeper(interval time.Duration, check func()) (*GoldenImageSweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create golden image sweep scheduler: %w", err)
	}
	sw := &GoldenImageSweeper{scheduler: s, check: check}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sw.check),
		gocron.WithName("golden-image-sweep"),
	)
	if err != nil {
		return nil, fmt.Errorf("register golden image sweep job: %w", err)
	}
	return sw, nil
}

// Start starts the underlying gocron scheduler.
func (s *GoldenImageSweeper) Start() { s.scheduler.Start() }

// Stop shuts the scheduler down.
func (s *GoldenImageSweeper) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shut down golden image sweep scheduler: %w", err)
	}
	return nil
}
