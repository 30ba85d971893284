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

// Package scheduler is SchedulerApp: pure arithmetic over the BWGD
// (bandwidth grant duration) timeline that ScanApp delegates to when it
// needs a future slot to schedule a scan against, per spec.md §4.6. It has
// no bus presence of its own and no external dependency: the BWGD epoch is
// a fixed constant of the radio firmware's TDD frame, not something a
// library models.
package scheduler

import "time"

// bwgdPeriod is one BWGD's wall-clock duration: 256 TDD frames of 100us
// each, the fixed slot width the firmware's scheduler works in.
const bwgdPeriod = 25600 * time.Microsecond

// BWGDAt returns the BWGD index covering t, counting from the Unix epoch.
func BWGDAt(t time.Time) int64 {
	return t.UnixNano() / int64(bwgdPeriod)
}

// TimeOfBWGD returns the wall-clock instant a BWGD index begins.
func TimeOfBWGD(bwgd int64) time.Time {
	return time.Unix(0, bwgd*int64(bwgdPeriod))
}

// NextSlot returns the first BWGD index at least leadTime in the future of
// now, so a scan request reaches every participating radio with margin to
// arm before the slot arrives.
func NextSlot(now time.Time, leadTime time.Duration) int64 {
	target := now.Add(leadTime)
	slot := BWGDAt(target)
	if TimeOfBWGD(slot).Before(target) {
		slot++
	}
	return slot
}

// Arbiter hands out BWGD slots for scans one at a time: once a slot is
// reserved, the next caller is pushed to at least minSpacing BWGDs later,
// so concurrently requested scans don't collide on the same frame.
type Arbiter struct {
	minSpacing int64
	nextFree   int64
}

// NewArbiter constructs an Arbiter. minSpacingBwgds is the minimum gap, in
// BWGD units, the firmware requires between two independently scheduled
// scans.
func NewArbiter(minSpacingBwgds int64) *Arbiter {
	return &Arbiter{minSpacing: minSpacingBwgds}
}

// Reserve returns the BWGD slot to use for a scan requested at now with
// leadTime margin, advancing the arbiter's cursor so the next Reserve call
// never returns an earlier or colliding slot.
func (a *Arbiter) Reserve(now time.Time, leadTime time.Duration) int64 {
	candidate := NextSlot(now, leadTime)
	if candidate < a.nextFree {
		candidate = a.nextFree
	}
	a.nextFree = candidate + a.minSpacing
	return candidate
}
