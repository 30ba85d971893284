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

package scheduler

import (
	"testing"
	"time"
)

func TestBWGDAtIsMonotonic(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	b0 := BWGDAt(t0)
	b1 := BWGDAt(t0.Add(bwgdPeriod))
	if b1 != b0+1 {
		t.Fatalf("expected consecutive BWGD one period apart, got %d -> %d", b0, b1)
	}
}

func TestTimeOfBWGDRoundTrips(t *testing.T) {
	bwgd := int64(12345)
	got := BWGDAt(TimeOfBWGD(bwgd))
	if got != bwgd {
		t.Fatalf("expected round trip to %d, got %d", bwgd, got)
	}
}

func TestNextSlotRespectsLeadTime(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	lead := 50 * time.Millisecond
	slot := NextSlot(now, lead)
	if TimeOfBWGD(slot).Before(now.Add(lead)) {
		t.Fatalf("expected slot at/after now+lead, got %v", TimeOfBWGD(slot))
	}
}

func TestArbiterSpacesReservationsApart(t *testing.T) {
	a := NewArbiter(4)
	now := time.Unix(1_700_000_000, 0)

	first := a.Reserve(now, 0)
	second := a.Reserve(now, 0)
	third := a.Reserve(now, 0)

	if second < first+4 {
		t.Fatalf("expected second reservation spaced >=4 BWGDs after first, got %d vs %d", second, first)
	}
	if third < second+4 {
		t.Fatalf("expected third reservation spaced >=4 BWGDs after second, got %d vs %d", third, second)
	}
}

func TestArbiterNeverReturnsPastSlot(t *testing.T) {
	a := NewArbiter(1)
	early := time.Unix(1_700_000_000, 0)
	late := early.Add(10 * time.Second)

	a.Reserve(late, 0)
	got := a.Reserve(early, 0)
	if got < BWGDAt(late) {
		t.Fatalf("expected arbiter cursor to prevent an earlier reservation, got %d", got)
	}
}
