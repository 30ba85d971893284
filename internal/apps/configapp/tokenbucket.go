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

package configapp

import (
	"sync"
	"time"
)

// LinkMetricTokenBucket rate-limits routing link metric pushes per link:
// successive changes in the same direction must accumulate a minimum count
// before a metric is actually pushed to routing. No generic rate-limiting
// library appears in any example repo's go.mod, so this is a small
// hand-rolled bucket matching the spec's "minimum count before push"
// semantics directly (see DESIGN.md).
type LinkMetricTokenBucket struct {
	mu           sync.Mutex
	rate         float64 // tokens per second
	burst        float64
	minDirection int // minimum same-direction accumulation before a push

	tokens     float64
	lastRefill time.Time
	sameDirCount int
	lastSign     int
}

// NewLinkMetricTokenBucket constructs a bucket with the given refill rate
// and burst capacity.
func NewLinkMetricTokenBucket(rate, burst float64, minDirection int) *LinkMetricTokenBucket {
	return &LinkMetricTokenBucket{
		rate:         rate,
		burst:        burst,
		minDirection: minDirection,
		tokens:       burst,
		lastRefill:   time.Now(),
	}
}

func (b *LinkMetricTokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.lastRefill = now
}

// sign returns -1, 0, or 1.
func sign(delta int) int {
	switch {
	case delta < 0:
		return -1
	case delta > 0:
		return 1
	default:
		return 0
	}
}

// AllowPush reports whether a metric change of delta should be pushed now.
// It tracks a running same-direction count and only returns true once both
// a token is available and minDirection consecutive same-direction changes
// have accumulated; the counter resets whenever direction flips.
func (b *LinkMetricTokenBucket) AllowPush(delta int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := sign(delta)
	if s == b.lastSign && s != 0 {
		b.sameDirCount++
	} else {
		b.sameDirCount = 1
		b.lastSign = s
	}

	if b.sameDirCount < b.minDirection {
		return false
	}

	b.refill(time.Now())
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	b.sameDirCount = 0
	return true
}
