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

// Package ignition implements IgnitionApp: periodic and reactive link
// bring-up with dampening and backup-link policy.
package ignition

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Params are the tunables from spec.md §4.2, all with their documented
// defaults.
type Params struct {
	LinkUpInterval                time.Duration
	DampenInterval                time.Duration
	ExtendedDampenInterval        time.Duration
	ExtendedDampenFailureInterval time.Duration
	BackupCnLinkInterval          time.Duration
	BfTimeout                     time.Duration
	P2mpAssocDelay                time.Duration
	IgnoreDampenIntervalAfterResp bool
}

// DefaultParams mirrors spec.md's defaults.
func DefaultParams() Params {
	return Params{
		LinkUpInterval:                5 * time.Second,
		DampenInterval:                10 * time.Second,
		ExtendedDampenInterval:        300 * time.Second,
		ExtendedDampenFailureInterval: 1800 * time.Second,
		BackupCnLinkInterval:          300 * time.Second,
		BfTimeout:                     15 * time.Second,
		P2mpAssocDelay:                2 * time.Second,
	}
}

// DampeningTracker holds the four maps the ignition pass consults, mutated
// concurrently from both the periodic pass goroutine and the
// LinkStatusEvent handler — hence xsync.Map, the same lock-free concurrent
// map the teacher uses for its own hot-path state.
type DampeningTracker struct {
	linkToAttemptTs        *xsync.Map[string, time.Time]
	linkToInitialAttemptTs *xsync.Map[string, time.Time]
	initiatorToAttemptTs   *xsync.Map[string, time.Time]
	radioToLinkUpTs        *xsync.Map[string, time.Time]

	explicitLinkDown *xsync.Map[string, bool]

	params Params
}

// NewDampeningTracker constructs an empty tracker.
func NewDampeningTracker(params Params) *DampeningTracker {
	return &DampeningTracker{
		linkToAttemptTs:        xsync.NewMap[string, time.Time](),
		linkToInitialAttemptTs: xsync.NewMap[string, time.Time](),
		initiatorToAttemptTs:   xsync.NewMap[string, time.Time](),
		radioToLinkUpTs:        xsync.NewMap[string, time.Time](),
		explicitLinkDown:       xsync.NewMap[string, bool](),
		params:                 params,
	}
}

// effectiveDampenInterval returns ExtendedDampenInterval once a link's
// oldest unacknowledged attempt is older than ExtendedDampenFailureInterval
// — i.e. chronically broken links back off aggressively.
func (d *DampeningTracker) effectiveDampenInterval(linkName string, now time.Time) time.Duration {
	initial, ok := d.linkToInitialAttemptTs.Load(linkName)
	if ok && now.Sub(initial) > d.params.ExtendedDampenFailureInterval {
		return d.params.ExtendedDampenInterval
	}
	return d.params.DampenInterval
}

// IsDampened reports whether a new attempt on linkName should be
// suppressed right now.
func (d *DampeningTracker) IsDampened(linkName string, now time.Time) bool {
	last, ok := d.linkToAttemptTs.Load(linkName)
	if !ok {
		return false
	}
	if d.params.IgnoreDampenIntervalAfterResp {
		if down, _ := d.explicitLinkDown.Load(linkName); down {
			return false
		}
	}
	return now.Sub(last) < d.effectiveDampenInterval(linkName, now)
}

// CanInitiatorAttempt enforces bfTimeout pacing: a radio may not be asked
// to initiate a second beamforming attempt while its firmware's internal
// bring-up timeout has not elapsed.
func (d *DampeningTracker) CanInitiatorAttempt(initiatorMac string, now time.Time) bool {
	last, ok := d.initiatorToAttemptTs.Load(initiatorMac)
	if !ok {
		return true
	}
	return now.Sub(last) >= d.params.BfTimeout
}

// CanP2mpAssociate enforces p2mpAssocDelay: do not emit two LINK_UP
// commands from the same radio within that interval.
func (d *DampeningTracker) CanP2mpAssociate(initiatorMac string, now time.Time) bool {
	last, ok := d.initiatorToAttemptTs.Load(initiatorMac)
	if !ok {
		return true
	}
	return now.Sub(last) >= d.params.P2mpAssocDelay
}

// RecordAttempt marks linkName/initiatorMac as just attempted.
func (d *DampeningTracker) RecordAttempt(linkName, initiatorMac string, now time.Time) {
	d.linkToAttemptTs.Store(linkName, now)
	d.linkToInitialAttemptTs.LoadOrStore(linkName, now)
	d.initiatorToAttemptTs.Store(initiatorMac, now)
	d.explicitLinkDown.Delete(linkName)
}

// RecordLinkUp clears the initial-attempt bookkeeping (the attempt is now
// acknowledged) and stamps the radio's most recent successful LINK_UP.
func (d *DampeningTracker) RecordLinkUp(linkName, radioMac string, now time.Time) {
	d.linkToInitialAttemptTs.Delete(linkName)
	d.radioToLinkUpTs.Store(radioMac, now)
}

// RecordLinkDown marks an explicit LINK_DOWN event (enabling the
// ignoreDampenIntervalAfterResp bypass) and clears the radio's
// most-recent-LINK_UP bookkeeping.
func (d *DampeningTracker) RecordLinkDown(linkName, radioMac string) {
	d.explicitLinkDown.Store(linkName, true)
	d.radioToLinkUpTs.Delete(radioMac)
}

// LastLinkUp returns when radioMac last had a successful LINK_UP, if any.
func (d *DampeningTracker) LastLinkUp(radioMac string) (time.Time, bool) {
	return d.radioToLinkUpTs.Load(radioMac)
}

// CleanupOffline drops dampening entries for linkNames whose endpoints are
// now both offline (or, for radioMacs, all links to a CN are offline),
// ensuring the maps cannot grow unbounded.
func (d *DampeningTracker) CleanupOffline(linkNames, radioMacs []string) {
	for _, name := range linkNames {
		d.linkToAttemptTs.Delete(name)
		d.linkToInitialAttemptTs.Delete(name)
		d.explicitLinkDown.Delete(name)
	}
	for _, mac := range radioMacs {
		d.initiatorToAttemptTs.Delete(mac)
		d.radioToLinkUpTs.Delete(mac)
	}
}
