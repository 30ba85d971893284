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

package configstore

import "sort"

// Action is one post-change effect a config SET may trigger on the minion
// side. The zero value is never produced by ComputeActions.
type Action int

const (
	ActionNone Action = iota
	ActionReboot
	ActionRestartMinion
	ActionReloadFirmware
	ActionRestartRouting
	ActionRestartStats
	ActionRestartLogtail
	ActionRestartDHCP
	ActionRestartWebUI
	ActionReloadResolver
	ActionReloadNTP
	ActionReloadSSHCA
	ActionReloadFirewall
	ActionReloadTimezone
	ActionUpdateRoutingLinkMetrics
	ActionUpdateVerbosity
	ActionSetFwParams
	ActionSetFwParamsSyncOrReloadFirmware
)

// tier implements the total order REBOOT > RESTART_MINION >
// RELOAD_FIRMWARE > RESTART_ROUTING > daemon-restarts > RELOAD_* >
// SET_FW_PARAMS. Lower tier numbers are stronger and subsume higher ones.
var tier = map[Action]int{
	ActionReboot:                          0,
	ActionRestartMinion:                   1,
	ActionReloadFirmware:                  2,
	ActionRestartRouting:                  3,
	ActionRestartStats:                    4,
	ActionRestartLogtail:                  4,
	ActionRestartDHCP:                     4,
	ActionRestartWebUI:                    4,
	ActionUpdateRoutingLinkMetrics:        4,
	ActionUpdateVerbosity:                 4,
	ActionReloadResolver:                  5,
	ActionReloadNTP:                       5,
	ActionReloadSSHCA:                     5,
	ActionReloadFirewall:                  5,
	ActionReloadTimezone:                  5,
	ActionSetFwParamsSyncOrReloadFirmware: 6,
	ActionSetFwParams:                     7,
}

func strongestOf(actions []Action) Action {
	best := Action(0)
	bestTier := 1 << 30
	for _, a := range actions {
		if t, ok := tier[a]; ok && t < bestTier {
			best, bestTier = a, t
		}
	}
	return best
}

// ComputeActions derives the deduplicated, order-resolved action set for a
// list of changed leaf paths: for each path, the strongest action among
// the paths it maps to in registry wins; across paths, only actions at the
// strongest tier present survive (weaker, implied-by-superset actions are
// dropped).
func ComputeActions(changedPaths []string, registry map[string][]Action) []Action {
	present := make(map[Action]bool)
	for _, path := range changedPaths {
		acts, ok := registry[path]
		if !ok || len(acts) == 0 {
			continue
		}
		present[strongestOf(acts)] = true
	}
	if len(present) == 0 {
		return nil
	}

	minTier := 1 << 30
	for a := range present {
		if t := tier[a]; t < minTier {
			minTier = t
		}
	}

	var out []Action
	for a := range present {
		if tier[a] == minTier {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExecutionPlan is the final, ordered instruction ConfigApp executes after
// ComputeActions: an immediate set plus, for REBOOT and RELOAD_FIRMWARE,
// a delayed follow-up so the SET's ACK egresses first.
type ExecutionPlan struct {
	Immediate []Action
	// Delayed, when non-nil, fires after kDelayedActionTime.
	Delayed *Action
}

// KDelayedActionTime is the ~2s grace period before REBOOT or the
// RELOAD_FIRMWARE-triggered RESTART_MINION fires, so the current SET's ACK
// flushes to the caller first.
const KDelayedActionTime = "2s"

// BuildExecutionPlan turns a computed action set into an execution plan.
func BuildExecutionPlan(actions []Action) ExecutionPlan {
	plan := ExecutionPlan{}
	for _, a := range actions {
		switch a {
		case ActionReboot:
			reboot := ActionReboot
			plan.Delayed = &reboot
		case ActionReloadFirmware:
			plan.Immediate = append(plan.Immediate, a)
			restart := ActionRestartMinion
			plan.Delayed = &restart
		default:
			plan.Immediate = append(plan.Immediate, a)
		}
	}
	return plan
}
