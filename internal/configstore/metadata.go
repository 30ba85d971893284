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

import "strings"

// DefaultPathRegistry is the static path->action-set metadata table the
// minion's ConfigApp consults when diffing old vs. new config. Paths ending
// in "*" match any suffix under that prefix (e.g. per-radio-MAC override
// scopes), checked by RegistryActionsFor.
var DefaultPathRegistry = map[string][]Action{
	"sysParams.managedConfig":     {ActionRestartMinion},
	"sysParams.ipv6Enabled":       {ActionRestartMinion},
	"sysParams.topologyInfo":      {ActionRestartRouting},

	"envParams.OPENR_ENABLED":     {ActionRestartRouting},
	"envParams.OOB_NETNS":         {ActionRestartRouting},

	"statsAgentParams.enabled":    {ActionRestartStats},
	"statsAgentParams.endpoint":   {ActionRestartStats},
	"logTailParams.enabled":       {ActionRestartLogtail},
	"dhcpParams.enabled":          {ActionRestartDHCP},
	"webUIParams.enabled":         {ActionRestartWebUI},

	"sysParams.dnsServers":        {ActionReloadResolver},
	"ntpParams.enabled":           {ActionReloadNTP},
	"sshParams.caCertificate":     {ActionReloadSSHCA},
	"firewallParams.enabled":      {ActionReloadFirewall},
	"sysParams.timezone":          {ActionReloadTimezone},

	"envParams.logLevel":          {ActionUpdateVerbosity},
	"linkParamsBase.metric":       {ActionUpdateRoutingLinkMetrics},

	"radioParamsBase.fwParams.*":     {ActionSetFwParamsSyncOrReloadFirmware},
	"radioParamsOverride.*":          {ActionSetFwParamsSyncOrReloadFirmware},
	"linkParamsBase.fwParams.*":      {ActionSetFwParamsSyncOrReloadFirmware},
	"linkParamsOverride.*":           {ActionSetFwParamsSyncOrReloadFirmware},

	"kvstoreParams.enabled": {ActionReloadFirmware},

	"sysParams.hardwareReset": {ActionReboot},
}

// RegistryActionsFor resolves the action set for path, first checking for
// an exact match, then for the longest registered wildcard prefix ("<p>.*"
// matching any path beginning with "<p>.").
func RegistryActionsFor(registry map[string][]Action, path string) []Action {
	if acts, ok := registry[path]; ok {
		return acts
	}
	var best []Action
	bestLen := -1
	for key, acts := range registry {
		prefix, isWildcard := strings.CutSuffix(key, "*")
		if !isWildcard {
			continue
		}
		if strings.HasPrefix(path, prefix) && len(prefix) > bestLen {
			best, bestLen = acts, len(prefix)
		}
	}
	return best
}

// ActionsForPaths is the registry-aware counterpart to ComputeActions: it
// resolves each path (including wildcard scopes) before computing the
// order-resolved action set.
func ActionsForPaths(changedPaths []string, registry map[string][]Action) []Action {
	resolved := make(map[string][]Action, len(changedPaths))
	for _, p := range changedPaths {
		resolved[p] = RegistryActionsFor(registry, p)
	}
	return ComputeActions(changedPaths, resolved)
}
