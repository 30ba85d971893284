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

package ignition

import (
	"sort"
	"time"

	"github.com/tgnet/e2e/internal/topology"
)

// BuildCandidates implements spec.md §4.2 steps 1-5: enumerate down
// wireless links, eliminate dampened ones, apply the backup-CN-link
// preference, round-robin one candidate per initiator per pass, and pace
// by bfTimeout/p2mpAssocDelay. roundRobinIdx and cnReachableSince are
// mutated in place so state carries across passes.
func BuildCandidates(
	topo *topology.TopologyWrapper,
	damp *DampeningTracker,
	params Params,
	roundRobinIdx map[string]int,
	cnReachableSince map[string]time.Time,
	now time.Time,
) []topology.IgnitionCandidate {
	nodesByName := make(map[string]topology.Node)
	for _, n := range topo.Nodes() {
		nodesByName[n.Name] = n
	}

	var down []topology.Link
	for _, l := range topo.Links() {
		if l.Type != topology.LinkWireless || l.IsAlive {
			continue
		}
		if damp.IsDampened(l.Name, now) {
			dampenedAttempts.Inc()
			continue
		}
		down = append(down, l)
	}

	down = preferPrimaryOverBackup(down, nodesByName, cnReachableSince, params, now)

	byInitiator := make(map[string][]topology.Link)
	for _, l := range down {
		initiator, _ := resolveDirection(l, nodesByName)
		byInitiator[initiator] = append(byInitiator[initiator], l)
	}

	var initiatorNames []string
	for name := range byInitiator {
		initiatorNames = append(initiatorNames, name)
	}
	sort.Strings(initiatorNames)

	var out []topology.IgnitionCandidate
	for _, initiator := range initiatorNames {
		links := byInitiator[initiator]
		sort.Slice(links, func(i, j int) bool { return links[i].Name < links[j].Name })

		idx := roundRobinIdx[initiator] % len(links)
		l := links[idx]
		roundRobinIdx[initiator] = (idx + 1) % len(links)

		_, responderNode := resolveDirection(l, nodesByName)
		initiatorMac := firstRadioMac(nodesByName[initiator])
		responderMac := firstRadioMac(nodesByName[responderNode])
		if initiatorMac == "" || responderMac == "" {
			continue
		}
		if !damp.CanInitiatorAttempt(initiatorMac, now) {
			continue
		}
		if !damp.CanP2mpAssociate(initiatorMac, now) {
			continue
		}

		out = append(out, topology.IgnitionCandidate{
			InitiatorRadioMac: initiatorMac,
			ResponderRadioMac: responderMac,
			LinkName:          l.Name,
			ANode:             initiator,
			ZNode:             responderNode,
		})
	}
	return out
}

// resolveDirection picks the DN endpoint as initiator: a CN never
// initiates ignition.
func resolveDirection(l topology.Link, nodesByName map[string]topology.Node) (initiator, responder string) {
	a := nodesByName[l.ANode]
	if a.Type == topology.NodeTypeCN {
		return l.ZNode, l.ANode
	}
	return l.ANode, l.ZNode
}

func firstRadioMac(n topology.Node) string {
	if len(n.RadioMacs) == 0 {
		return ""
	}
	return n.RadioMacs[0]
}

// preferPrimaryOverBackup implements the backup-CN-link policy: when a CN
// is reachable by both a primary and a backup wireless link, drop the
// backup candidate unless backupCnLinkInterval has elapsed since the CN
// was first seen with both candidates (the earliest time it could have been
// ignited), in which case the backup gets a turn instead.
func preferPrimaryOverBackup(
	links []topology.Link,
	nodesByName map[string]topology.Node,
	cnReachableSince map[string]time.Time,
	params Params,
	now time.Time,
) []topology.Link {
	byCN := make(map[string][]topology.Link)
	var nonCN []topology.Link
	for _, l := range links {
		cn := cnEndpoint(l, nodesByName)
		if cn == "" {
			nonCN = append(nonCN, l)
			continue
		}
		byCN[cn] = append(byCN[cn], l)
	}

	out := append([]topology.Link(nil), nonCN...)
	for cn, cnLinks := range byCN {
		if len(cnLinks) == 1 {
			out = append(out, cnLinks[0])
			continue
		}
		var primary, backup *topology.Link
		for i := range cnLinks {
			if cnLinks[i].IsBackupCnLink {
				backup = &cnLinks[i]
			} else if primary == nil {
				primary = &cnLinks[i]
			}
		}
		if primary == nil {
			out = append(out, *backup)
			continue
		}
		if backup == nil {
			out = append(out, *primary)
			continue
		}
		since, ok := cnReachableSince[cn]
		if ok && now.Sub(since) >= params.BackupCnLinkInterval {
			out = append(out, *backup)
		} else {
			out = append(out, *primary)
		}
		if !ok {
			cnReachableSince[cn] = now
		}
	}
	return out
}

func cnEndpoint(l topology.Link, nodesByName map[string]topology.Node) string {
	if nodesByName[l.ANode].Type == topology.NodeTypeCN {
		return l.ANode
	}
	if nodesByName[l.ZNode].Type == topology.NodeTypeCN {
		return l.ZNode
	}
	return ""
}
