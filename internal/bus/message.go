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

// Package bus implements the controller/minion message bus: the Envelope
// wire format, the app inbox abstraction, and the Broker that routes
// envelopes between local app inboxes and the TCP transport.
package bus

// MessageType is a closed enum over every payload the bus carries. It is a
// tagged union in spirit: the Envelope's Type field says how to interpret
// Payload.
type MessageType int

const (
	MsgUnknown MessageType = iota
	// Liveness
	MsgDealerEcho
	// StatusApp
	MsgStatusReport
	MsgE2EAck
	// ConfigApp
	MsgSetMinionConfigReq
	MsgGetMinionConfigReq
	MsgSetFwParams
	MsgFwConfigParams
	// TopologyApp / IgnitionApp
	MsgLinkStatusEvent
	MsgSetLinkStatusReq
	MsgTopologyInfoSync
	// UpgradeApp
	MsgUpgradeGroupReq
	MsgUpgradeStateReport
	// BinaryStarApp
	MsgBstarFeedback
	// ScanApp / SchedulerApp
	MsgScanReq
	MsgScanResp
	// TrafficApp
	MsgTrafficReq
	MsgTrafficResp
	// DriverApp
	MsgDriverMessage
)

var messageTypeNames = map[MessageType]string{
	MsgUnknown:            "UNKNOWN",
	MsgDealerEcho:         "DEALER_ECHO",
	MsgStatusReport:       "STATUS_REPORT",
	MsgE2EAck:             "E2E_ACK",
	MsgSetMinionConfigReq: "SET_MINION_CONFIG_REQ",
	MsgGetMinionConfigReq: "GET_MINION_CONFIG_REQ",
	MsgSetFwParams:        "SET_FW_PARAMS",
	MsgFwConfigParams:     "FW_CONFIG_PARAMS",
	MsgLinkStatusEvent:    "LINK_STATUS_EVENT",
	MsgSetLinkStatusReq:   "SET_LINK_STATUS_REQ",
	MsgTopologyInfoSync:   "TOPOLOGY_INFO_SYNC",
	MsgUpgradeGroupReq:    "UPGRADE_GROUP_REQ",
	MsgUpgradeStateReport: "UPGRADE_STATE_REPORT",
	MsgBstarFeedback:      "BSTAR_FEEDBACK",
	MsgScanReq:            "SCAN_REQ",
	MsgScanResp:           "SCAN_RESP",
	MsgTrafficReq:         "TRAFFIC_REQ",
	MsgTrafficResp:        "TRAFFIC_RESP",
	MsgDriverMessage:      "DRIVER_MESSAGE",
}

func (t MessageType) String() string {
	if s, ok := messageTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// App identities, stable strings addressed by (nodeID, appID) tuples.
const (
	AppBroker      = "Broker"
	AppStatus      = "StatusApp"
	AppTopology    = "TopologyApp"
	AppIgnition    = "IgnitionApp"
	AppConfig      = "ConfigApp"
	AppUpgrade     = "UpgradeApp"
	AppScan        = "ScanApp"
	AppScheduler   = "SchedulerApp"
	AppTraffic     = "TrafficApp"
	AppBinaryStar  = "BinaryStarApp"
	AppDriver      = "DriverApp"
	AppOpenrClient = "OpenrClientApp"
)

// ControllerNodeID is the pseudo node-id apps use when addressing the
// controller itself (e.g. a minion's reply envelopes).
const ControllerNodeID = "controller"
