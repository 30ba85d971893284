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

package binarystar

import (
	"encoding/binary"
	"fmt"
	"time"
)

// wireMessage is what gets published on the peer pub/sub topic. The state
// byte is the primary field per spec.md §4.7's "one-byte state"; the
// sender id, activeSince timestamp, and version are appended so the peer
// can ignore its own publishes, break ACTIVE/ACTIVE ties, and enforce the
// version-equality precondition, without a second channel.
func encodeWireMessage(senderID string, state State, activeSince time.Time, version string) []byte {
	buf := make([]byte, 0, 1+len(senderID)+1+8+len(version))
	buf = append(buf, byte(len(senderID)))
	buf = append(buf, senderID...)
	buf = append(buf, byte(state))
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(activeSince.UnixNano()))
	buf = append(buf, tsBuf[:]...)
	buf = append(buf, version...)
	return buf
}

type wireMessage struct {
	SenderID    string
	State       State
	ActiveSince time.Time
	Version     string
}

func decodeWireMessage(b []byte) (wireMessage, error) {
	if len(b) < 1 {
		return wireMessage{}, fmt.Errorf("empty binarystar message")
	}
	idLen := int(b[0])
	if len(b) < 1+idLen+1+8 {
		return wireMessage{}, fmt.Errorf("truncated binarystar message")
	}
	senderID := string(b[1 : 1+idLen])
	rest := b[1+idLen:]
	state := State(rest[0])
	activeSince := time.Unix(0, int64(binary.BigEndian.Uint64(rest[1:9])))
	version := string(rest[9:])
	return wireMessage{SenderID: senderID, State: state, ActiveSince: activeSince, Version: version}, nil
}
