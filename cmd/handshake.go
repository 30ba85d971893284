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

package cmd

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/tgnet/e2e/internal/bus"
)

// readHandshakeFrame reads one length-prefixed bus.Envelope frame from
// conn, the same wire shape bus.TCPTransport uses once it takes over, just
// read directly here since the transport isn't constructed until the
// sending minion's nodeID is known.
func readHandshakeFrame(conn net.Conn) (bus.Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return bus.Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return bus.Envelope{}, fmt.Errorf("read handshake payload: %w", err)
	}
	env, err := bus.UnmarshalEnvelope(buf)
	if err != nil {
		return bus.Envelope{}, fmt.Errorf("unmarshal handshake envelope: %w", err)
	}
	return *env, nil
}

// writeHandshakeFrame writes env as a length-prefixed frame, the HELLO a
// freshly dialed minion sends before the controller constructs its
// Transport wrapper.
func writeHandshakeFrame(conn net.Conn, env bus.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal handshake envelope: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(raw)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write handshake length: %w", err)
	}
	if _, err := conn.Write(raw); err != nil {
		return fmt.Errorf("write handshake payload: %w", err)
	}
	return nil
}
