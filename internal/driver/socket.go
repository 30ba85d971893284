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

package driver

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

// UnixSocket is the production Socket: a length-prefixed JSON stream over
// a unix domain socket to the netlink driver process, the same
// request/response pairing DriverApp.Run expects from any Socket.
// DriverMessage.Inner carries the firmware-facing PassThru bytes untouched;
// this type only frames RadioMac+Inner for the wire.
type UnixSocket struct {
	conn net.Conn
}

// DialUnixSocket connects to the driver process's listening socket at path.
// A dial timeout bounds startup ordering races against the driver process.
func DialUnixSocket(path string, timeout time.Duration) (*UnixSocket, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial driver socket %s: %w", path, err)
	}
	return &UnixSocket{conn: conn}, nil
}

type wireMessage struct {
	RadioMac string `json:"radioMac"`
	Inner    []byte `json:"inner"`
}

func (s *UnixSocket) Write(msg DriverMessage) error {
	payload, err := json.Marshal(wireMessage{RadioMac: msg.RadioMac, Inner: msg.Inner})
	if err != nil {
		return fmt.Errorf("marshal driver message: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := s.conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write driver frame length: %w", err)
	}
	if _, err := s.conn.Write(payload); err != nil {
		return fmt.Errorf("write driver frame payload: %w", err)
	}
	return nil
}

func (s *UnixSocket) Read() (DriverMessage, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(s.conn, lenBuf[:]); err != nil {
		return DriverMessage{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.conn, buf); err != nil {
		return DriverMessage{}, fmt.Errorf("read driver frame payload: %w", err)
	}
	var wm wireMessage
	if err := json.Unmarshal(buf, &wm); err != nil {
		return DriverMessage{}, fmt.Errorf("unmarshal driver message: %w", err)
	}
	return DriverMessage{RadioMac: wm.RadioMac, Inner: wm.Inner}, nil
}

func (s *UnixSocket) Close() error { return s.conn.Close() }
