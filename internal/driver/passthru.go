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

// Package driver models the minion<->netlink-driver boundary: the
// DriverMessage envelope and the PassThru tagged union tunneled through it,
// plus the DriverApp that serializes all outbound traffic to the driver
// process on one socket.
package driver

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxPassThruBytes is the vendor wire format's hard cap: a C struct union
// bounded to 1000 bytes.
const MaxPassThruBytes = 1000

// PassThruType is the tagged union's discriminant.
type PassThruType int

const (
	PassThruUnknown PassThruType = iota
	PassThruSetFwParams
	PassThruGetFwStats
	PassThruScanReq
	PassThruScanResp
)

// PassThru is the opaque firmware command/response tunneled through the
// netlink driver. msgType/dest/cookie are the dispatch key; TLVBody is the
// vendor-specific payload. Cookie orders delivery: no reordering is allowed
// across PassThru messages sharing a cookie.
type PassThru struct {
	DriverType PassThruType
	Dest       string // radio MAC
	Cookie     uint32
	TLVBody    []byte
}

// ErrPassThruTooLarge is returned by Encode when the encoded form would
// exceed MaxPassThruBytes, the encoder-side assertion of the 1000-byte
// vendor API limit.
var ErrPassThruTooLarge = errors.New("driver: passthru message exceeds 1000-byte vendor limit")

// Encode serializes p as {driverType(4) | cookie(4) | destLen(2) | dest |
// tlvLen(4) | tlv}, enforcing the 1000-byte cap.
func (p *PassThru) Encode() ([]byte, error) {
	size := 4 + 4 + 2 + len(p.Dest) + 4 + len(p.TLVBody)
	if size > MaxPassThruBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrPassThruTooLarge, size)
	}
	buf := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(p.DriverType))
	off += 4
	binary.BigEndian.PutUint32(buf[off:], p.Cookie)
	off += 4
	binary.BigEndian.PutUint16(buf[off:], uint16(len(p.Dest)))
	off += 2
	off += copy(buf[off:], p.Dest)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(p.TLVBody)))
	off += 4
	copy(buf[off:], p.TLVBody)
	return buf, nil
}

// DecodePassThru reverses Encode.
func DecodePassThru(raw []byte) (*PassThru, error) {
	if len(raw) < 14 {
		return nil, fmt.Errorf("driver: passthru message too short (%d bytes)", len(raw))
	}
	off := 0
	driverType := PassThruType(binary.BigEndian.Uint32(raw[off:]))
	off += 4
	cookie := binary.BigEndian.Uint32(raw[off:])
	off += 4
	destLen := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	if len(raw) < off+destLen+4 {
		return nil, errors.New("driver: passthru dest/tlv-length truncated")
	}
	dest := string(raw[off : off+destLen])
	off += destLen
	tlvLen := int(binary.BigEndian.Uint32(raw[off:]))
	off += 4
	if len(raw) < off+tlvLen {
		return nil, errors.New("driver: passthru tlv body truncated")
	}
	tlv := raw[off : off+tlvLen]
	return &PassThru{DriverType: driverType, Dest: dest, Cookie: cookie, TLVBody: tlv}, nil
}

// DriverMessage is the body carried over the minion<->driver pair socket:
// radioMac plus an opaque inner firmware buffer.
type DriverMessage struct {
	RadioMac string
	Inner    []byte
}

// CookieQueue enforces per-cookie FIFO dispatch: PassThru messages sharing
// a cookie must be delivered in the order they were enqueued, with no
// reordering across types.
type CookieQueue struct {
	queues map[uint32][]*PassThru
}

// NewCookieQueue constructs an empty queue set.
func NewCookieQueue() *CookieQueue {
	return &CookieQueue{queues: make(map[uint32][]*PassThru)}
}

// Enqueue appends p to its cookie's FIFO.
func (q *CookieQueue) Enqueue(p *PassThru) {
	q.queues[p.Cookie] = append(q.queues[p.Cookie], p)
}

// DispatchNext pops and returns the oldest queued message for cookie, or
// nil if none remain.
func (q *CookieQueue) DispatchNext(cookie uint32) *PassThru {
	items := q.queues[cookie]
	if len(items) == 0 {
		return nil
	}
	next := items[0]
	remaining := items[1:]
	if len(remaining) == 0 {
		delete(q.queues, cookie)
	} else {
		q.queues[cookie] = remaining
	}
	return next
}
