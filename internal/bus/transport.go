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

package bus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// ErrHandshakeTooShort is returned by ParseZapHandshake on a truncated blob.
var ErrHandshakeTooShort = errors.New("zap handshake blob too short")

// ZapHandshake is the observational auth metadata the Broker echoes back.
// Acceptance is always unconditional per spec: the blob is logged, never
// validated.
type ZapHandshake struct {
	Key   string
	Value []byte
}

// ParseZapHandshake decodes the wire layout
// [1 byte keylen][keylen bytes key][4 bytes big-endian vallen][vallen bytes value].
func ParseZapHandshake(blob []byte) (ZapHandshake, error) {
	if len(blob) < 1 {
		return ZapHandshake{}, ErrHandshakeTooShort
	}
	keyLen := int(blob[0])
	if len(blob) < 1+keyLen+4 {
		return ZapHandshake{}, ErrHandshakeTooShort
	}
	key := string(blob[1 : 1+keyLen])
	valLen := int(binary.BigEndian.Uint32(blob[1+keyLen : 1+keyLen+4]))
	if len(blob) < 1+keyLen+4+valLen {
		return ZapHandshake{}, ErrHandshakeTooShort
	}
	val := blob[1+keyLen+4 : 1+keyLen+4+valLen]
	return ZapHandshake{Key: key, Value: val}, nil
}

// ZapAcceptStatus is always returned: the blob is purely observational for
// address logging, acceptance is unconditional.
const ZapAcceptStatus = 200

// writeFrame writes a length-prefixed frame: 4-byte big-endian length
// followed by payload.
func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return buf, nil
}

// Transport is the controller<->minion byte-stream abstraction: one
// bidirectional stream per minion, carrying (destAppId, senderAppId,
// serialized-Message) tuples per spec, i.e. whole Envelopes.
type Transport interface {
	Send(env Envelope) error
	// Recv delivers envelopes arriving from the peer. Closed when the
	// transport is torn down.
	Recv() <-chan Envelope
	Close() error
}

// TCPTransport is the one bidirectional byte stream per minion described in
// the external interfaces. Frames are length-prefixed msgp-encoded
// Envelopes.
type TCPTransport struct {
	conn    net.Conn
	inbound chan Envelope
	logger  *slog.Logger
}

// NewTCPTransport wraps conn and starts the background read loop that
// populates Recv(). Writes happen synchronously from Send.
func NewTCPTransport(ctx context.Context, conn net.Conn, logger *slog.Logger) *TCPTransport {
	t := &TCPTransport{
		conn:    conn,
		inbound: make(chan Envelope, inboxDepth),
		logger:  logger,
	}
	go t.readLoop(ctx)
	return t
}

func (t *TCPTransport) readLoop(ctx context.Context) {
	defer close(t.inbound)
	for {
		raw, err := readFrame(t.conn)
		if err != nil {
			if ctx.Err() == nil {
				t.logger.Warn("transport read loop ended", "error", err)
			}
			return
		}
		env, err := UnmarshalEnvelope(raw)
		if err != nil {
			t.logger.Warn("dropping malformed envelope", "error", err)
			continue
		}
		select {
		case t.inbound <- *env:
		case <-ctx.Done():
			return
		}
	}
}

func (t *TCPTransport) Send(env Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return writeFrame(t.conn, raw)
}

func (t *TCPTransport) Recv() <-chan Envelope { return t.inbound }

func (t *TCPTransport) Close() error { return t.conn.Close() }
