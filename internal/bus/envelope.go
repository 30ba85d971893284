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
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/tinylib/msgp/msgp"
)

// Envelope is the unit the Broker routes: one message addressed by
// (destNodeId, destAppId), tagged with the sender app and a MessageType,
// carrying an opaque binary Payload (the typed body, already encoded by the
// originating app).
type Envelope struct {
	DestNodeID   string
	DestAppID    string
	SenderAppID  string
	Type         MessageType
	Compressed   bool
	Payload      []byte
}

// EncodeMsg writes the envelope in MessagePack form using the msgp runtime
// primitives directly (no generated code: see repository DESIGN.md).
func (e *Envelope) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(6); err != nil {
		return err
	}
	fields := []struct {
		name string
		fn   func() error
	}{
		{"dest_node", func() error { return w.WriteString(e.DestNodeID) }},
		{"dest_app", func() error { return w.WriteString(e.DestAppID) }},
		{"sender_app", func() error { return w.WriteString(e.SenderAppID) }},
		{"type", func() error { return w.WriteInt(int(e.Type)) }},
		{"compressed", func() error { return w.WriteBool(e.Compressed) }},
		{"payload", func() error { return w.WriteBytes(e.Payload) }},
	}
	for _, f := range fields {
		if err := w.WriteString(f.name); err != nil {
			return err
		}
		if err := f.fn(); err != nil {
			return fmt.Errorf("encode envelope field %s: %w", f.name, err)
		}
	}
	return nil
}

// DecodeMsg reads an envelope previously written by EncodeMsg. Unknown map
// keys are skipped so the wire format can grow without breaking old
// readers, mirroring the teacher's tolerant decode style.
func (e *Envelope) DecodeMsg(r *msgp.Reader) error {
	sz, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < sz; i++ {
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		switch key {
		case "dest_node":
			e.DestNodeID, err = r.ReadString()
		case "dest_app":
			e.DestAppID, err = r.ReadString()
		case "sender_app":
			e.SenderAppID, err = r.ReadString()
		case "type":
			var v int
			v, err = r.ReadInt()
			e.Type = MessageType(v)
		case "compressed":
			e.Compressed, err = r.ReadBool()
		case "payload":
			e.Payload, err = r.ReadBytes(nil)
		default:
			err = r.Skip()
		}
		if err != nil {
			return fmt.Errorf("decode envelope field %s: %w", key, err)
		}
	}
	return nil
}

// Marshal serializes the envelope to bytes via a msgp.Writer over an
// in-memory buffer.
func (e *Envelope) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := e.EncodeMsg(w); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalEnvelope parses bytes previously produced by Marshal.
func UnmarshalEnvelope(b []byte) (*Envelope, error) {
	r := msgp.NewReader(bytes.NewReader(b))
	e := &Envelope{}
	if err := e.DecodeMsg(r); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return e, nil
}

// CompressPayload replaces Payload with its zlib-compressed form and sets
// Compressed. No compression library appears anywhere in the example
// corpus, so compress/zlib is used directly (see DESIGN.md).
func (e *Envelope) CompressPayload() error {
	if e.Compressed {
		return nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(e.Payload); err != nil {
		return fmt.Errorf("zlib compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zlib compress close: %w", err)
	}
	e.Payload = buf.Bytes()
	e.Compressed = true
	return nil
}

// DecompressPayload reverses CompressPayload. Apps must always see a
// decompressed payload per the bus's compression contract: the Broker
// calls this before local dispatch.
func (e *Envelope) DecompressPayload() error {
	if !e.Compressed {
		return nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(e.Payload))
	if err != nil {
		return fmt.Errorf("zlib decompress: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("zlib decompress read: %w", err)
	}
	e.Payload = out
	e.Compressed = false
	return nil
}
