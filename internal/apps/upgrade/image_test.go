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

package upgrade

import (
	"bytes"
	"crypto/md5" //nolint:gosec // test-only, matches image.go's integrity check
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ulikunitz/xz"
)

func buildImageBlob(t *testing.T, body []byte, version string) []byte {
	t.Helper()
	sum := md5.Sum(body) //nolint:gosec
	md5Hex := hex.EncodeToString(sum[:])

	var trailer bytes.Buffer
	trailer.WriteString(imageMetaTrailerMagic)
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(md5Hex)))
	trailer.Write(lenBuf)
	trailer.WriteString(md5Hex)
	trailer.WriteString(version)

	out := append([]byte{}, body...)
	out = append(out, trailer.Bytes()...)
	return out
}

func TestDecodeAndVerifyUncompressed(t *testing.T) {
	body := []byte("firmware-bytes-go-here")
	blob := buildImageBlob(t, body, "v1.2.3")

	meta, err := DecodeAndVerify(bytes.NewReader(blob), false, "")
	if err != nil {
		t.Fatalf("DecodeAndVerify: %v", err)
	}
	if meta.Version != "v1.2.3" {
		t.Fatalf("expected version v1.2.3, got %q", meta.Version)
	}

	sum := md5.Sum(body) //nolint:gosec
	if meta.MD5 != hex.EncodeToString(sum[:]) {
		t.Fatalf("embedded MD5 mismatch")
	}
}

func TestDecodeAndVerifyMatchesExpectedMD5(t *testing.T) {
	body := []byte("another-image-payload")
	blob := buildImageBlob(t, body, "v2.0.0")
	sum := md5.Sum(body) //nolint:gosec
	expected := hex.EncodeToString(sum[:])

	if _, err := DecodeAndVerify(bytes.NewReader(blob), false, expected); err != nil {
		t.Fatalf("DecodeAndVerify with matching expected MD5: %v", err)
	}
}

func TestDecodeAndVerifyRejectsWrongExpectedMD5(t *testing.T) {
	body := []byte("payload")
	blob := buildImageBlob(t, body, "v1.0.0")

	_, err := DecodeAndVerify(bytes.NewReader(blob), false, "0000000000000000000000000000000")
	if !errors.Is(err, ErrImageMD5Mismatch) {
		t.Fatalf("expected ErrImageMD5Mismatch, got %v", err)
	}
}

func TestDecodeAndVerifyMissingTrailer(t *testing.T) {
	_, err := DecodeAndVerify(bytes.NewReader([]byte("no trailer here")), false, "")
	if !errors.Is(err, ErrImageMetaMissing) {
		t.Fatalf("expected ErrImageMetaMissing, got %v", err)
	}
}

func TestDecodeAndVerifyXZCompressed(t *testing.T) {
	body := []byte("compressed firmware payload")
	blob := buildImageBlob(t, body, "v3.1.4")

	var compressed bytes.Buffer
	w, err := xz.NewWriter(&compressed)
	if err != nil {
		t.Fatalf("xz.NewWriter: %v", err)
	}
	if _, err := w.Write(blob); err != nil {
		t.Fatalf("xz write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}

	meta, err := DecodeAndVerify(&compressed, true, "")
	if err != nil {
		t.Fatalf("DecodeAndVerify xz: %v", err)
	}
	if meta.Version != "v3.1.4" {
		t.Fatalf("expected version v3.1.4, got %q", meta.Version)
	}
}

func TestParseImageMetaTruncated(t *testing.T) {
	if _, err := parseImageMeta([]byte{0}); err == nil {
		t.Fatal("expected error for truncated trailer")
	}
	if _, err := parseImageMeta([]byte{0, 10, 'a'}); err == nil {
		t.Fatal("expected error when declared MD5 length exceeds remaining bytes")
	}
}
