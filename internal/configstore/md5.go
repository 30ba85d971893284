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

import (
	"crypto/md5" //nolint:gosec // configMd5 is an identity fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalMd5 returns the MD5 (hex) of the canonicalized JSON
// serialization of cfg. encoding/json already sorts map keys on marshal,
// so json.Marshal is definitionally canonical here; this is the
// configMd5 every StatusReport is checked against.
func CanonicalMd5(cfg JSONObject) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("canonicalize config: %w", err)
	}
	sum := md5.Sum(raw) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}

// jsonEqualRepr renders a value through json.Marshal so Diff can compare
// heterogeneous JSON-decoded scalars (float64 vs int, etc.) by their
// canonical textual form rather than via reflect.DeepEqual's strict typing.
func jsonEqualRepr(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
