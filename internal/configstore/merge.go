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

// Merge deep-merges layers in order, later layers winning. Scalars and
// arrays replace; objects merge key-by-key recursively. nil layers are
// treated as empty.
func Merge(layers ...JSONObject) JSONObject {
	out := JSONObject{}
	for _, layer := range layers {
		mergeInto(out, layer)
	}
	return out
}

func mergeInto(dst, src JSONObject) {
	for k, v := range src {
		srcObj, srcIsObj := v.(JSONObject)
		if !srcIsObj {
			if m, ok := v.(map[string]any); ok {
				srcObj, srcIsObj = JSONObject(m), true
			}
		}
		if srcIsObj {
			dstObj, dstIsObj := dst[k].(JSONObject)
			if !dstIsObj {
				dstObj = JSONObject{}
			}
			mergeInto(dstObj, srcObj)
			dst[k] = dstObj
			continue
		}
		// scalars and arrays replace outright.
		dst[k] = v
	}
}

// Diff returns the set of dotted leaf paths whose value differs between
// oldCfg and newCfg (added, removed, or changed). A path is a leaf the
// moment the value at it is not itself an object, matching the metadata
// registry's granularity.
func Diff(oldCfg, newCfg JSONObject) []string {
	var paths []string
	diffWalk("", oldCfg, newCfg, &paths)
	return paths
}

func diffWalk(prefix string, oldCfg, newCfg JSONObject, out *[]string) {
	seen := make(map[string]bool, len(oldCfg)+len(newCfg))
	for k := range oldCfg {
		seen[k] = true
	}
	for k := range newCfg {
		seen[k] = true
	}
	for k := range seen {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		oldVal, oldOK := oldCfg[k]
		newVal, newOK := newCfg[k]

		oldObj, oldIsObj := asObject(oldVal)
		newObj, newIsObj := asObject(newVal)
		if oldIsObj && newIsObj {
			diffWalk(path, oldObj, newObj, out)
			continue
		}
		if !oldOK || !newOK || !deepEqualScalar(oldVal, newVal) {
			*out = append(*out, path)
		}
	}
}

func asObject(v any) (JSONObject, bool) {
	if o, ok := v.(JSONObject); ok {
		return o, true
	}
	if m, ok := v.(map[string]any); ok {
		return JSONObject(m), true
	}
	return nil, false
}

func deepEqualScalar(a, b any) bool {
	// json round-tripped values are compared by their json.Marshal form
	// (jsonEqualRepr) for scalars and slices; this avoids reflect.DeepEqual's
	// surprises with numeric types decoded from JSON (float64 vs int).
	return jsonEqualRepr(a) == jsonEqualRepr(b)
}
