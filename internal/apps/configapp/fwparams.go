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

// Package configapp implements ConfigApp on both the controller and minion
// sides: effective config composition and distribution, post-change action
// computation, and runtime firmware parameter patching.
package configapp

import (
	"fmt"
	"strings"

	"github.com/tgnet/e2e/internal/configstore"
	"github.com/tgnet/e2e/internal/driver"
)

// KMaxFwRuntimeCfgPoolSize bounds the pre-emptive per-radio queue of
// sequenced SetFwParams entries; overflow escalates to firmware reload.
const KMaxFwRuntimeCfgPoolSize = 2

// FwConfigParams is one radio's ordered sequence of SetFwParams PassThru
// messages, optionally stamped with a future bwgdIdx to schedule atomic
// application.
type FwConfigParams struct {
	RadioMac string
	Params   []SetFwParams
}

// SetFwParams is one parameter patch destined for a peer radio, optionally
// scheduled at a future BWGD epoch. A zero BwgdIdx means apply immediately,
// per the spec's resolution of the bwgdIdx=0 ambiguity.
type SetFwParams struct {
	PeerMac string
	Key     string
	Value   any
	BwgdIdx uint64
}

// poolOverflowErr is returned by BuildFwConfigParams when a radio's
// pre-emptive queue would exceed KMaxFwRuntimeCfgPoolSize, the signal for
// the caller to escalate to RELOAD_FIRMWARE.
type poolOverflowErr struct {
	radioMac string
}

func (e *poolOverflowErr) Error() string {
	return fmt.Sprintf("configapp: radio %s fw param pool would exceed %d entries", e.radioMac, KMaxFwRuntimeCfgPoolSize)
}

// IsPoolOverflow reports whether err is the pool-overflow escalation signal.
func IsPoolOverflow(err error) bool {
	_, ok := err.(*poolOverflowErr)
	return ok
}

// scope identifies which of the four changed-key scopes a path belongs to:
// radioParamsBase, radioParamsOverride.<mac>, linkParamsBase,
// linkParamsOverride.<mac>.
type scope struct {
	kind string // "radio" or "link"
	mac  string // "" for the *Base scopes
	key  string // leaf param name
}

func classify(path string) (scope, bool) {
	switch {
	case strings.HasPrefix(path, "radioParamsBase.fwParams."):
		return scope{kind: "radio", key: strings.TrimPrefix(path, "radioParamsBase.fwParams.")}, true
	case strings.HasPrefix(path, "radioParamsOverride."):
		rest := strings.TrimPrefix(path, "radioParamsOverride.")
		parts := strings.SplitN(rest, ".fwParams.", 2)
		if len(parts) != 2 {
			return scope{}, false
		}
		return scope{kind: "radio", mac: parts[0], key: parts[1]}, true
	case strings.HasPrefix(path, "linkParamsBase.fwParams."):
		return scope{kind: "link", key: strings.TrimPrefix(path, "linkParamsBase.fwParams.")}, true
	case strings.HasPrefix(path, "linkParamsOverride."):
		rest := strings.TrimPrefix(path, "linkParamsOverride.")
		parts := strings.SplitN(rest, ".fwParams.", 2)
		if len(parts) != 2 {
			return scope{}, false
		}
		return scope{kind: "link", mac: parts[0], key: parts[1]}, true
	}
	return scope{}, false
}

// BuildFwConfigParams splits changedPaths by scope and builds one
// FwConfigParams per known peer radio, holding at most
// KMaxFwRuntimeCfgPoolSize pending entries (queuedCount, keyed by radio
// MAC) before returning a pool-overflow error for that radio.
func BuildFwConfigParams(changedPaths []string, newCfg configstore.JSONObject, knownPeers []string, queuedCount map[string]int, bwgdIdx uint64) (map[string]*FwConfigParams, error) {
	out := map[string]*FwConfigParams{}

	addParam := func(radioMac, key string, value any) error {
		fc, ok := out[radioMac]
		if !ok {
			fc = &FwConfigParams{RadioMac: radioMac}
			out[radioMac] = fc
		}
		if bwgdIdx != 0 {
			projected := queuedCount[radioMac] + len(fc.Params) + 1
			if projected > KMaxFwRuntimeCfgPoolSize {
				return &poolOverflowErr{radioMac: radioMac}
			}
		}
		fc.Params = append(fc.Params, SetFwParams{PeerMac: radioMac, Key: key, Value: value, BwgdIdx: bwgdIdx})
		return nil
	}

	for _, path := range changedPaths {
		sc, ok := classify(path)
		if !ok {
			continue
		}
		value := lookupPath(newCfg, path)

		targets := knownPeers
		if sc.mac != "" {
			targets = []string{sc.mac}
		}
		for _, mac := range targets {
			if err := addParam(mac, sc.key, value); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func lookupPath(cfg configstore.JSONObject, path string) any {
	cur := any(cfg)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(configstore.JSONObject)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

// EncodePassThrus turns a FwConfigParams into one SetFwParams PassThru per
// parameter, sharing a cookie so the driver dispatches them in the order
// built.
func (fc *FwConfigParams) EncodePassThrus(cookie uint32) []*driver.PassThru {
	out := make([]*driver.PassThru, 0, len(fc.Params))
	for _, p := range fc.Params {
		out = append(out, &driver.PassThru{
			DriverType: driver.PassThruSetFwParams,
			Dest:       p.PeerMac,
			Cookie:     cookie,
			TLVBody:    []byte(fmt.Sprintf("%s=%v@%d", p.Key, p.Value, p.BwgdIdx)),
		})
	}
	return out
}
