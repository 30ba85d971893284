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

// Package configstore owns the six layered config sources, their merge
// into an effective per-node config, the configMd5 invariant, and the
// static path->action registry ConfigApp consults when diffing.
package configstore

import "sync"

// JSONObject is a generic deep-mergeable configuration document.
type JSONObject = map[string]any

// Layers holds the six sources merge resolves, later layers winning:
// base (by software version), firmware base (by firmware version),
// hardware base (by hardware type), network overrides, automated node
// overrides, manual node overrides.
type Layers struct {
	Base               map[string]JSONObject // keyed by software version
	FirmwareBase       map[string]JSONObject // keyed by firmware version
	HardwareBase       map[string]JSONObject // keyed by hardware type
	NetworkOverrides   JSONObject
	AutoNodeOverrides  map[string]JSONObject // keyed by node name
	NodeOverrides      map[string]JSONObject // keyed by node name
}

// NewLayers returns an empty Layers with every map allocated.
func NewLayers() Layers {
	return Layers{
		Base:              make(map[string]JSONObject),
		FirmwareBase:      make(map[string]JSONObject),
		HardwareBase:      make(map[string]JSONObject),
		NetworkOverrides:  make(JSONObject),
		AutoNodeOverrides: make(map[string]JSONObject),
		NodeOverrides:     make(map[string]JSONObject),
	}
}

// NodeVersions identifies which layer entries apply to one node.
type NodeVersions struct {
	NodeName        string
	SoftwareVersion string
	FirmwareVersion string
	HardwareType    string
}

// ConfigHelper exclusively owns the layered configs, guarded by its own
// readers-writer lock, the symmetric counterpart to TopologyWrapper. Apps
// hold a handle to one shared instance rather than a package global.
type ConfigHelper struct {
	mu     sync.RWMutex
	layers Layers
}

// NewConfigHelper constructs an empty ConfigHelper.
func NewConfigHelper() *ConfigHelper {
	return &ConfigHelper{layers: NewLayers()}
}

func (c *ConfigHelper) Lock()    { c.mu.Lock() }
func (c *ConfigHelper) Unlock()  { c.mu.Unlock() }
func (c *ConfigHelper) RLock()   { c.mu.RLock() }
func (c *ConfigHelper) RUnlock() { c.mu.RUnlock() }

// SetBase replaces the base-layer config for a software version.
func (c *ConfigHelper) SetBase(swVersion string, cfg JSONObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.Base[swVersion] = cfg
}

// SetFirmwareBase replaces the firmware-base-layer config for a firmware version.
func (c *ConfigHelper) SetFirmwareBase(fwVersion string, cfg JSONObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.FirmwareBase[fwVersion] = cfg
}

// SetHardwareBase replaces the hardware-base-layer config for a hardware type.
func (c *ConfigHelper) SetHardwareBase(hwType string, cfg JSONObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.HardwareBase[hwType] = cfg
}

// SetNetworkOverrides replaces the network-wide override layer.
func (c *ConfigHelper) SetNetworkOverrides(cfg JSONObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.NetworkOverrides = cfg
}

// SetAutoNodeOverride replaces the automated override layer for one node.
func (c *ConfigHelper) SetAutoNodeOverride(nodeName string, cfg JSONObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.AutoNodeOverrides[nodeName] = cfg
}

// SetNodeOverride replaces the manual override layer for one node.
func (c *ConfigHelper) SetNodeOverride(nodeName string, cfg JSONObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.NodeOverrides[nodeName] = cfg
}

// EffectiveConfig resolves the six layers for one node under the shared
// lock and returns both the merged document and its configMd5.
func (c *ConfigHelper) EffectiveConfig(v NodeVersions) (JSONObject, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	merged := Merge(
		c.layers.Base[v.SoftwareVersion],
		c.layers.FirmwareBase[v.FirmwareVersion],
		c.layers.HardwareBase[v.HardwareType],
		c.layers.NetworkOverrides,
		c.layers.AutoNodeOverrides[v.NodeName],
		c.layers.NodeOverrides[v.NodeName],
	)
	md5sum, err := CanonicalMd5(merged)
	if err != nil {
		return nil, "", err
	}
	return merged, md5sum, nil
}
