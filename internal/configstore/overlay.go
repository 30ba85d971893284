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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OverlayPaths names the three layered override files hot-reloaded on
// write, per the filesystem contract in the external interfaces section.
type OverlayPaths struct {
	NodeOverrides     string // node_config_overrides.json
	AutoNodeOverrides string // auto_node_config_overrides.json
	NetworkOverrides  string // network_config_overrides.json
}

// DefaultOverlayPaths mirrors `/data/cfg/{node,auto_node,network}_config_overrides.json`.
func DefaultOverlayPaths(dir string) OverlayPaths {
	return OverlayPaths{
		NodeOverrides:     filepath.Join(dir, "node_config_overrides.json"),
		AutoNodeOverrides: filepath.Join(dir, "auto_node_config_overrides.json"),
		NetworkOverrides:  filepath.Join(dir, "network_config_overrides.json"),
	}
}

func readJSONObject(path string) (JSONObject, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return JSONObject{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var obj JSONObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return obj, nil
}

func readNodeKeyedFile(path string) (map[string]JSONObject, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]JSONObject{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m map[string]JSONObject
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// LoadOverlays reads all three override files into helper. Called at
// startup and on every watched write event.
func LoadOverlays(helper *ConfigHelper, paths OverlayPaths) error {
	network, err := readJSONObject(paths.NetworkOverrides)
	if err != nil {
		return err
	}
	helper.SetNetworkOverrides(network)

	auto, err := readNodeKeyedFile(paths.AutoNodeOverrides)
	if err != nil {
		return err
	}
	for node, cfg := range auto {
		helper.SetAutoNodeOverride(node, cfg)
	}

	manual, err := readNodeKeyedFile(paths.NodeOverrides)
	if err != nil {
		return err
	}
	for node, cfg := range manual {
		helper.SetNodeOverride(node, cfg)
	}
	return nil
}

// WatchOverlays polls the three override files' mtimes every interval and
// reloads on change. No example repo wraps filesystem watching in a
// third-party library, so this is a direct os.Stat poll (see DESIGN.md).
func WatchOverlays(ctx doneSignal, helper *ConfigHelper, paths OverlayPaths, interval time.Duration, onReload func(error)) {
	mtimes := map[string]time.Time{}
	check := func(path string) (bool, error) {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		prev, ok := mtimes[path]
		mtimes[path] = info.ModTime()
		return !ok || !prev.Equal(info.ModTime()), nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed := false
			for _, p := range []string{paths.NetworkOverrides, paths.AutoNodeOverrides, paths.NodeOverrides} {
				c, err := check(p)
				if err != nil {
					onReload(fmt.Errorf("stat %s: %w", p, err))
					continue
				}
				changed = changed || c
			}
			if changed {
				onReload(LoadOverlays(helper, paths))
			}
		}
	}
}

// doneSignal is the narrow context.Context surface WatchOverlays needs,
// kept as an interface so tests can pass a bare channel-backed stub.
type doneSignal interface {
	Done() <-chan struct{}
}
