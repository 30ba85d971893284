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
	"strings"
)

// BaseFilePaths mirrors `/etc/e2e_config/base_versions/`, `.../fw_versions/`,
// `.../hw_versions/<type>/`, and `hw_types.json`.
type BaseFilePaths struct {
	BaseVersionsDir string
	FwVersionsDir   string
	HwVersionsDir   string
	HwTypesFile     string
}

// DefaultBaseFilePaths rooted at etcDir (normally "/etc/e2e_config").
func DefaultBaseFilePaths(etcDir string) BaseFilePaths {
	return BaseFilePaths{
		BaseVersionsDir: filepath.Join(etcDir, "base_versions"),
		FwVersionsDir:   filepath.Join(etcDir, "fw_versions"),
		HwVersionsDir:   filepath.Join(etcDir, "hw_versions"),
		HwTypesFile:     filepath.Join(etcDir, "hw_types.json"),
	}
}

func loadJSONDir(dir string) (map[string]JSONObject, error) {
	out := map[string]JSONObject{}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".json")
		obj, err := readJSONObject(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out[key] = obj
	}
	return out, nil
}

// LoadBaseFiles populates a Layers' Base, FirmwareBase, and HardwareBase
// maps from the on-disk base-config tree, keyed by file name (software
// version, firmware version, hardware type respectively).
func LoadBaseFiles(helper *ConfigHelper, paths BaseFilePaths) error {
	base, err := loadJSONDir(paths.BaseVersionsDir)
	if err != nil {
		return err
	}
	for swVer, cfg := range base {
		helper.SetBase(swVer, cfg)
	}

	fw, err := loadJSONDir(paths.FwVersionsDir)
	if err != nil {
		return err
	}
	for fwVer, cfg := range fw {
		helper.SetFirmwareBase(fwVer, cfg)
	}

	hwEntries, err := os.ReadDir(paths.HwVersionsDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read hw versions dir: %w", err)
	}
	for _, entry := range hwEntries {
		if !entry.IsDir() {
			continue
		}
		hw, err := loadJSONDir(filepath.Join(paths.HwVersionsDir, entry.Name()))
		if err != nil {
			return err
		}
		merged := JSONObject{}
		for _, cfg := range hw {
			mergeInto(merged, cfg)
		}
		helper.SetHardwareBase(entry.Name(), merged)
	}
	return nil
}

// HwTypes maps hardware type to its array of board IDs, per hw_types.json.
type HwTypes map[string][]string

// LoadHwTypes parses hw_types.json.
func LoadHwTypes(path string) (HwTypes, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return HwTypes{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hw types: %w", err)
	}
	var types HwTypes
	if err := json.Unmarshal(raw, &types); err != nil {
		return nil, fmt.Errorf("parse hw types: %w", err)
	}
	return types, nil
}
