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

package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/tgnet/e2e/internal/config"
)

func makeInMemoryKV(_ *config.Config) KV {
	return inMemoryKV{kv: xsync.NewMap[string, kvValue]()}
}

type kvValue struct {
	values [][]byte
	ttl    time.Time
}

type inMemoryKV struct {
	kv *xsync.Map[string, kvValue]
}

func (s inMemoryKV) Has(_ context.Context, key string) (bool, error) {
	obj, ok := s.kv.Load(key)
	if !ok {
		return false, nil
	}
	if !obj.ttl.IsZero() && obj.ttl.Before(time.Now()) {
		s.kv.Delete(key)
		return false, nil
	}
	return true, nil
}

func (s inMemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := s.kv.Load(key)
	if !ok {
		return nil, fmt.Errorf("key %s not found", key)
	}
	if len(value.values) == 0 {
		return nil, fmt.Errorf("key %s has no values", key)
	}
	if !value.ttl.IsZero() && value.ttl.Before(time.Now()) {
		s.kv.Delete(key)
		return nil, fmt.Errorf("key %s has expired", key)
	}
	return value.values[0], nil
}

func (s inMemoryKV) Set(_ context.Context, key string, value []byte) error {
	s.kv.Store(key, kvValue{values: [][]byte{value}})
	return nil
}

func (s inMemoryKV) Delete(_ context.Context, key string) error {
	s.kv.Delete(key)
	return nil
}

func (s inMemoryKV) Expire(_ context.Context, key string, ttl time.Duration) error {
	value, ok := s.kv.Load(key)
	if !ok {
		return fmt.Errorf("key %s not found", key)
	}
	if ttl <= 0 {
		s.kv.Delete(key)
		return nil
	}
	value.ttl = time.Now().Add(ttl)
	s.kv.Store(key, value)
	return nil
}

func (s inMemoryKV) Scan(_ context.Context, _ uint64, match string, _ int64) ([]string, uint64, error) {
	var keys []string
	s.kv.Range(func(key string, value kvValue) bool {
		if !value.ttl.IsZero() && value.ttl.Before(time.Now()) {
			s.kv.Delete(key)
			return true
		}
		if match == "" || globMatch(match, key) {
			keys = append(keys, key)
		}
		return true
	})
	return keys, 0, nil
}

func (s inMemoryKV) RPush(_ context.Context, key string, value []byte) (int64, error) {
	existing, _ := s.kv.Load(key)
	existing.values = append(existing.values, value)
	s.kv.Store(key, existing)
	return int64(len(existing.values)), nil
}

func (s inMemoryKV) LDrain(_ context.Context, key string) ([][]byte, error) {
	existing, ok := s.kv.Load(key)
	if !ok {
		return nil, nil
	}
	s.kv.Delete(key)
	return existing.values, nil
}

func (s inMemoryKV) Close() error { return nil }

// globMatch supports trailing-"*" prefix patterns (e.g. "scan:*"); a
// literal pattern matches exactly. Other glob syntax is not interpreted.
func globMatch(pattern, key string) bool {
	if pattern == key {
		return true
	}
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	}
	return false
}
