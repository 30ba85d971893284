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

// Package kv is a small remote key-value abstraction. TopologyApp's
// routing-adjacency poll (spec.md §4.3) uses it to read each minion's
// local routing daemon KV store, which from the controller's point of
// view is structurally just another remote KV store.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/tgnet/e2e/internal/config"
)

// KV is a remote key-value store: Get/Set/Has/Delete/Expire/Scan plus the
// RPush/LDrain list primitives.
type KV interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)
	// RPush appends a value to a list stored under key. Returns the new length.
	RPush(ctx context.Context, key string, value []byte) (int64, error)
	// LDrain atomically returns all elements of the list and deletes the key.
	LDrain(ctx context.Context, key string) ([][]byte, error)
	Close() error
}

// MakeKV builds a KV client: Redis when enabled, otherwise an in-memory
// store suitable for a single-process controller or tests.
func MakeKV(ctx context.Context, cfg *config.Config) (KV, error) {
	if cfg.RedisEnabled {
		redisKV, err := makeKVFromRedis(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create redis kv: %w", err)
		}
		return redisKV, nil
	}
	return makeInMemoryKV(cfg), nil
}
