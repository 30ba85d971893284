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
	"time"

	"github.com/tgnet/e2e/internal/metrics"
)

// Instrument wraps kv so every call is timed and counted against m, the way
// TopologyApp's routing-adjacency poller's reads show up on the
// controller's /metrics endpoint.
func Instrument(kv KV, m *metrics.Metrics) KV {
	return instrumentedKV{kv: kv, m: m}
}

type instrumentedKV struct {
	kv KV
	m  *metrics.Metrics
}

func (i instrumentedKV) record(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	i.m.RecordKVOperation(op, status, time.Since(start).Seconds())
}

func (i instrumentedKV) Has(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := i.kv.Has(ctx, key)
	i.record("has", start, err)
	return ok, err
}

func (i instrumentedKV) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := i.kv.Get(ctx, key)
	i.record("get", start, err)
	return v, err
}

func (i instrumentedKV) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := i.kv.Set(ctx, key, value)
	i.record("set", start, err)
	return err
}

func (i instrumentedKV) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.kv.Delete(ctx, key)
	i.record("delete", start, err)
	return err
}

func (i instrumentedKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	start := time.Now()
	err := i.kv.Expire(ctx, key, ttl)
	i.record("expire", start, err)
	return err
}

func (i instrumentedKV) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	start := time.Now()
	keys, next, err := i.kv.Scan(ctx, cursor, match, count)
	i.record("scan", start, err)
	return keys, next, err
}

func (i instrumentedKV) RPush(ctx context.Context, key string, value []byte) (int64, error) {
	start := time.Now()
	n, err := i.kv.RPush(ctx, key, value)
	i.record("rpush", start, err)
	return n, err
}

func (i instrumentedKV) LDrain(ctx context.Context, key string) ([][]byte, error) {
	start := time.Now()
	vals, err := i.kv.LDrain(ctx, key)
	i.record("ldrain", start, err)
	return vals, err
}

func (i instrumentedKV) Close() error {
	return i.kv.Close()
}
