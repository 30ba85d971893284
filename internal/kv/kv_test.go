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

package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tgnet/e2e/internal/config"
	"github.com/tgnet/e2e/internal/kv"
)

func makeTestKV(t *testing.T) kv.KV {
	t.Helper()
	kvStore, err := kv.MakeKV(context.Background(), &config.Config{})
	assert.NoError(t, err)

	t.Cleanup(func() {
		_ = kvStore.Close()
	})
	return kvStore
}

func TestKVSetAndGet(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)
	ctx := context.Background()

	err := store.Set(ctx, "testkey", []byte("testvalue"))
	assert.NoError(t, err)

	val, err := store.Get(ctx, "testkey")
	assert.NoError(t, err)
	assert.Equal(t, "testvalue", string(val))
}

func TestKVGetNonexistent(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)

	_, err := store.Get(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestKVHas(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)
	ctx := context.Background()

	has, err := store.Has(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, has)

	_ = store.Set(ctx, "present", []byte("val"))

	has, err = store.Has(ctx, "present")
	assert.NoError(t, err)
	assert.True(t, has)
}

func TestKVDelete(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)
	ctx := context.Background()

	_ = store.Set(ctx, "delme", []byte("val"))

	err := store.Delete(ctx, "delme")
	assert.NoError(t, err)

	has, err := store.Has(ctx, "delme")
	assert.NoError(t, err)
	assert.False(t, has)
}

func TestKVExpire(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)
	ctx := context.Background()

	_ = store.Set(ctx, "expiring", []byte("val"))

	err := store.Expire(ctx, "expiring", 50*time.Millisecond)
	assert.NoError(t, err)

	has, _ := store.Has(ctx, "expiring")
	assert.True(t, has)

	time.Sleep(100 * time.Millisecond)

	has, _ = store.Has(ctx, "expiring")
	assert.False(t, has)

	_, err = store.Get(ctx, "expiring")
	assert.Error(t, err)
}

func TestKVExpireNonexistent(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)

	err := store.Expire(context.Background(), "nope", time.Second)
	assert.Error(t, err)
}

func TestKVExpireZeroDeletesKey(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)
	ctx := context.Background()

	_ = store.Set(ctx, "zerottl", []byte("val"))

	err := store.Expire(ctx, "zerottl", 0)
	assert.NoError(t, err)

	has, _ := store.Has(ctx, "zerottl")
	assert.False(t, has)
}

func TestKVScan(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)
	ctx := context.Background()

	_ = store.Set(ctx, "scan:a", []byte("1"))
	_ = store.Set(ctx, "scan:b", []byte("2"))
	_ = store.Set(ctx, "other", []byte("3"))

	keys, _, err := store.Scan(ctx, 0, "scan:*", 100)
	assert.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestKVOverwrite(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)
	ctx := context.Background()

	_ = store.Set(ctx, "key", []byte("first"))
	_ = store.Set(ctx, "key", []byte("second"))

	val, err := store.Get(ctx, "key")
	assert.NoError(t, err)
	assert.Equal(t, "second", string(val))
}

func TestKVRPushAndLDrain(t *testing.T) {
	t.Parallel()
	store := makeTestKV(t)
	ctx := context.Background()

	n, err := store.RPush(ctx, "pending-nodes", []byte("node1"))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.RPush(ctx, "pending-nodes", []byte("node2"))
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)

	drained, err := store.LDrain(ctx, "pending-nodes")
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("node1"), []byte("node2")}, drained)

	has, _ := store.Has(ctx, "pending-nodes")
	assert.False(t, has)
}

func TestKVClose(t *testing.T) {
	t.Parallel()
	store, err := kv.MakeKV(context.Background(), &config.Config{})
	assert.NoError(t, err)

	err = store.Close()
	assert.NoError(t, err)
}
