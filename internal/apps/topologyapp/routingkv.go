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

package topologyapp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tgnet/e2e/internal/kv"
)

// routingAdjKeyPrefix namespaces a minion's routing KV entry: each node's
// Open/R daemon publishes its current adjacency list under this key, and
// the controller polls it as any other remote KV read.
const routingAdjKeyPrefix = "openr:adj:"

// KVRoutingAdjacencyFetcher adapts a shared kv.KV store (keyed per node
// name) into a RoutingAdjacencyFetcher, grounding "poll each minion's
// routing KV store" on the teacher's own remote KV abstraction rather than
// inventing a bespoke RPC.
type KVRoutingAdjacencyFetcher struct {
	store kv.KV
}

// NewKVRoutingAdjacencyFetcher wraps store.
func NewKVRoutingAdjacencyFetcher(store kv.KV) *KVRoutingAdjacencyFetcher {
	return &KVRoutingAdjacencyFetcher{store: store}
}

// FetchAdjacencies reads and decodes nodeName's published adjacency list.
// A missing key (node never published) is not an error: it just yields no
// adjacencies yet.
func (f *KVRoutingAdjacencyFetcher) FetchAdjacencies(ctx context.Context, nodeName string) ([]string, error) {
	key := routingAdjKeyPrefix + nodeName
	has, err := f.store.Has(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check routing adjacency key for %s: %w", nodeName, err)
	}
	if !has {
		return nil, nil
	}
	raw, err := f.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get routing adjacency key for %s: %w", nodeName, err)
	}
	var adj []string
	if err := json.Unmarshal(raw, &adj); err != nil {
		return nil, fmt.Errorf("decode routing adjacency for %s: %w", nodeName, err)
	}
	return adj, nil
}
