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

// Package pubsub abstracts "Redis pub/sub or in-memory fan-out" behind one
// interface. BinaryStarApp is its sole consumer today: the two controller
// peers publish their one-byte state on a shared topic and subscribe to
// each other's.
package pubsub

import (
	"context"

	"github.com/tgnet/e2e/internal/config"
)

// PubSub is a topic-addressed publish/subscribe broker.
type PubSub interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string) Subscription
	Close() error
}

// Subscription is one topic subscription's delivery channel.
type Subscription interface {
	Close() error
	Channel() <-chan []byte
}

// MakePubSub returns a Redis-backed PubSub when cfg.RedisEnabled, otherwise
// an in-process one scoped to this PubSub instance (not the whole binary),
// suitable for single-binary test/dev deployments with both controller
// peers in one process.
func MakePubSub(ctx context.Context, cfg *config.Config) (PubSub, error) {
	if cfg.RedisEnabled {
		return makePubSubFromRedis(ctx, cfg)
	}
	return makeInMemoryPubSub(), nil
}
