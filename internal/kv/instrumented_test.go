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

	"github.com/stretchr/testify/assert"

	"github.com/tgnet/e2e/internal/kv"
	"github.com/tgnet/e2e/internal/metrics"
)

func TestInstrumentRecordsOperationsAndDelegates(t *testing.T) {
	t.Parallel()

	base := makeTestKV(t)
	m := metrics.NewMetrics()
	instrumented := kv.Instrument(base, m)

	ctx := context.Background()
	assert.NoError(t, instrumented.Set(ctx, "k", []byte("v")))

	ok, err := instrumented.Has(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, ok)

	val, err := instrumented.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	_, err = instrumented.Get(ctx, "missing")
	assert.Error(t, err)

	assert.NoError(t, instrumented.Delete(ctx, "k"))
}
