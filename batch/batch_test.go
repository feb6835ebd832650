// Copyright 2021 Optakt Labs OÜ
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package batch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optakt/zset-core/batch"
	"github.com/optakt/zset-core/ring"
)

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func TestAntichain_MeetAndJoin(t *testing.T) {
	present := batch.AntichainPresent()
	absent := batch.AntichainAbsent()

	assert.True(t, present.Meet(present).IsPresent())
	assert.True(t, present.Meet(absent).IsPresent())
	assert.False(t, absent.Meet(absent).IsPresent())

	assert.False(t, present.Join(absent).IsPresent())
	assert.True(t, present.Join(present).IsPresent())
	assert.False(t, absent.Join(absent).IsPresent())
}

func TestBatcher_SealsUnsortedTuples(t *testing.T) {
	b := batch.NewBatcher[int64, int64](cmpInt64, ring.Int{})
	b.Push(3, 1)
	b.Push(1, 1)
	b.Push(3, -1)
	b.Push(2, 2)

	sealed := b.Seal(batch.AntichainPresent(), batch.AntichainAbsent())

	require.Equal(t, 2, sealed.Len())
	assert.True(t, sealed.Lower.IsPresent())
	assert.False(t, sealed.Upper.IsPresent())

	var keys []int64
	c := sealed.Cursor()
	for c.Valid() {
		keys = append(keys, c.Key())
		c.Step()
	}
	assert.Equal(t, []int64{1, 2}, keys)
}

func TestBuilder_SortedPush(t *testing.T) {
	b := batch.NewBuilder[int64, int64](cmpInt64, ring.Int{}, batch.AntichainPresent(), batch.AntichainAbsent())
	b.Push(1, 1)
	b.Push(2, 1)
	b.Push(3, 1)

	sealed := b.Done()
	assert.Equal(t, 3, sealed.Len())
}

// TestMerger_FullMergeCompletesInOneWorkCall matches spine_fueled.rs's
// OrdIndexedZSetMerger/MergeVariant::work behavior: push_merge always
// consumes both cursors in one call, so a Merger always reports done
// after its first Work call regardless of the fuel supplied.
func TestMerger_FullMergeCompletesInOneWorkCall(t *testing.T) {
	b1 := batch.NewBuilder[int64, int64](cmpInt64, ring.Int{}, batch.AntichainPresent(), batch.AntichainAbsent())
	b1.Push(1, 1)
	b1.Push(2, 1)
	b1.Push(3, 1)
	batch1 := b1.Done()

	b2 := batch.NewBuilder[int64, int64](cmpInt64, ring.Int{}, batch.AntichainPresent(), batch.AntichainAbsent())
	b2.Push(2, -1)
	b2.Push(3, 1)
	b2.Push(4, 1)
	batch2 := b2.Done()

	merger := batch.BeginMerge(batch1, batch2, cmpInt64, ring.Int{})
	fuel := int64(1)
	merger.Work(&fuel)

	require.True(t, merger.IsDone())
	assert.GreaterOrEqual(t, fuel, int64(1))

	merged := merger.Done(batch1.Lower.Meet(batch2.Lower), batch1.Upper.Join(batch2.Upper))
	require.Equal(t, 3, merged.Len())

	var keys, weights []int64
	c := merged.Cursor()
	for c.Valid() {
		keys = append(keys, c.Key())
		weights = append(weights, c.Weight())
		c.Step()
	}
	assert.Equal(t, []int64{1, 3, 4}, keys)
	assert.Equal(t, []int64{1, 2, 1}, weights)
}

func TestMerger_FuelClampedToAtLeastOne(t *testing.T) {
	b1 := batch.NewBuilder[int64, int64](cmpInt64, ring.Int{}, batch.AntichainPresent(), batch.AntichainAbsent())
	for i := int64(0); i < 200; i++ {
		b1.Push(i*2, 1)
	}
	batch1 := b1.Done()
	batch2 := batch.NewBuilder[int64, int64](cmpInt64, ring.Int{}, batch.AntichainPresent(), batch.AntichainAbsent()).Done()

	merger := batch.BeginMerge(batch1, batch2, cmpInt64, ring.Int{})
	fuel := int64(8)
	merger.Work(&fuel)

	assert.True(t, merger.IsDone())
	assert.Equal(t, int64(1), fuel)
}
