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

package layers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optakt/zset-core/consolidate"
	"github.com/optakt/zset-core/layers"
	"github.com/optakt/zset-core/ring"
)

func leaf(pairs ...[2]int64) *layers.OrderedLeaf[int64, int64] {
	l := &layers.OrderedLeaf[int64, int64]{}
	for _, p := range pairs {
		l.Vals = append(l.Vals, consolidate.Tuple[int64, int64]{Key: p[0], Weight: p[1]})
	}
	return l
}

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

// TestMerge_LeafCancellation confirms a leaf merge cancels a key whose
// weights sum to zero rather than keeping it at weight zero.
func TestMerge_LeafCancellation(t *testing.T) {
	a := leaf([2]int64{1, 1}, [2]int64{2, 1}, [2]int64{3, 1})
	b := leaf([2]int64{2, -1}, [2]int64{3, 1}, [2]int64{4, 1})

	got := a.Merge(b, cmpInt64, ring.Int{})

	want := leaf([2]int64{1, 1}, [2]int64{3, 2}, [2]int64{4, 1})
	require.Equal(t, want.Vals, got.Vals)
}

func TestMerge_CommutativeAndIdentity(t *testing.T) {
	a := leaf([2]int64{1, 1}, [2]int64{2, 2})
	zero := &layers.OrderedLeaf[int64, int64]{}

	withZero := a.Merge(zero, cmpInt64, ring.Int{})
	assert.Equal(t, a.Vals, withZero.Vals)

	b := leaf([2]int64{2, -2}, [2]int64{5, 3})
	ab := a.Merge(b, cmpInt64, ring.Int{})
	ba := b.Merge(a, cmpInt64, ring.Int{})
	assert.Equal(t, ab.Vals, ba.Vals)
}

func TestMerge_NoZeroWeightEntriesOrDuplicateKeys(t *testing.T) {
	a := leaf([2]int64{1, 1}, [2]int64{3, 1})
	b := leaf([2]int64{1, -1}, [2]int64{2, 1}, [2]int64{3, -1})

	got := a.Merge(b, cmpInt64, ring.Int{})

	require.Len(t, got.Vals, 1)
	assert.Equal(t, int64(2), got.Vals[0].Key)
	assert.Equal(t, int64(1), got.Vals[0].Weight)

	seen := map[int64]bool{}
	for i, tup := range got.Vals {
		assert.NotZero(t, tup.Weight)
		assert.False(t, seen[tup.Key])
		seen[tup.Key] = true
		if i > 0 {
			assert.Less(t, got.Vals[i-1].Key, tup.Key)
		}
	}
}

func TestTupleLeafBuilder_SortsAndConsolidates(t *testing.T) {
	builder := layers.NewTupleLeafBuilder[int64, int64](cmpInt64, ring.Int{})
	builder.PushTuple(consolidate.Tuple[int64, int64]{Key: 3, Weight: 1})
	builder.PushTuple(consolidate.Tuple[int64, int64]{Key: 1, Weight: 2})
	builder.PushTuple(consolidate.Tuple[int64, int64]{Key: 3, Weight: -1})

	got := builder.Done()
	require.Len(t, got.Vals, 1)
	assert.Equal(t, int64(1), got.Vals[0].Key)
	assert.Equal(t, int64(2), got.Vals[0].Weight)
}

// TestLeafCursor_RoundTrip round-trips a leaf through its own cursor: an
// OrderedLeaf built from the sorted cursor output of another must be
// tuple-equal to the source.
func TestLeafCursor_RoundTrip(t *testing.T) {
	src := leaf([2]int64{1, 1}, [2]int64{4, -3}, [2]int64{9, 2})

	builder := layers.NewTupleLeafBuilder[int64, int64](cmpInt64, ring.Int{})
	cursor := src.Cursor()
	for cursor.Valid() {
		builder.PushTuple(consolidate.Tuple[int64, int64]{Key: cursor.Key(), Weight: cursor.Weight()})
		cursor.Step()
	}

	got := builder.Done()
	assert.Equal(t, src.Vals, got.Vals)
}

func TestLeafCursor_Seek(t *testing.T) {
	src := leaf([2]int64{1, 1}, [2]int64{4, 1}, [2]int64{9, 1}, [2]int64{16, 1})

	cursor := src.Cursor()
	cursor.Seek(cmpInt64, 9)
	require.True(t, cursor.Valid())
	assert.Equal(t, int64(9), cursor.Key())

	cursor.Rewind()
	cursor.Seek(cmpInt64, 100)
	assert.False(t, cursor.Valid())
}
