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

package layers

import (
	"github.com/optakt/zset-core/consolidate"
	"github.com/optakt/zset-core/ring"
)

// TupleLeafBuilder assembles a leaf from tuples pushed in arbitrary order.
// It consolidates the unconsolidated tail of its buffer every time Boundary
// or Done is called.
type TupleLeafBuilder[K any, W any] struct {
	vals     []consolidate.Tuple[K, W]
	boundary int
	compare  consolidate.Compare[K]
	group    ring.Group[W]
}

// NewTupleLeafBuilder allocates an empty unordered-tuple leaf builder.
func NewTupleLeafBuilder[K any, W any](compare consolidate.Compare[K], group ring.Group[W]) *TupleLeafBuilder[K, W] {
	return &TupleLeafBuilder[K, W]{compare: compare, group: group}
}

// NewTupleLeafBuilderCapacity allocates a builder with room for at least
// cap tuples before it needs to grow.
func NewTupleLeafBuilderCapacity[K any, W any](cap int, compare consolidate.Compare[K], group ring.Group[W]) *TupleLeafBuilder[K, W] {
	return &TupleLeafBuilder[K, W]{vals: make([]consolidate.Tuple[K, W], 0, cap), compare: compare, group: group}
}

// PushTuple appends a tuple to the builder's buffer.
func (b *TupleLeafBuilder[K, W]) PushTuple(t consolidate.Tuple[K, W]) {
	b.vals = append(b.vals, t)
}

// Tuples returns the number of tuples pushed so far, consolidated or not.
func (b *TupleLeafBuilder[K, W]) Tuples() int { return len(b.vals) }

// Boundary consolidates the tail of the buffer since the last boundary
// call, truncates away any zero-weight survivors, and returns the new
// total length.
func (b *TupleLeafBuilder[K, W]) Boundary() int {
	tail := b.vals[b.boundary:]
	n := consolidate.Slice(tail, b.compare, b.group)
	b.boundary += n
	b.vals = b.vals[:b.boundary]
	return b.boundary
}

// Done finalizes the builder, consolidating any remaining tail, and
// returns the resulting leaf.
func (b *TupleLeafBuilder[K, W]) Done() *OrderedLeaf[K, W] {
	b.Boundary()
	return &OrderedLeaf[K, W]{Vals: b.vals}
}

// MergeLeafBuilder assembles a leaf by merging two existing sealed leaves.
type MergeLeafBuilder[K any, W any] struct {
	vals    []consolidate.Tuple[K, W]
	compare consolidate.Compare[K]
	group   ring.Group[W]
}

// NewMergeLeafBuilder allocates a merge builder with capacity for the sum
// of both input leaves' keys.
func NewMergeLeafBuilder[K any, W any](a, b *OrderedLeaf[K, W], compare consolidate.Compare[K], group ring.Group[W]) *MergeLeafBuilder[K, W] {
	return &MergeLeafBuilder[K, W]{
		vals:    make([]consolidate.Tuple[K, W], 0, a.Keys()+b.Keys()),
		compare: compare,
		group:   group,
	}
}

// NewMergeLeafBuilderCapacity allocates a merge builder with the given key
// capacity directly.
func NewMergeLeafBuilderCapacity[K any, W any](cap int, compare consolidate.Compare[K], group ring.Group[W]) *MergeLeafBuilder[K, W] {
	return &MergeLeafBuilder[K, W]{vals: make([]consolidate.Tuple[K, W], 0, cap), compare: compare, group: group}
}

// Len returns the number of tuples assembled so far.
func (b *MergeLeafBuilder[K, W]) Len() int { return len(b.vals) }

// CopyRange copies the half-open index range [lower, upper) of other's
// backing slice verbatim into the builder.
func (b *MergeLeafBuilder[K, W]) CopyRange(other *OrderedLeaf[K, W], lower, upper int) {
	b.vals = append(b.vals, other.Vals[lower:upper]...)
}

// PushMerge merges the ranges addressed by c1 and c2 into the builder:
// runs strictly on one side are copied in bulk (capped at maxCopyRun),
// coincident keys have their weights summed and are dropped if the sum is
// zero. It returns the builder's total tuple count after the merge.
func (b *MergeLeafBuilder[K, W]) PushMerge(c1, c2 *LeafCursor[K, W]) int {
	lower1, upper1 := c1.lower, c1.upper
	lower2, upper2 := c2.lower, c2.upper

	for lower1 < upper1 && lower2 < upper2 {
		k1 := c1.leaf.Vals[lower1].Key
		k2 := c2.leaf.Vals[lower2].Key
		switch {
		case b.compare(k1, k2) < 0:
			step := 1 + consolidate.Advance(c1.leaf.Vals[lower1+1:upper1], func(t consolidate.Tuple[K, W]) bool {
				return b.compare(t.Key, k2) < 0
			})
			if step > maxCopyRun {
				step = maxCopyRun
			}
			b.CopyRange(c1.leaf, lower1, lower1+step)
			lower1 += step
		case b.compare(k1, k2) > 0:
			step := 1 + consolidate.Advance(c2.leaf.Vals[lower2+1:upper2], func(t consolidate.Tuple[K, W]) bool {
				return b.compare(t.Key, k1) < 0
			})
			if step > maxCopyRun {
				step = maxCopyRun
			}
			b.CopyRange(c2.leaf, lower2, lower2+step)
			lower2 += step
		default:
			sum := b.group.Add(c1.leaf.Vals[lower1].Weight, c2.leaf.Vals[lower2].Weight)
			if !b.group.IsZero(sum) {
				b.vals = append(b.vals, consolidate.Tuple[K, W]{Key: k1, Weight: sum})
			}
			lower1++
			lower2++
		}
	}

	if lower1 < upper1 {
		b.CopyRange(c1.leaf, lower1, upper1)
	}
	if lower2 < upper2 {
		b.CopyRange(c2.leaf, lower2, upper2)
	}

	return len(b.vals)
}

// Done finalizes the builder and returns the resulting leaf.
func (b *MergeLeafBuilder[K, W]) Done() *OrderedLeaf[K, W] {
	return &OrderedLeaf[K, W]{Vals: b.vals}
}
