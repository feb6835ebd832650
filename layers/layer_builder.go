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

// LayerBuilder assembles an OrderedLayer from (K, V, W) tuples pushed in
// strictly ascending key order (and ascending value order within a key).
// It does not validate ordering, and neither does batch.IndexedBuilder,
// which wraps it: values within a key are sorted at each boundary, but
// keys pushed out of order stay out of order in the resulting layer.
type LayerBuilder[K any, V any, W any, O Offset] struct {
	keys    []K
	offs    []O
	child   *TupleLeafBuilder[V, W]
	compare consolidate.Compare[K]
}

// NewLayerBuilder allocates an empty sorted-push layer builder.
func NewLayerBuilder[K any, V any, W any, O Offset](kcmp consolidate.Compare[K], vcmp consolidate.Compare[V], group ring.Group[W]) *LayerBuilder[K, V, W, O] {
	return &LayerBuilder[K, V, W, O]{
		offs:    []O{0},
		child:   NewTupleLeafBuilder(vcmp, group),
		compare: kcmp,
	}
}

// PushTuple pushes a single (key, value, weight) tuple. Pushing a key
// distinct from the last one pushed closes that key's value range.
func (b *LayerBuilder[K, V, W, O]) PushTuple(key K, val V, weight W) {
	newKey := len(b.keys) == 0 || b.compare(b.keys[len(b.keys)-1], key) != 0
	if newKey {
		if len(b.keys) > 0 {
			b.offs = append(b.offs, O(b.child.Boundary()))
		}
		b.keys = append(b.keys, key)
	}
	b.child.PushTuple(consolidate.Tuple[V, W]{Key: val, Weight: weight})
}

// Done finalizes the builder and returns the resulting layer, closing the
// last key's value range.
func (b *LayerBuilder[K, V, W, O]) Done() *OrderedLayer[K, V, W, O] {
	leaf := b.child.Done()
	b.offs = append(b.offs, O(leaf.Tuples()))
	return &OrderedLayer[K, V, W, O]{Keys: b.keys, Offs: b.offs, Vals: leaf}
}

// MergeLayerBuilder assembles an OrderedLayer by merging two sealed
// layers, recursing into a child leaf builder for each coincident key.
type MergeLayerBuilder[K any, V any, W any, O Offset] struct {
	keys    []K
	offs    []O
	child   *MergeLeafBuilder[V, W]
	compare consolidate.Compare[K]
}

// NewMergeLayerBuilder allocates a merge builder with capacity for the sum
// of both input layers' keys.
func NewMergeLayerBuilder[K any, V any, W any, O Offset](a, b *OrderedLayer[K, V, W, O], kcmp consolidate.Compare[K], vcmp consolidate.Compare[V], group ring.Group[W]) *MergeLayerBuilder[K, V, W, O] {
	return &MergeLayerBuilder[K, V, W, O]{
		keys:    make([]K, 0, a.KeyCount()+b.KeyCount()),
		offs:    []O{0},
		child:   NewMergeLeafBuilder(a.Vals, b.Vals, vcmp, group),
		compare: kcmp,
	}
}

// CopyRange copies the half-open key-index range [lower, upper) of src
// verbatim, key, values, and all, into the builder.
func (b *MergeLayerBuilder[K, V, W, O]) CopyRange(src *OrderedLayer[K, V, W, O], lower, upper int) {
	for i := lower; i < upper; i++ {
		b.child.CopyRange(src.Vals, int(src.Offs[i]), int(src.Offs[i+1]))
		b.keys = append(b.keys, src.Keys[i])
		b.offs = append(b.offs, O(b.child.Len()))
	}
}

// PushMerge merges the ranges addressed by c1 and c2 into the builder. A
// key present on both sides recurses into the child leaf builder; the key
// survives only if the merged child range is non-empty — a key with no
// values left after cancellation has nothing to index. It returns the
// builder's key count.
func (b *MergeLayerBuilder[K, V, W, O]) PushMerge(c1, c2 *LayerCursor[K, V, W, O]) int {
	lower1, upper1 := c1.lower, c1.upper
	lower2, upper2 := c2.lower, c2.upper

	for lower1 < upper1 && lower2 < upper2 {
		k1 := c1.layer.Keys[lower1]
		k2 := c2.layer.Keys[lower2]
		switch {
		case b.compare(k1, k2) < 0:
			step := 1 + consolidate.Advance(c1.layer.Keys[lower1+1:upper1], func(k K) bool {
				return b.compare(k, k2) < 0
			})
			if step > maxCopyRun {
				step = maxCopyRun
			}
			b.CopyRange(c1.layer, lower1, lower1+step)
			lower1 += step
		case b.compare(k1, k2) > 0:
			step := 1 + consolidate.Advance(c2.layer.Keys[lower2+1:upper2], func(k K) bool {
				return b.compare(k, k1) < 0
			})
			if step > maxCopyRun {
				step = maxCopyRun
			}
			b.CopyRange(c2.layer, lower2, lower2+step)
			lower2 += step
		default:
			before := b.child.Len()
			sub1 := c1.layer.Vals.CursorFrom(int(c1.layer.Offs[lower1]), int(c1.layer.Offs[lower1+1]))
			sub2 := c2.layer.Vals.CursorFrom(int(c2.layer.Offs[lower2]), int(c2.layer.Offs[lower2+1]))
			after := b.child.PushMerge(sub1, sub2)
			if after > before {
				b.keys = append(b.keys, k1)
				b.offs = append(b.offs, O(after))
			}
			lower1++
			lower2++
		}
	}

	if lower1 < upper1 {
		b.CopyRange(c1.layer, lower1, upper1)
	}
	if lower2 < upper2 {
		b.CopyRange(c2.layer, lower2, upper2)
	}

	return len(b.keys)
}

// Done finalizes the builder and returns the resulting layer.
func (b *MergeLayerBuilder[K, V, W, O]) Done() *OrderedLayer[K, V, W, O] {
	return &OrderedLayer[K, V, W, O]{Keys: b.keys, Offs: b.offs, Vals: b.child.Done()}
}
