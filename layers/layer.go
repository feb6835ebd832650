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

// Offset is the small unsigned integer type used for an OrderedLayer's
// offset array. Consumers may choose a narrower type when a batch is
// known to be small; this module otherwise defaults to uint64 where the
// memory saving does not matter.
type Offset interface {
	~uint32 | ~uint64
}

// OrderedLayer is a trie node: a sorted array of keys plus a parallel
// array of offsets into a single shared leaf of (V, W) pairs. For key
// index i, its values occupy Vals.Vals[Offs[i]:Offs[i+1]].
//
// The sub-trie is fixed to OrderedLeaf[V, W] rather than left generic:
// the batch algebra only ever instantiates the indexed Z-set shape
// OrderedLayer<K, OrderedLeaf<V, W>>, so a second level of generic
// nesting would add a type parameter with a single concrete user.
type OrderedLayer[K any, V any, W any, O Offset] struct {
	Keys []K
	Offs []O
	Vals *OrderedLeaf[V, W]
}

// KeyCount returns the number of distinct keys in the layer.
func (l *OrderedLayer[K, V, W, O]) KeyCount() int { return len(l.Keys) }

// Tuples returns the total number of leaf-level tuples under this layer.
func (l *OrderedLayer[K, V, W, O]) Tuples() int { return l.Vals.Tuples() }

// Cursor returns a cursor spanning the full layer.
func (l *OrderedLayer[K, V, W, O]) Cursor() *LayerCursor[K, V, W, O] {
	return l.CursorFrom(0, len(l.Keys))
}

// CursorFrom returns a cursor restricted to the half-open key-index range
// [lower, upper).
func (l *OrderedLayer[K, V, W, O]) CursorFrom(lower, upper int) *LayerCursor[K, V, W, O] {
	return &LayerCursor[K, V, W, O]{layer: l, pos: lower, lower: lower, upper: upper}
}

// Merge algebraically merges l with other.
func (l *OrderedLayer[K, V, W, O]) Merge(other *OrderedLayer[K, V, W, O], kcmp consolidate.Compare[K], vcmp consolidate.Compare[V], group ring.Group[W]) *OrderedLayer[K, V, W, O] {
	builder := NewMergeLayerBuilder(l, other, kcmp, vcmp, group)
	builder.PushMerge(l.Cursor(), other.Cursor())
	return builder.Done()
}

// LayerCursor navigates an OrderedLayer.
type LayerCursor[K any, V any, W any, O Offset] struct {
	layer        *OrderedLayer[K, V, W, O]
	pos          int
	lower, upper int
}

// Valid reports whether the cursor sits on a key within bounds.
func (c *LayerCursor[K, V, W, O]) Valid() bool { return c.pos < c.upper }

// Key returns the key at the cursor's current position.
func (c *LayerCursor[K, V, W, O]) Key() K { return c.layer.Keys[c.pos] }

// Values returns a cursor over the sub-leaf of the current key's values.
func (c *LayerCursor[K, V, W, O]) Values() *LeafCursor[V, W] {
	lo := int(c.layer.Offs[c.pos])
	hi := int(c.layer.Offs[c.pos+1])
	return c.layer.Vals.CursorFrom(lo, hi)
}

// Step advances the cursor by one key.
func (c *LayerCursor[K, V, W, O]) Step() {
	c.pos++
	if c.pos > c.upper {
		c.pos = c.upper
	}
}

// Seek advances the cursor to the first key not less than key.
func (c *LayerCursor[K, V, W, O]) Seek(compare consolidate.Compare[K], key K) {
	c.pos += consolidate.Advance(c.layer.Keys[c.pos:c.upper], func(k K) bool {
		return compare(k, key) < 0
	})
}

// Rewind repositions the cursor to the start of its bounds.
func (c *LayerCursor[K, V, W, O]) Rewind() { c.pos = c.lower }

// Reposition changes the cursor's navigable key-index range.
func (c *LayerCursor[K, V, W, O]) Reposition(lower, upper int) {
	c.pos = lower
	c.lower, c.upper = lower, upper
}
