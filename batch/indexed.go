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

package batch

import (
	"sort"

	"github.com/optakt/zset-core/consolidate"
	"github.com/optakt/zset-core/layers"
	"github.com/optakt/zset-core/ring"
)

// IndexedBatch is the indexed Z-set shape: an OrderedLayer<K, OrderedLeaf
// <V, W>> plus antichain bounds, grounded on
// original_source/src/trace/ord/indexed_zset_batch.rs's OrdIndexedZSet.
// It shares every algebraic property with Batch; the two are kept as
// separate concrete types rather than one generic-over-trie-shape type,
// matching the split already made between layers.OrderedLeaf and
// layers.OrderedLayer.
type IndexedBatch[K any, V any, W any, O layers.Offset] struct {
	Layer *layers.OrderedLayer[K, V, W, O]
	Lower Antichain
	Upper Antichain
}

// Len returns the total number of leaf-level (key, value, weight) tuples.
func (b *IndexedBatch[K, V, W, O]) Len() int { return b.Layer.Tuples() }

// IsEmpty reports whether the batch contains no tuples.
func (b *IndexedBatch[K, V, W, O]) IsEmpty() bool { return b.Len() == 0 }

// Cursor returns a cursor over the batch's keys.
func (b *IndexedBatch[K, V, W, O]) Cursor() *layers.LayerCursor[K, V, W, O] { return b.Layer.Cursor() }

// RecedeTo is a no-op in the unit-time core; see Batch.RecedeTo.
func (b *IndexedBatch[K, V, W, O]) RecedeTo(Antichain) {}

// IndexedBuilder assembles an IndexedBatch from (K, V, W) tuples pushed in
// strictly ascending key, then value, order.
type IndexedBuilder[K any, V any, W any, O layers.Offset] struct {
	child *layers.LayerBuilder[K, V, W, O]
	lower Antichain
	upper Antichain
}

// NewIndexedBuilder allocates an empty sorted-push indexed builder sealing
// to the given bounds.
func NewIndexedBuilder[K any, V any, W any, O layers.Offset](kcmp consolidate.Compare[K], vcmp consolidate.Compare[V], group ring.Group[W], lower, upper Antichain) *IndexedBuilder[K, V, W, O] {
	return &IndexedBuilder[K, V, W, O]{
		child: layers.NewLayerBuilder[K, V, W, O](kcmp, vcmp, group),
		lower: lower,
		upper: upper,
	}
}

// Push appends a (key, value, weight) tuple.
func (b *IndexedBuilder[K, V, W, O]) Push(key K, val V, weight W) {
	b.child.PushTuple(key, val, weight)
}

// Done finalizes the builder and returns the sealed batch.
func (b *IndexedBuilder[K, V, W, O]) Done() *IndexedBatch[K, V, W, O] {
	return &IndexedBatch[K, V, W, O]{Layer: b.child.Done(), Lower: b.lower, Upper: b.upper}
}

// IndexedBatcher accepts (K, V, W) tuples in arbitrary order and seals
// them into an IndexedBatch. As with Batcher, the unsorted tuples are
// buffered, sorted and consolidated in one pass at Seal time rather than
// merged incrementally in chunks.
type IndexedBatcher[K any, V any, W any, O layers.Offset] struct {
	kcmp consolidate.Compare[K]
	vcmp consolidate.Compare[V]
	grp  ring.Group[W]
	rows []indexedRow[K, V, W]
}

type indexedRow[K any, V any, W any] struct {
	key    K
	val    V
	weight W
}

// NewIndexedBatcher allocates an empty indexed batcher.
func NewIndexedBatcher[K any, V any, W any, O layers.Offset](kcmp consolidate.Compare[K], vcmp consolidate.Compare[V], group ring.Group[W]) *IndexedBatcher[K, V, W, O] {
	return &IndexedBatcher[K, V, W, O]{kcmp: kcmp, vcmp: vcmp, grp: group}
}

// Push adds a tuple in arbitrary order.
func (b *IndexedBatcher[K, V, W, O]) Push(key K, val V, weight W) {
	b.rows = append(b.rows, indexedRow[K, V, W]{key: key, val: val, weight: weight})
}

// Seal sorts every pushed tuple by (key, value), sums weights of
// coincident (key, value) pairs, drops zero-weight survivors, and builds
// the resulting IndexedBatch bounded by [lower, upper).
func (b *IndexedBatcher[K, V, W, O]) Seal(lower, upper Antichain) *IndexedBatch[K, V, W, O] {
	rows := b.rows
	sortRows(rows, b.kcmp, b.vcmp)

	builder := layers.NewLayerBuilder[K, V, W, O](b.kcmp, b.vcmp, b.grp)
	read := 0
	for read < len(rows) {
		key, val := rows[read].key, rows[read].val
		sum := rows[read].weight
		run := read + 1
		for run < len(rows) && b.kcmp(rows[run].key, key) == 0 && b.vcmp(rows[run].val, val) == 0 {
			sum = b.grp.Add(sum, rows[run].weight)
			run++
		}
		if !b.grp.IsZero(sum) {
			builder.PushTuple(key, val, sum)
		}
		read = run
	}

	return &IndexedBatch[K, V, W, O]{Layer: builder.Done(), Lower: lower, Upper: upper}
}

// sortRows stably sorts rows by (key, value), the same sort.SliceStable
// delegation consolidate.Slice uses for the non-indexed path.
func sortRows[K any, V any, W any](rows []indexedRow[K, V, W], kcmp consolidate.Compare[K], vcmp consolidate.Compare[V]) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := kcmp(rows[i].key, rows[j].key); c != 0 {
			return c < 0
		}
		return vcmp(rows[i].val, rows[j].val) < 0
	})
}

// IndexedMerger advances a fueled pairwise merge of two indexed batches.
// See Merger for the fueling discussion; the same single-call-completes
// behavior applies here.
type IndexedMerger[K any, V any, W any, O layers.Offset] struct {
	builder *layers.MergeLayerBuilder[K, V, W, O]
	cursor1 *layers.LayerCursor[K, V, W, O]
	cursor2 *layers.LayerCursor[K, V, W, O]
	done    bool
}

// BeginIndexedMerge starts merging b1 and b2.
func BeginIndexedMerge[K any, V any, W any, O layers.Offset](b1, b2 *IndexedBatch[K, V, W, O], kcmp consolidate.Compare[K], vcmp consolidate.Compare[V], group ring.Group[W]) *IndexedMerger[K, V, W, O] {
	return &IndexedMerger[K, V, W, O]{
		builder: layers.NewMergeLayerBuilder(b1.Layer, b2.Layer, kcmp, vcmp, group),
		cursor1: b1.Cursor(),
		cursor2: b2.Cursor(),
	}
}

// Work advances the merge, decrementing fuel by the number of keys in the
// merged output. Fuel is clamped to at least 1 on return.
func (m *IndexedMerger[K, V, W, O]) Work(fuel *int64) {
	if m.done {
		return
	}
	spent := m.builder.PushMerge(m.cursor1, m.cursor2)
	*fuel -= int64(spent)
	if *fuel < 1 {
		*fuel = 1
	}
	m.done = true
}

// IsDone reports whether the merge has completed.
func (m *IndexedMerger[K, V, W, O]) IsDone() bool { return m.done }

// Done extracts the merged batch. Only meaningful once IsDone reports
// true.
func (m *IndexedMerger[K, V, W, O]) Done(lower, upper Antichain) *IndexedBatch[K, V, W, O] {
	return &IndexedBatch[K, V, W, O]{Layer: m.builder.Done(), Lower: lower, Upper: upper}
}
