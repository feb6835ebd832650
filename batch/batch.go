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
	"github.com/optakt/zset-core/consolidate"
	"github.com/optakt/zset-core/layers"
	"github.com/optakt/zset-core/ring"
)

// Batch is an immutable, sealed collection of (K, W) update tuples plus the
// antichain bounds it was sealed with. It is the non-indexed Z-set shape:
// a plain OrderedLeaf trie with no value dimension.
type Batch[K any, W any] struct {
	Leaf  *layers.OrderedLeaf[K, W]
	Lower Antichain
	Upper Antichain
}

// Len returns the number of (key, weight) tuples in the batch.
func (b *Batch[K, W]) Len() int { return b.Leaf.Tuples() }

// IsEmpty reports whether the batch contains no tuples.
func (b *Batch[K, W]) IsEmpty() bool { return b.Len() == 0 }

// Cursor returns a cursor over the batch's tuples.
func (b *Batch[K, W]) Cursor() *layers.LeafCursor[K, W] { return b.Leaf.Cursor() }

// RecedeTo downgrades the batch's bounds to a frontier. The unit-time core
// has nothing to downgrade: a batch's single time is always (), so this is
// a no-op kept only to satisfy the Trace contract spine.Spine relies on.
func (b *Batch[K, W]) RecedeTo(Antichain) {}

// Builder assembles a Batch from (K, W) tuples pushed in strictly
// ascending key order.
type Builder[K any, W any] struct {
	child *layers.TupleLeafBuilder[K, W]
	lower Antichain
	upper Antichain
}

// NewBuilder allocates an empty sorted-push builder sealing to the given
// bounds.
func NewBuilder[K any, W any](compare consolidate.Compare[K], group ring.Group[W], lower, upper Antichain) *Builder[K, W] {
	return &Builder[K, W]{
		child: layers.NewTupleLeafBuilder(compare, group),
		lower: lower,
		upper: upper,
	}
}

// Push appends a (key, weight) tuple. Push order is not checked: Done
// hands the buffer to layers.TupleLeafBuilder, which sorts and
// consolidates it, so out-of-order tuples are neither rejected nor
// reported.
func (b *Builder[K, W]) Push(key K, weight W) {
	b.child.PushTuple(consolidate.Tuple[K, W]{Key: key, Weight: weight})
}

// Done finalizes the builder and returns the sealed batch.
func (b *Builder[K, W]) Done() *Batch[K, W] {
	return &Batch[K, W]{Leaf: b.child.Done(), Lower: b.lower, Upper: b.upper}
}

// Batcher accepts (K, W) tuples in arbitrary order and seals them into a
// Batch. indexed_zset_batch.rs's batcher accumulates unsorted tuples and
// multi-way merges sorted runs at seal time; this implementation buffers
// every pushed tuple and hands the whole buffer to
// layers.TupleLeafBuilder, whose own consolidate.Slice call performs the
// sort-and-sum in one pass. There is no streaming source here to make
// incremental runs worth the extra bookkeeping, so a single sort at seal
// time is simpler and no slower.
type Batcher[K any, W any] struct {
	child *layers.TupleLeafBuilder[K, W]
}

// NewBatcher allocates an empty batcher.
func NewBatcher[K any, W any](compare consolidate.Compare[K], group ring.Group[W]) *Batcher[K, W] {
	return &Batcher[K, W]{child: layers.NewTupleLeafBuilder(compare, group)}
}

// Push adds a tuple in arbitrary order.
func (b *Batcher[K, W]) Push(key K, weight W) {
	b.child.PushTuple(consolidate.Tuple[K, W]{Key: key, Weight: weight})
}

// Seal consolidates every pushed tuple and produces a Batch bounded by
// [lower, upper).
func (b *Batcher[K, W]) Seal(lower, upper Antichain) *Batch[K, W] {
	return &Batch[K, W]{Leaf: b.child.Done(), Lower: lower, Upper: upper}
}

// Merger advances a fueled pairwise merge of two batches. Work decrements
// fuel by the number of tuples in the merged output (input tuples that
// cancel out are not charged) and clamps it to at least 1 per call; because
// layers.MergeLeafBuilder.PushMerge is not itself interruptible mid-merge
// (it always consumes both cursors fully in one call, matching
// indexed_zset_batch.rs's OrdIndexedZSetMerger::work), a Merger always
// completes on its first Work call.
type Merger[K any, W any] struct {
	builder *layers.MergeLeafBuilder[K, W]
	cursor1 *layers.LeafCursor[K, W]
	cursor2 *layers.LeafCursor[K, W]
	done    bool
}

// BeginMerge starts merging b1 and b2.
func BeginMerge[K any, W any](b1, b2 *Batch[K, W], compare consolidate.Compare[K], group ring.Group[W]) *Merger[K, W] {
	return &Merger[K, W]{
		builder: layers.NewMergeLeafBuilder(b1.Leaf, b2.Leaf, compare, group),
		cursor1: b1.Cursor(),
		cursor2: b2.Cursor(),
	}
}

// Work advances the merge, decrementing fuel by the number of tuples in
// the merged output. Fuel is clamped to at least 1 on return.
func (m *Merger[K, W]) Work(fuel *int64) {
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
func (m *Merger[K, W]) IsDone() bool { return m.done }

// Done extracts the merged batch. Only meaningful once IsDone reports
// true.
func (m *Merger[K, W]) Done(lower, upper Antichain) *Batch[K, W] {
	return &Batch[K, W]{Leaf: m.builder.Done(), Lower: lower, Upper: upper}
}
