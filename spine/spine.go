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

package spine

import (
	"math/bits"

	"github.com/optakt/zset-core/batch"
	"github.com/optakt/zset-core/consolidate"
	"github.com/optakt/zset-core/layers"
	"github.com/optakt/zset-core/ring"
)

// unboundedFuel is used whenever a merge must be driven to completion
// regardless of cost (Consolidate, RecedeTo's completeMerges), mirroring
// spine_fueled.rs's use of isize::max_value().
const unboundedFuel = int64(1)<<62 - 1

// Spine is the append-only, fueled trace: a sequence of power-of-two
// level slots holding at most two batches each, merged progressively as
// fuel accompanying new insertions is spent.
type Spine[K any, W any] struct {
	merging []level[K, W]
	lower   batch.Antichain
	upper   batch.Antichain
	effort  int
	dirty   bool
	compare consolidate.Compare[K]
	group   ring.Group[W]
}

// NewSpine allocates an empty spine with the given key ordering and weight
// algebra, applying any supplied Options over DefaultConfig.
func NewSpine[K any, W any](compare consolidate.Compare[K], group ring.Group[W], opts ...Option) (*Spine[K, W], error) {
	config, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Spine[K, W]{
		lower:   batch.AntichainPresent(),
		upper:   batch.AntichainAbsent(),
		effort:  config.Effort,
		compare: compare,
		group:   group,
	}, nil
}

// Lower returns the spine's running lower bound: the meet of every
// inserted batch's lower bound.
func (s *Spine[K, W]) Lower() batch.Antichain { return s.lower }

// Upper returns the spine's running upper bound: the join of every
// inserted batch's upper bound.
func (s *Spine[K, W]) Upper() batch.Antichain { return s.upper }

// Dirty reports whether a batch has been inserted since the last
// ClearDirtyFlag call.
func (s *Spine[K, W]) Dirty() bool { return s.dirty }

// ClearDirtyFlag resets the dirty flag, conventionally called by the
// caller once it has observed the spine's state.
func (s *Spine[K, W]) ClearDirtyFlag() { s.dirty = false }

// Len returns the total number of tuples across every batch in the spine.
func (s *Spine[K, W]) Len() int {
	total := 0
	s.MapBatches(func(b *batch.Batch[K, W]) { total += b.Len() })
	return total
}

// MapBatches invokes f on every live batch in the spine, from the largest
// level down to the smallest, including both sides of an in-progress
// merge.
func (s *Spine[K, W]) MapBatches(f func(*batch.Batch[K, W])) {
	for i := len(s.merging) - 1; i >= 0; i-- {
		l := &s.merging[i]
		switch {
		case l.state == kindDouble && l.double.inProgress:
			f(l.double.b1)
			f(l.double.b2)
		case l.state == kindDouble && l.double.complete != nil:
			f(l.double.complete)
		case l.state == kindSingle && l.single != nil:
			f(l.single)
		}
	}
}

// Cursor gathers every non-empty batch across the spine's slots into a
// merged CursorList presenting the union of their tuples. The cursor is a
// snapshot: it must not be used after any subsequent mutating call
// (Insert, Exert, Consolidate, RecedeTo) on this spine.
func (s *Spine[K, W]) Cursor() *CursorList[K, W] {
	var cursors []*layers.LeafCursor[K, W]
	for i := len(s.merging) - 1; i >= 0; i-- {
		l := &s.merging[i]
		switch {
		case l.state == kindDouble && l.double.inProgress:
			if l.double.b1 != nil && !l.double.b1.IsEmpty() {
				cursors = append(cursors, l.double.b1.Cursor())
			}
			if l.double.b2 != nil && !l.double.b2.IsEmpty() {
				cursors = append(cursors, l.double.b2.Cursor())
			}
		case l.state == kindDouble && l.double.complete != nil:
			if !l.double.complete.IsEmpty() {
				cursors = append(cursors, l.double.complete.Cursor())
			}
		case l.state == kindSingle && l.single != nil:
			if !l.single.IsEmpty() {
				cursors = append(cursors, l.single.Cursor())
			}
		}
	}
	return NewCursorList(cursors, s.compare, s.group)
}

// Insert adds a batch to the spine, amortizing merge cost over the
// insertion. Empty batches are silently ignored rather than treated as an
// error.
func (s *Spine[K, W]) Insert(b *batch.Batch[K, W]) {
	if b == nil || b.IsEmpty() {
		return
	}

	s.dirty = true
	s.lower = s.lower.Meet(b.Lower)
	s.upper = s.upper.Join(b.Upper)

	s.introduceBatch(b, levelFor(b.Len()))
}

// Exert applies up to fuel units of maintenance work: directly to any
// in-progress merge, or by introducing a fuel-only placeholder batch if
// none is in progress, nudging the spine toward a reduced state.
func (s *Spine[K, W]) Exert(fuel *int64) {
	s.tidyLayers()
	if s.reduced() {
		return
	}

	anyDouble := false
	for i := range s.merging {
		if s.merging[i].isDouble() {
			anyDouble = true
			break
		}
	}
	if anyDouble {
		s.applyFuel(fuel)
		return
	}

	f := *fuel
	if f < 1 {
		f = 1
	}
	s.introduceBatch(nil, levelFor(int(f)))
}

// Consolidate drives the spine to a single batch (or none, if empty) by
// repeatedly exerting unbounded fuel.
func (s *Spine[K, W]) Consolidate() *batch.Batch[K, W] {
	fuel := unboundedFuel
	for !s.reduced() {
		s.Exert(&fuel)
	}
	for i := range s.merging {
		l := &s.merging[i]
		if l.state == kindSingle && l.single != nil && !l.single.IsEmpty() {
			return l.single
		}
	}
	return nil
}

// RecedeTo completes every in-progress merge (timestamps cannot be
// rewritten mid-merge) and then downgrades every batch's bounds to the
// given frontier.
func (s *Spine[K, W]) RecedeTo(frontier batch.Antichain) {
	s.completeMerges()
	s.mapBatchesMut(func(b *batch.Batch[K, W]) { b.RecedeTo(frontier) })
}

// LevelDescription is one row of Spine.Describe's diagnostic output.
type LevelDescription struct {
	Kind int // 0 = Vacant, 1 = Single, 2 = Double
	Len  int
}

// Describe returns, per level, the slot's variant and effective length.
// Intended for tests and diagnostics, mirroring spine_fueled.rs's
// describe().
func (s *Spine[K, W]) Describe() []LevelDescription {
	out := make([]LevelDescription, len(s.merging))
	for i := range s.merging {
		out[i] = LevelDescription{Kind: int(s.merging[i].state), Len: s.merging[i].len()}
	}
	return out
}

// levelFor computes ceil(log2(n)) the way next_power_of_two().trailing_zeros()
// does in the reference implementation: levelFor(1) == 0, levelFor(2) == 1,
// levelFor(3) == 2, levelFor(4) == 2.
func levelFor(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// reduced reports whether the spine holds at most one non-empty batch and
// no in-progress merge: the terminal state of Consolidate.
func (s *Spine[K, W]) reduced() bool {
	nonEmpty := 0
	for i := range s.merging {
		if s.merging[i].isDouble() {
			return false
		}
		if s.merging[i].len() > 0 {
			nonEmpty++
		}
		if nonEmpty > 1 {
			return false
		}
	}
	return true
}

// ensureLen grows merging with Vacant slots until it has at least n
// entries.
func (s *Spine[K, W]) ensureLen(n int) {
	for len(s.merging) < n {
		s.merging = append(s.merging, vacantLevel[K, W]())
	}
}

// insertAt places b at the given level, starting a merge if the level
// already held a single batch. Inserting into a level that still holds
// two batches mid-merge is a fatal invariant violation: roll_up/
// introduceBatch is supposed to have cleared the level first.
func (s *Spine[K, W]) insertAt(b *batch.Batch[K, W], index int) {
	s.ensureLen(index + 1)
	old := s.merging[index].take()
	switch old.state {
	case kindVacant:
		s.merging[index] = singleLevel(b)
	case kindSingle:
		s.merging[index] = level[K, W]{state: kindDouble, double: beginMerge(old.single, b, s.compare, s.group)}
	default:
		panic(ErrDoubleOccupied)
	}
}

// completeAt immediately extracts whatever is at level index, driving any
// in-progress merge to completion with unbounded fuel.
func (s *Spine[K, W]) completeAt(index int) *batch.Batch[K, W] {
	return s.merging[index].complete()
}

// introduceBatch is the core fueling sequence, mirroring spine_fueled.rs's
// introduce_batch: fuel in-progress merges, roll up lower levels so the
// target level is vacant, insert, then tidy.
func (s *Spine[K, W]) introduceBatch(b *batch.Batch[K, W], index int) {
	fuel := int64(8) << uint(index)
	fuel *= int64(s.effort)

	s.applyFuel(&fuel)
	s.rollUp(index)
	s.insertAt(b, index)
	s.tidyLayers()
}

// rollUp ensures levels [0, index) are all Vacant, cascading any batches
// found there up into level index.
func (s *Spine[K, W]) rollUp(index int) {
	s.ensureLen(index + 1)

	anyNonVacant := false
	for i := 0; i < index; i++ {
		if !s.merging[i].isVacant() {
			anyNonVacant = true
			break
		}
	}
	if !anyNonVacant {
		return
	}

	var merged *batch.Batch[K, W]
	for i := 0; i < index; i++ {
		s.insertAt(merged, i)
		merged = s.completeAt(i)
	}

	s.insertAt(merged, index)
	if s.merging[index].isDouble() {
		merged = s.completeAt(index)
		s.insertAt(merged, index+1)
	}
}

// applyFuel gives every in-progress merge an independent share of fuel,
// promoting any merge that completes to the next level up.
func (s *Spine[K, W]) applyFuel(fuel *int64) {
	for i := 0; i < len(s.merging); i++ {
		local := *fuel
		s.merging[i].work(&local)
		if s.merging[i].isMergeComplete() {
			complete := s.completeAt(i)
			s.insertAt(complete, i+1)
		}
	}
}

// tidyLayers attempts to draw the topmost single batch down toward
// smaller, size-appropriate levels, absorbing vacant/empty slots and
// initiating a new merge if sizes stay within the invariant bound,
// mirroring spine_fueled.rs's tidy_layers.
func (s *Spine[K, W]) tidyLayers() {
	if len(s.merging) == 0 {
		return
	}
	length := len(s.merging)
	if !s.merging[length-1].isSingle() {
		return
	}

	appropriate := levelFor(s.merging[length-1].len())
	for appropriate < length-1 {
		below := &s.merging[length-2]
		switch {
		case below.isVacant() || (below.isSingle() && below.single == nil):
			s.merging = append(s.merging[:length-2], s.merging[length-1:]...)
			length = len(s.merging)

		case below.isSingle():
			carried := below.single

			smaller := 0
			for idx := 0; idx < length-2; idx++ {
				switch {
				case s.merging[idx].isVacant():
				case s.merging[idx].isSingle():
					smaller += 1 << uint(idx)
				case s.merging[idx].isDouble():
					smaller += 2 << uint(idx)
				}
			}

			if smaller <= (1<<uint(length))/8 {
				s.merging = append(s.merging[:length-2], s.merging[length-1:]...)
				s.insertAt(carried, length-2)
			} else {
				s.merging[length-2] = singleLevel(carried)
			}
			return

		default: // Double: an in-progress or just-completed merge, leave it.
			return
		}
	}
}

// completeMerges drives every in-progress merge to completion with
// unbounded fuel, leaving no Double-InProgress slot behind.
func (s *Spine[K, W]) completeMerges() {
	for i := range s.merging {
		if s.merging[i].isInProgress() {
			fuel := unboundedFuel
			s.merging[i].double.work(&fuel)
		}
	}
}

// mapBatchesMut mutates every live batch via f. Calling this while a
// merge is still in progress is a programmer error; completeMerges must
// run first (as RecedeTo does).
func (s *Spine[K, W]) mapBatchesMut(f func(*batch.Batch[K, W])) {
	for i := len(s.merging) - 1; i >= 0; i-- {
		l := &s.merging[i]
		switch {
		case l.state == kindDouble && l.double.inProgress:
			panic(ErrMergeInProgress)
		case l.state == kindDouble && l.double.complete != nil:
			f(l.double.complete)
		case l.state == kindSingle && l.single != nil:
			f(l.single)
		}
	}
}
