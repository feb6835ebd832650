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
	"github.com/optakt/zset-core/batch"
	"github.com/optakt/zset-core/consolidate"
	"github.com/optakt/zset-core/ring"
)

// kind classifies a level slot, used by Describe for diagnostics.
type kind int

const (
	kindVacant kind = iota
	kindSingle
	kindDouble
)

// level is the state of one power-of-two slot in the spine: empty, one
// batch, or two batches in the process of merging. A nil batch inside
// Single represents a structurally empty placeholder introduced purely to
// nudge the spine with fuel when no real merge is in progress.
type level[K any, W any] struct {
	state   kind
	single  *batch.Batch[K, W]
	double  *mergeVariant[K, W]
}

func vacantLevel[K any, W any]() level[K, W] { return level[K, W]{state: kindVacant} }

func singleLevel[K any, W any](b *batch.Batch[K, W]) level[K, W] {
	return level[K, W]{state: kindSingle, single: b}
}

// mergeVariant is either an in-progress merge of two batches, or a
// completed one (possibly structurally empty).
type mergeVariant[K any, W any] struct {
	inProgress bool
	b1, b2     *batch.Batch[K, W]
	merger     *batch.Merger[K, W]
	complete   *batch.Batch[K, W]
}

// beginMerge starts merging b1 and b2, either of which may be nil
// (structurally empty). Two real batches start an in-progress merger; a
// real batch paired with nil is already complete, matching
// spine_fueled.rs's MergeState::begin_merge.
func beginMerge[K any, W any](b1, b2 *batch.Batch[K, W], compare consolidate.Compare[K], group ring.Group[W]) *mergeVariant[K, W] {
	switch {
	case b1 != nil && b2 != nil:
		return &mergeVariant[K, W]{inProgress: true, b1: b1, b2: b2, merger: batch.BeginMerge(b1, b2, compare, group)}
	case b1 != nil:
		return &mergeVariant[K, W]{complete: b1}
	case b2 != nil:
		return &mergeVariant[K, W]{complete: b2}
	default:
		return &mergeVariant[K, W]{}
	}
}

// work applies fuel to an in-progress merge, transitioning it to complete
// once the underlying Merger reports done (which, per batch.Merger's
// contract, is always after the first Work call).
func (v *mergeVariant[K, W]) work(fuel *int64) {
	if !v.inProgress {
		return
	}
	v.merger.Work(fuel)
	if v.merger.IsDone() {
		lower := v.b1.Lower.Meet(v.b2.Lower)
		upper := v.b1.Upper.Join(v.b2.Upper)
		v.complete = v.merger.Done(lower, upper)
		v.inProgress = false
		v.merger = nil
	}
}

func (v *mergeVariant[K, W]) isComplete() bool { return !v.inProgress }

// len reports the accounted length of the variant: both inputs while
// in-progress, or the merged batch's length once complete.
func (v *mergeVariant[K, W]) len() int {
	if v.inProgress {
		return v.b1.Len() + v.b2.Len()
	}
	if v.complete != nil {
		return v.complete.Len()
	}
	return 0
}

func (l *level[K, W]) len() int {
	switch l.state {
	case kindSingle:
		if l.single != nil {
			return l.single.Len()
		}
		return 0
	case kindDouble:
		return l.double.len()
	default:
		return 0
	}
}

func (l *level[K, W]) isVacant() bool { return l.state == kindVacant }
func (l *level[K, W]) isSingle() bool { return l.state == kindSingle }
func (l *level[K, W]) isDouble() bool { return l.state == kindDouble }

func (l *level[K, W]) isInProgress() bool {
	return l.state == kindDouble && l.double.inProgress
}

// work applies fuel to the level's in-progress merge, if any. Single and
// Vacant levels, and Double levels whose merge already completed, ignore
// it.
func (l *level[K, W]) work(fuel *int64) {
	if l.state == kindDouble {
		l.double.work(fuel)
	}
}

func (l *level[K, W]) isMergeComplete() bool {
	return l.state == kindDouble && l.double.isComplete()
}

// take extracts the level's state, leaving it Vacant, mirroring
// spine_fueled.rs's MergeState::take (mem::replace with Vacant).
func (l *level[K, W]) take() level[K, W] {
	old := *l
	*l = vacantLevel[K, W]()
	return old
}

// complete immediately drives any in-progress merge to completion with
// unbounded fuel and extracts the resulting batch, leaving the level
// Vacant.
func (l *level[K, W]) complete() *batch.Batch[K, W] {
	old := l.take()
	switch old.state {
	case kindSingle:
		return old.single
	case kindDouble:
		fuel := int64(1<<62 - 1)
		old.double.work(&fuel)
		return old.double.complete
	default:
		return nil
	}
}
