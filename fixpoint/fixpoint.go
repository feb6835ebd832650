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

// Package fixpoint implements the nested-circuit construct that runs a
// differential body to convergence via delayed self-reference feedback,
// plus the scalar and nested integral operators built on the same
// accumulate-and-feed-back shape.
package fixpoint

import (
	"errors"

	"github.com/optakt/zset-core/batch"
	"github.com/optakt/zset-core/consolidate"
	"github.com/optakt/zset-core/ring"
	"github.com/optakt/zset-core/spine"
)

// maxRounds bounds Iterate against a body that never settles. The
// reference implementation relies on the condition stream eventually
// reporting true; a core with no notion of stream termination needs an
// explicit backstop instead.
const maxRounds = 10000

// ErrDidNotConverge is returned by Iterate if body keeps contributing new
// tuples past maxRounds, indicating the body's feedback is not monotone
// or not bounded; a well-behaved body is expected to converge, and
// failing to is a caller bug.
var ErrDidNotConverge = errors.New("fixpoint: body did not converge")

// Body is one round of a fixed-point computation. feedback carries the
// delta between the previous round's accumulated-and-distinct result and
// the one before it (nil on the first call, when nothing has accumulated
// yet). Body returns this round's contribution to the running
// accumulation; Iterate folds every round's contribution together,
// applies distinct, and keeps calling Body with the new delta until a
// round leaves the distinct result unchanged.
type Body[K any, W any] func(feedback *batch.Batch[K, W]) *batch.Batch[K, W]

// Iterate runs body to a fixed point: a nested-circuit construct that
// drives a differential body to convergence via delayed self-reference
// feedback. Internally it accumulates every round's contribution in a
// spine, applies distinct to the running total, and feeds the
// round-over-round delta of that distinct snapshot back into body. It
// terminates once a round's delta is empty.
//
// body is responsible only for this round's local computation (e.g. a
// join against the previous round's feedback); any additional
// accumulation body itself needs (semi-naive join state, say) is the
// caller's concern, not the core's — join sits above the batch algebra.
func Iterate[K any, W any](body Body[K, W], compare consolidate.Compare[K], group ring.Signed[W]) (*batch.Batch[K, W], error) {
	trace, err := spine.NewSpine[K, W](compare, group)
	if err != nil {
		return nil, err
	}

	var feedback *batch.Batch[K, W]
	var previous *batch.Batch[K, W]

	for round := 0; round < maxRounds; round++ {
		contribution := body(feedback)
		trace.Insert(contribution)

		merged := trace.Consolidate()
		current := distinctBatch(merged, compare, group)

		delta := diff(previous, current, compare, group)
		if delta == nil || delta.IsEmpty() {
			return current, nil
		}

		feedback = delta
		previous = current
	}

	return nil, ErrDidNotConverge
}

// distinctBatch maps every positive-weight tuple to weight One and drops
// every non-positive one, the core's minimal distinct.
func distinctBatch[K any, W any](b *batch.Batch[K, W], compare consolidate.Compare[K], group ring.Signed[W]) *batch.Batch[K, W] {
	lower, upper := batch.AntichainPresent(), batch.AntichainAbsent()
	if b != nil {
		lower, upper = b.Lower, b.Upper
	}
	builder := batch.NewBuilder[K, W](compare, group, lower, upper)
	if b != nil {
		c := b.Cursor()
		for c.Valid() {
			if group.Positive(c.Weight()) {
				builder.Push(c.Key(), group.One())
			}
			c.Step()
		}
	}
	return builder.Done()
}

// negate returns a batch with every weight inverted.
func negate[K any, W any](b *batch.Batch[K, W], compare consolidate.Compare[K], group ring.Group[W]) *batch.Batch[K, W] {
	if b == nil {
		return nil
	}
	builder := batch.NewBuilder[K, W](compare, group, b.Lower, b.Upper)
	c := b.Cursor()
	for c.Valid() {
		builder.Push(c.Key(), group.Negate(c.Weight()))
		c.Step()
	}
	return builder.Done()
}

// diff computes current - previous as a batch, the algebraic difference
// driving Iterate's feedback.
func diff[K any, W any](previous, current *batch.Batch[K, W], compare consolidate.Compare[K], group ring.Group[W]) *batch.Batch[K, W] {
	switch {
	case previous == nil || previous.IsEmpty():
		return current
	case current == nil || current.IsEmpty():
		return negate(previous, compare, group)
	}
	merger := batch.BeginMerge(negate(previous, compare, group), current, compare, group)
	fuel := int64(1)
	merger.Work(&fuel)
	return merger.Done(batch.AntichainPresent(), batch.AntichainAbsent())
}

// Integrate returns the running sum of xs under group: out[i] is the sum
// of xs[0..i] inclusive, matching integrate.rs's scalar integral.
func Integrate[D any](xs []D, group ring.Group[D]) []D {
	out := make([]D, len(xs))
	running := group.Zero()
	for i, x := range xs {
		running = group.Add(running, x)
		out[i] = running
	}
	return out
}

// IntegrateNested sums nested rows the way integrate.rs's
// integrate_nested does: out[i][j] is the sum, over every row k <= i, of
// rows[k][j], treating a row shorter than the running accumulator as
// zero-padded at its tail. Each returned row has the same length as the
// running accumulator at that point, which only ever grows.
func IntegrateNested[D any](rows [][]D, group ring.Group[D]) [][]D {
	out := make([][]D, len(rows))
	var running []D
	for i, row := range rows {
		if len(row) > len(running) {
			grown := make([]D, len(row))
			copy(grown, running)
			for j := len(running); j < len(row); j++ {
				grown[j] = group.Zero()
			}
			running = grown
		}
		for j, v := range row {
			running[j] = group.Add(running[j], v)
		}
		snapshot := make([]D, len(running))
		copy(snapshot, running)
		out[i] = snapshot
	}
	return out
}
