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

package fixpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optakt/zset-core/batch"
	"github.com/optakt/zset-core/fixpoint"
	"github.com/optakt/zset-core/ring"
)

type edge struct {
	From, To int64
}

func cmpEdge(a, b edge) int {
	switch {
	case a.From != b.From:
		if a.From < b.From {
			return -1
		}
		return 1
	case a.To != b.To:
		if a.To < b.To {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// TestIterate_TransitiveClosure runs the core's fixed-point operator over
// a three-edge path 1->2->3->4 with a semi-naive join body, and confirms
// it converges to the full transitive closure with every edge at weight
// +1.
func TestIterate_TransitiveClosure(t *testing.T) {
	base := []edge{{1, 2}, {2, 3}, {3, 4}}
	full := map[edge]int64{}

	body := func(feedback *batch.Batch[edge, int64]) *batch.Batch[edge, int64] {
		var deltaEdges []edge
		if feedback != nil {
			c := feedback.Cursor()
			for c.Valid() {
				deltaEdges = append(deltaEdges, c.Key())
				c.Step()
			}
		}

		batcher := batch.NewBatcher[edge, int64](cmpEdge, ring.Int{})
		if feedback == nil {
			for _, e := range base {
				batcher.Push(e, 1)
			}
		} else {
			// join(full, delta) and join(delta, full): compose each
			// new edge with every previously known edge in both
			// directions.
			for _, d := range deltaEdges {
				for e := range full {
					if e.To == d.From {
						batcher.Push(edge{e.From, d.To}, 1)
					}
					if e.From == d.To {
						batcher.Push(edge{d.From, e.To}, 1)
					}
				}
			}
			// join(delta, delta): compose pairs of edges that both
			// arrived in this round's feedback together.
			for _, d := range deltaEdges {
				for _, d2 := range deltaEdges {
					if d2.From == d.To {
						batcher.Push(edge{d.From, d2.To}, 1)
					}
				}
			}
		}

		for _, d := range deltaEdges {
			full[d]++
		}

		return batcher.Seal(batch.AntichainPresent(), batch.AntichainAbsent())
	}

	result, err := fixpoint.Iterate[edge, int64](body, cmpEdge, ring.Int{})
	require.NoError(t, err)
	require.NotNil(t, result)

	got := map[edge]int64{}
	c := result.Cursor()
	for c.Valid() {
		got[c.Key()] = c.Weight()
		c.Step()
	}

	want := map[edge]int64{
		{1, 2}: 1, {2, 3}: 1, {3, 4}: 1,
		{1, 3}: 1, {2, 4}: 1,
		{1, 4}: 1,
	}
	assert.Equal(t, want, got)
}

// TestIterate_NilBodyFeedbackFirstRound confirms the first call to body
// always observes a nil feedback, and that a body producing nothing ever
// converges immediately to an empty result.
func TestIterate_NilBodyFeedbackFirstRound(t *testing.T) {
	seen := 0
	body := func(feedback *batch.Batch[int64, int64]) *batch.Batch[int64, int64] {
		if seen == 0 {
			assert.Nil(t, feedback)
		}
		seen++
		return batch.NewBuilder[int64, int64](cmpInt64, ring.Int{}, batch.AntichainPresent(), batch.AntichainAbsent()).Done()
	}

	cmpFn := cmpInt64
	result, err := fixpoint.Iterate[int64, int64](body, cmpFn, ring.Int{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Len())
	assert.Equal(t, 1, seen)
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

// TestIntegrate_RunningSum matches integrate.rs's scalar_integrate
// example: integrating a constant stream of 1s yields 1, 2, 3, ...
func TestIntegrate_RunningSum(t *testing.T) {
	ones := make([]int64, 5)
	for i := range ones {
		ones[i] = 1
	}

	got := fixpoint.Integrate(ones, ring.Int{})
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)
}

// TestIntegrateNested_ScalarIntegrateNested reproduces integrate.rs's
// scalar_integrate_nested fixture exactly: four outer rounds with input
// values 3, 4, 2, 5, each producing a countdown-to-zero row; the nested
// integral sums matching positions across rounds, and summing each row
// reproduces the outer integral sequence 6, 16, 19, 34.
func TestIntegrateNested_ScalarIntegrateNested(t *testing.T) {
	rows := [][]int64{
		{3, 2, 1, 0},
		{4, 3, 2, 1, 0},
		{2, 1, 0},
		{5, 4, 3, 2, 1, 0},
	}

	got := fixpoint.IntegrateNested(rows, ring.Int{})

	want := [][]int64{
		{3, 2, 1, 0},
		{7, 5, 3, 1, 0},
		{9, 6, 3, 1, 0},
		{14, 10, 6, 3, 1, 0},
	}
	require.Equal(t, want, got)

	outer := make([]int64, len(got))
	for i, row := range got {
		var sum int64
		for _, v := range row {
			sum += v
		}
		outer[i] = sum
	}
	assert.Equal(t, []int64{6, 16, 19, 34}, outer)
}
