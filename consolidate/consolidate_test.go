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

package consolidate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optakt/zset-core/consolidate"
	"github.com/optakt/zset-core/ring"
)

func compareInt(a, b int) int { return a - b }

func TestSlice_SumsAndDropsZero(t *testing.T) {
	s := []consolidate.Tuple[int, int64]{
		{Key: 3, Weight: 1},
		{Key: 1, Weight: 1},
		{Key: 1, Weight: -1},
		{Key: 2, Weight: 2},
		{Key: 3, Weight: 1},
	}

	n := consolidate.Slice(s, compareInt, ring.Int{})
	require.Equal(t, 2, n)

	got := s[:n]
	assert.Equal(t, consolidate.Tuple[int, int64]{Key: 2, Weight: 2}, got[0])
	assert.Equal(t, consolidate.Tuple[int, int64]{Key: 3, Weight: 2}, got[1])
}

func TestSlice_Idempotent(t *testing.T) {
	s := []consolidate.Tuple[int, int64]{
		{Key: 1, Weight: 4},
		{Key: 5, Weight: -4},
		{Key: 2, Weight: 1},
	}

	n1 := consolidate.Slice(s, compareInt, ring.Int{})
	once := append([]consolidate.Tuple[int, int64]{}, s[:n1]...)

	n2 := consolidate.Slice(s[:n1], compareInt, ring.Int{})
	assert.Equal(t, n1, n2)
	assert.Equal(t, once, s[:n2])
}

func TestSlice_Empty(t *testing.T) {
	var s []consolidate.Tuple[int, int64]
	assert.Equal(t, 0, consolidate.Slice(s, compareInt, ring.Int{}))
}

func TestAdvance_MatchesTakeWhile(t *testing.T) {
	tests := []struct {
		name string
		n    int
		cut  int
	}{
		{"empty", 0, 0},
		{"within-small-limit", 5, 3},
		{"exactly-small-limit", 8, 8},
		{"large-prefix-all-true", 50, 50},
		{"large-prefix-partial", 1000, 417},
		{"large-prefix-none", 100, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := make([]int, test.n)
			for i := range s {
				s[i] = i
			}
			pred := func(v int) bool { return v < test.cut }

			got := consolidate.Advance(s, pred)

			want := 0
			for _, v := range s {
				if !pred(v) {
					break
				}
				want++
			}
			assert.Equal(t, want, got)
		})
	}
}
