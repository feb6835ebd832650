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

// Package helpers provides deterministic fixture generators shared by the
// engine's tests and its benchmark command.
package helpers

// LinearCongruentialGenerator is a pseudo-random number generator that
// produces the same sequence on every run given the same seed, so
// property tests and benchmarks stay reproducible across machines. It
// uses the 16-bit output parameters of the classic Microsoft Visual
// Basic generator: not cryptographically meaningful, just stable.
// See https://en.wikipedia.org/wiki/Linear_congruential_generator
type LinearCongruentialGenerator struct {
	seed uint64
}

// NewGenerator returns a generator seeded with the given value. Two
// generators built with the same seed produce identical sequences.
func NewGenerator(seed uint64) *LinearCongruentialGenerator {
	return &LinearCongruentialGenerator{seed: seed}
}

// Next returns the next pseudo-random value in the sequence.
func (rng *LinearCongruentialGenerator) Next() uint16 {
	rng.seed = (rng.seed*1140671485 + 12820163) % 65536
	return uint16(rng.seed)
}

// SampleKeyWeightTuples generates count pseudo-random (key, weight)
// tuples over the given key range, with weight always +1: the shape
// cmd/zsetbench's random workload consumes.
func SampleKeyWeightTuples(rng *LinearCongruentialGenerator, count int, keyRange uint16) ([]int64, []int64) {
	keys := make([]int64, 0, count)
	weights := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		keys = append(keys, int64(rng.Next()%keyRange))
		weights = append(weights, 1)
	}
	return keys, weights
}

// SampleEdges generates count pseudo-random directed edges over
// [0, nodeRange), the shape cmd/zsetbench's galen-style transitive
// closure workload seeds its input relation with.
func SampleEdges(rng *LinearCongruentialGenerator, count int, nodeRange uint16) [][2]int64 {
	edges := make([][2]int64, 0, count)
	for i := 0; i < count; i++ {
		from := rng.Next() % nodeRange
		to := rng.Next() % nodeRange
		edges = append(edges, [2]int64{int64(from), int64(to)})
	}
	return edges
}
