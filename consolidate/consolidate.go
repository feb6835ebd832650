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

// Package consolidate provides the sort-and-sum primitive every builder in
// the engine relies on at seal time, plus the galloping-search helper used
// by every cursor's seek operation.
package consolidate

import (
	"sort"

	"github.com/optakt/zset-core/ring"
)

// Compare orders two keys: negative if a < b, zero if equal, positive if
// a > b. Every sorted-trie operation in this module takes one of these
// instead of requiring K to satisfy an ordering interface directly, since
// Go generics cannot express "K has a Less method" for arbitrary types.
type Compare[K any] func(a, b K) int

// Tuple is a single (key, weight) pair, the unit the engine consolidates.
type Tuple[K any, W any] struct {
	Key    K
	Weight W
}

// Slice stably sorts s by key, sums the weight of consecutive equal keys,
// drops entries whose summed weight is zero, and compacts survivors to the
// front of s. It returns the number of surviving tuples; callers must
// truncate s to that length themselves.
func Slice[K any, W any](s []Tuple[K, W], compare Compare[K], group ring.Group[W]) int {
	if len(s) == 0 {
		return 0
	}

	sort.SliceStable(s, func(i, j int) bool { return compare(s[i].Key, s[j].Key) < 0 })

	write := 0
	read := 0
	for read < len(s) {
		key := s[read].Key
		sum := s[read].Weight
		run := read + 1
		for run < len(s) && compare(s[run].Key, key) == 0 {
			sum = group.Add(sum, s[run].Weight)
			run++
		}
		if !group.IsZero(sum) {
			s[write] = Tuple[K, W]{Key: key, Weight: sum}
			write++
		}
		read = run
	}

	return write
}

// smallLimit is the size under which advance falls back to a linear scan
// rather than paying for exponential search setup.
const smallLimit = 8

// Advance returns the length of the maximal prefix of s for which pred
// holds. pred must be monotone-false: once it returns false for an
// element, it must return false for every later element. Advance uses
// galloping (exponential) search, checking index 8 first, then doubling
// the step until pred fails, then binary-refining back down.
//
// trace/layers/mod.rs's advance doubles its step with `step <<= step`,
// which is not the standard galloping search and degenerates badly; this
// implementation uses the standard `step <<= 1` doubling instead.
func Advance[T any](s []T, pred func(T) bool) int {
	if len(s) <= smallLimit || !pred(s[smallLimit]) {
		limit := len(s)
		if limit > smallLimit {
			limit = smallLimit
		}
		count := 0
		for ; count < limit; count++ {
			if !pred(s[count]) {
				break
			}
		}
		return count
	}

	index := smallLimit + 1
	if index < len(s) && pred(s[index]) {
		step := 1
		for index+step < len(s) && pred(s[index+step]) {
			index += step
			step <<= 1
		}

		step >>= 1
		for step > 0 {
			if index+step < len(s) && pred(s[index+step]) {
				index += step
			}
			step >>= 1
		}

		index++
	}

	return index
}
