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
	"github.com/gammazero/deque"

	"github.com/optakt/zset-core/consolidate"
	"github.com/optakt/zset-core/layers"
	"github.com/optakt/zset-core/ring"
)

// CursorList presents every non-empty batch's cursor in a spine as one
// merged, k-way cursor over the union: at any position the list is
// positioned on the minimal key across all its constituent cursors, and
// Weight sums the weight every cursor sharing that key currently reports.
// Every traversal operation descends to whichever sub-cursor holds the
// current minimum key, giving CursorList the same navigation contract
// (Valid/Key/Step/Seek/Rewind/Reposition) as layers.LeafCursor and
// layers.LayerCursor, just spanning several batches instead of one trie.
//
// The set of cursors currently positioned on the minimum key (the
// "frontier") is tracked in a deque the same way ledger/trie/queue.go
// wraps one for BFS traversal: indices are rotated out to inspect, then
// pushed back, so Weight can fold over the frontier without losing it
// before Step needs to drain it.
type CursorList[K any, W any] struct {
	cursors  []*layers.LeafCursor[K, W]
	compare  consolidate.Compare[K]
	group    ring.Group[W]
	frontier *deque.Deque
	hasUpper bool
	upper    K
}

// NewCursorList builds a merged cursor over the given leaf cursors, which
// must outlive the list.
func NewCursorList[K any, W any](cursors []*layers.LeafCursor[K, W], compare consolidate.Compare[K], group ring.Group[W]) *CursorList[K, W] {
	cl := &CursorList[K, W]{
		cursors:  cursors,
		compare:  compare,
		group:    group,
		frontier: deque.New(),
	}
	cl.refill()
	return cl
}

// refill recomputes the frontier: the indices of every valid cursor
// positioned on the smallest current key below any upper restriction set
// by Reposition.
func (cl *CursorList[K, W]) refill() {
	cl.frontier.Clear()

	inRange := func(c *layers.LeafCursor[K, W]) bool {
		return c.Valid() && (!cl.hasUpper || cl.compare(c.Key(), cl.upper) < 0)
	}

	var min K
	found := false
	for _, c := range cl.cursors {
		if !inRange(c) {
			continue
		}
		if !found || cl.compare(c.Key(), min) < 0 {
			min = c.Key()
			found = true
		}
	}
	if !found {
		return
	}
	for i, c := range cl.cursors {
		if inRange(c) && cl.compare(c.Key(), min) == 0 {
			cl.frontier.PushBack(i)
		}
	}
}

// Valid reports whether any constituent cursor still holds a key.
func (cl *CursorList[K, W]) Valid() bool { return cl.frontier.Len() > 0 }

// Key returns the current minimal key. Only meaningful when Valid.
func (cl *CursorList[K, W]) Key() K {
	idx := cl.frontier.Front().(int)
	return cl.cursors[idx].Key()
}

// Weight sums the weight reported by every cursor currently on the
// minimal key, rotating the frontier through itself so its membership is
// unchanged afterwards.
func (cl *CursorList[K, W]) Weight() W {
	sum := cl.group.Zero()
	n := cl.frontier.Len()
	for i := 0; i < n; i++ {
		idx := cl.frontier.PopFront().(int)
		sum = cl.group.Add(sum, cl.cursors[idx].Weight())
		cl.frontier.PushBack(idx)
	}
	return sum
}

// Step advances every cursor on the current minimal key and recomputes
// the frontier.
func (cl *CursorList[K, W]) Step() {
	for cl.frontier.Len() > 0 {
		idx := cl.frontier.PopFront().(int)
		cl.cursors[idx].Step()
	}
	cl.refill()
}

// Seek advances every constituent cursor to the first key not less than
// key and recomputes the frontier.
func (cl *CursorList[K, W]) Seek(key K) {
	for _, c := range cl.cursors {
		c.Seek(cl.compare, key)
	}
	cl.refill()
}

// Rewind repositions every constituent cursor to the start of its own
// bounds and clears any restriction set by a prior Reposition call.
func (cl *CursorList[K, W]) Rewind() {
	for _, c := range cl.cursors {
		c.Rewind()
	}
	cl.hasUpper = false
	cl.refill()
}

// Reposition changes the list's navigable range to [lower, upper): every
// constituent cursor is rewound and seeked to lower, and the frontier
// excludes any key not strictly less than upper until the next Rewind.
func (cl *CursorList[K, W]) Reposition(lower, upper K) {
	for _, c := range cl.cursors {
		c.Rewind()
		c.Seek(cl.compare, lower)
	}
	cl.hasUpper = true
	cl.upper = upper
	cl.refill()
}
