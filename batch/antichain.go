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

// Package batch implements the batch algebra: an immutable trie plus
// antichain bounds, and the Batcher/Builder/Merger trio that produce and
// combine batches.
package batch

// Antichain is a bound on a batch's timestamp range, degenerate to the
// unit-time lattice this core operates over: it has exactly two values,
// Present (containing the single time ()) and Absent (the empty
// antichain, which conventionally denotes the frontier beyond all time).
// Present sorts below Absent.
type Antichain struct {
	present bool
}

// AntichainPresent returns the antichain {()}: the base of the lattice,
// used as the default lower bound of a freshly built batch.
func AntichainPresent() Antichain { return Antichain{present: true} }

// AntichainAbsent returns the empty antichain {}: the top of the lattice,
// used as the default upper bound of a freshly built batch (no known
// cutoff).
func AntichainAbsent() Antichain { return Antichain{} }

// IsPresent reports whether the antichain is {()} rather than {}.
func (a Antichain) IsPresent() bool { return a.present }

// Meet computes the greatest lower bound of two antichains: Present
// dominates Absent, since Present is the smaller element.
func (a Antichain) Meet(b Antichain) Antichain {
	return Antichain{present: a.present || b.present}
}

// Join computes the least upper bound of two antichains: Absent
// dominates Present, since Absent is the larger element.
func (a Antichain) Join(b Antichain) Antichain {
	return Antichain{present: a.present && b.present}
}

// Equal reports whether two antichains denote the same bound.
func (a Antichain) Equal(b Antichain) bool { return a.present == b.present }
