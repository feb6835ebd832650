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
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Validate checks the structural invariant spine_fueled.rs documents: for
// any in-progress merge at level k, the levels below k must hold fewer
// than 2^k records, treating every batch as if it held its full
// capacity (2^i at level i) regardless of how many tuples it actually
// has. Every breach found is aggregated rather than reported as the
// first one encountered, so a caller debugging a broken fueling schedule
// sees the whole picture at once.
//
// This is a diagnostic for tests and development, not a check the spine
// runs on its own. insertAt does not check this capacity bound; it only
// panics with ErrDoubleOccupied when a level already holding two batches
// receives another. Validate exists to catch a fueling-schedule
// regression before it manifests as that panic.
func (s *Spine[K, W]) Validate() error {
	var result error

	for k := range s.merging {
		if !s.merging[k].isDouble() || !s.merging[k].isInProgress() {
			continue
		}

		below := 0
		for i := 0; i < k; i++ {
			switch {
			case s.merging[i].isSingle():
				below += 1 << uint(i)
			case s.merging[i].isDouble():
				below += 2 << uint(i)
			}
		}
		capacity := 1 << uint(k)
		if below >= capacity {
			result = multierror.Append(result, fmt.Errorf(
				"spine: in-progress merge at level %d has %d capacity-accounted records below it, want < %d",
				k, below, capacity))
		}
	}

	return result
}
