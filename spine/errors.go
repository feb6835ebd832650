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

import "errors"

// ErrDoubleOccupied is the panic value when a batch is inserted at a level
// whose slot already holds two batches mid-merge, violating the invariant
// that roll_up/tidy_layers is supposed to uphold before every insertAt
// (spine_fueled.rs: "panic!(\"Attempted to insert batch into incomplete
// merge!\")"). It is a programmer error, not a data condition: it can only
// happen if introduceBatch's roll_up step was skipped or miscomputed.
var ErrDoubleOccupied = errors.New("spine: level already holds two batches")

// ErrMergeInProgress is the panic value when a mutation that requires every
// batch to be stable (RecedeTo's bound rewrite) encounters a level whose
// merge is still in progress. completeMerges must run first, as RecedeTo
// does; reaching this from any other caller is a programmer error.
var ErrMergeInProgress = errors.New("spine: merge still in progress")
