// Copyright 2026 The taskio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package taskio

// State is the settlement state of a Task.
//
// A Task is in exactly one state at any time. It starts Pending and moves,
// exactly once, to either Fulfilled or Rejected. Once settled, the state and
// the associated value or reason never change.
type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "<unknown state>"
	}
}

// IsSettled returns true once the state is Fulfilled or Rejected.
func (s State) IsSettled() bool {
	return s == Fulfilled || s == Rejected
}
