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

import "sync"

// All returns a task that fulfills with the input-ordered values of tasks,
// once every one of them fulfills. The first rejection rejects the result
// with that reason and cancels the inputs still pending. An empty input
// fulfills with an empty slice.
func All[T any](e *Engine, tasks ...*Task[T]) *Task[[]T] {
	if e == nil {
		e = Default()
	}
	next := New[[]T](e)
	if len(tasks) == 0 {
		next.Resolve([]T{})
		return next
	}

	var mu sync.Mutex
	vals := make([]T, len(tasks))
	remaining := len(tasks)

	for i, tk := range tasks {
		i, tk := i, tk
		tk.markRejectHandled()
		tk.OnSettled(func(s State, v T, reason error) {
			if s != Fulfilled {
				if next.Reject(reason) {
					cancelPending(tasks, tk)
				}
				return
			}
			mu.Lock()
			vals[i] = v
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				next.Resolve(vals)
			}
		})
	}
	return next
}

// Any returns a task that fulfills with the first fulfillment value among
// tasks and cancels the rest. If every task rejects, the result rejects with
// an *AggregateError holding the reasons in input order. An empty input
// rejects with ErrNoTasks.
func Any[T any](e *Engine, tasks ...*Task[T]) *Task[T] {
	if e == nil {
		e = Default()
	}
	next := New[T](e)
	if len(tasks) == 0 {
		next.Reject(ErrNoTasks)
		return next
	}

	var mu sync.Mutex
	reasons := make([]error, len(tasks))
	remaining := len(tasks)

	for i, tk := range tasks {
		i, tk := i, tk
		tk.markRejectHandled()
		tk.OnSettled(func(s State, v T, reason error) {
			if s == Fulfilled {
				if next.Resolve(v) {
					cancelPending(tasks, tk)
				}
				return
			}
			mu.Lock()
			reasons[i] = reason
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				next.Reject(&AggregateError{Reasons: reasons})
			}
		})
	}
	return next
}

// Race returns a task that settles, either way, with whichever of tasks
// settles first, and cancels the rest. An empty input rejects with
// ErrNoTasks.
func Race[T any](e *Engine, tasks ...*Task[T]) *Task[T] {
	if e == nil {
		e = Default()
	}
	next := New[T](e)
	if len(tasks) == 0 {
		next.Reject(ErrNoTasks)
		return next
	}

	for _, tk := range tasks {
		tk := tk
		tk.markRejectHandled()
		tk.OnSettled(func(s State, v T, reason error) {
			if next.settle(s, v, reason) {
				cancelPending(tasks, tk)
			}
		})
	}
	return next
}

func cancelPending[T any](tasks []*Task[T], winner *Task[T]) {
	for _, tk := range tasks {
		if tk != winner && tk.State() == Pending {
			tk.Signal(Canceled)
		}
	}
}
