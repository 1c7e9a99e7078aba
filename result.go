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

import "context"

// Result is the type of the return value of Then, Catch and OnResult
// callbacks. It carries either a value, an error, or a task to follow.
//
// A nil Result fulfills the child task with the zero value.
// A Result with a non-nil Err rejects the child task.
// A Result created with Follow defers the child task's settlement until the
// followed task settles, and forwards any signal sent to the child into the
// followed task.
type Result[T any] interface {
	Val() T
	Err() error

	// task returns the task to follow, or nil.
	task() *Task[T]
}

// Val returns a fulfilled Result carrying v.
func Val[T any](v T) Result[T] {
	return valResult[T]{v: v}
}

// Err returns a Result carrying err. A nil err yields a fulfilled Result
// with the zero value.
func Err[T any](err error) Result[T] {
	return errResult[T]{err: err}
}

// ValErr returns a Result carrying both a value and an error. A non-nil err
// rejects; the value is still stored on the rejected task.
func ValErr[T any](v T, err error) Result[T] {
	return errResult[T]{v: v, err: err}
}

// Follow returns a Result that chains the child task's settlement to t.
func Follow[T any](t *Task[T]) Result[T] {
	if t == nil {
		panic(nilTaskPanicMsg)
	}
	return followResult[T]{t: t}
}

// Empty returns a fulfilled Result carrying the zero value.
func Empty[T any]() Result[T] {
	return valResult[T]{}
}

type valResult[T any] struct{ v T }

func (r valResult[T]) Val() T         { return r.v }
func (r valResult[T]) Err() error     { return nil }
func (r valResult[T]) task() *Task[T] { return nil }

type errResult[T any] struct {
	v   T
	err error
}

func (r errResult[T]) Val() T         { return r.v }
func (r errResult[T]) Err() error     { return r.err }
func (r errResult[T]) task() *Task[T] { return nil }

type followResult[T any] struct{ t *Task[T] }

func (r followResult[T]) Val() (v T)     { return v }
func (r followResult[T]) Err() error     { return nil }
func (r followResult[T]) task() *Task[T] { return r.t }

// Callback types accepted by the follow methods. The context passed to a
// callback is the one captured at registration time; it is the only
// sanctioned channel for ambient state to cross a suspension point.
type (
	ThenCallback[T any]  func(ctx context.Context, val T) Result[T]
	CatchCallback[T any] func(ctx context.Context, reason error) Result[T]
	FinallyCallback      func(ctx context.Context)
)
