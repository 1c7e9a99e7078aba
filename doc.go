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

// Package taskio is an asynchronous task engine: a promise-style state
// machine with cooperative cancellation, chain combinators, timer helpers
// and a sequential-flow builder, designed as the runtime under an HTTP
// client but independent of any transport.
//
// A Task has three states, and it can be in only one of them, at any time:
// Pending: the operation that corresponds to this Task has not finished.
// Fulfilled: the operation finished and produced a value.
// Rejected: the operation failed, was canceled, or timed out, and produced
// a reason.
//
// The first settlement of a Task is final; later Resolve and Reject calls
// are no-ops, and the value or reason never changes afterwards.
//
// # Engine
//
// Every Task belongs to an Engine, a single-goroutine cooperative
// dispatcher. Continuations attached with Then, Catch, OnResult and Finally
// never run inline with the call that registers them or the call that
// settles the task, not even on an already-settled task: they are queued
// and run on the engine goroutine, in registration order. "Concurrency"
// here means multiplexing many in-flight external operations, not parallel
// execution of task logic.
//
// External operations (an HTTP request, a child process, a goroutine doing
// blocking work) hold a pending Task and call Resolve or Reject when they
// finish; both are safe to call from any goroutine.
//
// # Cancellation
//
// Signal delivers a cooperative cancellation message to a pending task. The
// signal is routed up the chain of parent links to the deepest pending
// ancestor, the task owning the actual resource; its signal handler, if one
// was installed with SetOnSignal, gets to release the resource, otherwise
// the task is rejected with the signal. Settled tasks ignore signals.
//
// # Unhandled rejections
//
// A task that rejects with no rejection handler attached and an empty chain
// gets a grace window; if no handler shows up before it elapses, the reason
// is reported exactly once to the engine's unhandled-rejection sink.
//
// # Combinators, timers, flows
//
// All, Any and Race combine task lists. Delay, Timeout, WithTimeout and
// Interval integrate the engine's clock with tasks; the clock is injectable
// so time can be mocked in tests. Flow builds sequential code over tasks,
// including branches and structured rescue clauses, and compiles it to the
// same continuation chain one would write by hand.
package taskio
