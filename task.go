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

import (
	"context"
	"sync"
)

// continuation is one registered follow record of a task. Either child plus
// the two optional handlers are set, or watch is set (internal subscription
// with no child task).
type continuation[T any] struct {
	onFulfilled ThenCallback[T]
	onRejected  CatchCallback[T]
	child       *Task[T]
	watch       func(s State, val T, reason error)

	// ctx is the ambient context captured at registration time and passed
	// to the handler when it eventually runs.
	ctx context.Context
}

// signaler is the non-generic view of a Task used for parent back-references,
// so chains may cross value types (the flow builder does).
type signaler interface {
	Signal(sig error)
	isPending() bool
}

// Task represents an eventual value of type T.
//
// A Task settles exactly once, to Fulfilled with a value or to Rejected with
// a reason. Continuations attached with Then, Catch, OnResult and Finally
// never run inline with the registering or the settling call; they are
// dispatched on the engine goroutine in registration order.
type Task[T any] struct {
	eng *Engine
	ctx context.Context

	mu            sync.Mutex
	state         State
	value         T
	reason        error
	callbacks     []continuation[T]
	onSignal      func(sig error)
	parent        signaler
	rejectHandled bool
	reported      bool
	done          chan struct{}
}

func newTask[T any](e *Engine, ctx context.Context) *Task[T] {
	return &Task[T]{eng: e, ctx: ctx, done: make(chan struct{})}
}

// New creates a pending task on e. A nil engine means the Default engine.
func New[T any](e *Engine) *Task[T] {
	return NewCtx[T](e, nil)
}

// NewCtx creates a pending task whose ambient context is ctx. The context is
// captured into every continuation registered on the task and handed back to
// the handler when it runs.
func NewCtx[T any](e *Engine, ctx context.Context) *Task[T] {
	if e == nil {
		e = Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return newTask[T](e, ctx)
}

// Wrap returns a task settled according to res: fulfilled for a value
// result, rejected for an error result, or following the task of a Follow
// result. A nil res fulfills with the zero value.
func Wrap[T any](e *Engine, res Result[T]) *Task[T] {
	t := New[T](e)
	t.resolveResult(res)
	return t
}

// Go starts fn on its own goroutine and returns the task it settles.
// It is the helper form of the external-operation contract: fn does the
// blocking work and its return settles the task. Signaling the task cancels
// fn's context and rejects the task with the signal.
func Go[T any](e *Engine, fn func(ctx context.Context) Result[T]) *Task[T] {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	t := New[T](e)
	ctx, cancel := context.WithCancel(t.ctx)
	t.SetOnSignal(func(sig error) {
		cancel()
		t.Reject(sig)
	})
	go func() {
		defer cancel()
		var res Result[T]
		panicked := true
		func() {
			defer func() {
				if panicked {
					t.Reject(&PanicError{V: recover()})
				}
			}()
			res = fn(ctx)
			panicked = false
		}()
		if !panicked {
			t.resolveResult(res)
		}
	}()
	return t
}

// Engine returns the engine the task belongs to.
func (t *Task[T]) Engine() *Engine { return t.eng }

// State returns the current settlement state.
func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task[T]) isPending() bool { return t.State() == Pending }

// Done returns a channel closed when the task settles.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Result blocks until the task settles and returns its value and reason.
// Reading the result counts as handling a rejection.
func (t *Task[T]) Result() (T, error) {
	<-t.done
	t.mu.Lock()
	t.rejectHandled = true
	v, err := t.value, t.reason
	t.mu.Unlock()
	return v, err
}

// Wait blocks until the task settles or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve settles the task fulfilled with v. It reports whether this call
// performed the settlement; later resolve or reject calls are no-ops.
func (t *Task[T]) Resolve(v T) bool {
	return t.settle(Fulfilled, v, nil)
}

// Reject settles the task rejected with reason. A nil reason rejects with
// Canceled. It reports whether this call performed the settlement.
func (t *Task[T]) Reject(reason error) bool {
	if reason == nil {
		reason = Canceled
	}
	var zero T
	return t.settle(Rejected, zero, reason)
}

// ResolveWith defers the task's settlement until other settles, to arbitrary
// nesting depth. Resolving a task with itself rejects it with ErrSelfResolve.
// While following, a signal sent to t is forwarded into other.
func (t *Task[T]) ResolveWith(other *Task[T]) bool {
	if other == nil {
		panic(nilTaskPanicMsg)
	}
	if other == t {
		var zero T
		return t.settle(Rejected, zero, ErrSelfResolve)
	}

	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return false
	}
	if t.onSignal == nil {
		t.onSignal = func(sig error) { other.Signal(sig) }
	}
	t.mu.Unlock()

	other.markRejectHandled()
	other.OnSettled(func(s State, v T, reason error) {
		t.settle(s, v, reason)
	})
	return true
}

// Then registers fn to run once the task fulfills, and returns the child
// task carrying fn's result. A rejection passes through to the child
// unchanged.
func (t *Task[T]) Then(fn ThenCallback[T]) *Task[T] {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	return t.follow(fn, nil, false)
}

// Catch registers fn to run once the task rejects, and returns the child
// task carrying fn's result. A fulfillment passes through to the child
// unchanged. Registering a Catch marks the task's rejection as handled.
func (t *Task[T]) Catch(fn CatchCallback[T]) *Task[T] {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	return t.follow(nil, fn, true)
}

// OnResult registers both handlers at once; either may be nil, in which case
// the corresponding outcome passes through to the child unchanged.
// A non-nil onRejected marks the task's rejection as handled.
func (t *Task[T]) OnResult(onFulfilled ThenCallback[T], onRejected CatchCallback[T]) *Task[T] {
	return t.follow(onFulfilled, onRejected, onRejected != nil)
}

// Finally registers fn to run once the task settles, either way, exactly
// once, and returns a child task carrying the unchanged outcome. Finally
// does not handle a rejection; responsibility for it moves to the child.
func (t *Task[T]) Finally(fn FinallyCallback) *Task[T] {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	return t.follow(
		func(ctx context.Context, val T) Result[T] {
			fn(ctx)
			return Val(val)
		},
		func(ctx context.Context, reason error) Result[T] {
			fn(ctx)
			return Err[T](reason)
		},
		false,
	)
}

// OnSettled registers an observer invoked, deferred, with the task's final
// state. It creates no child task and does not mark a rejection as handled.
// A panic in fn is reported to the engine's rejection sink as a
// *PanicError.
func (t *Task[T]) OnSettled(fn func(s State, val T, reason error)) {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	rec := continuation[T]{watch: fn, ctx: t.ctx}

	t.mu.Lock()
	if t.state == Pending {
		t.callbacks = append(t.callbacks, rec)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.eng.Post(func() { t.execute(rec) })
}

// SetOnSignal installs the task's signal handler, marking it as the owner of
// a cancellable resource, and returns the previously installed handler so
// callers can chain it. A settled task accepts no handler.
func (t *Task[T]) SetOnSignal(h func(sig error)) (prev func(sig error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Pending {
		return nil
	}
	prev = t.onSignal
	t.onSignal = h
	return prev
}

func (t *Task[T]) follow(onF ThenCallback[T], onR CatchCallback[T], marksHandled bool) *Task[T] {
	child := newTask[T](t.eng, t.ctx)
	child.parent = t
	rec := continuation[T]{onFulfilled: onF, onRejected: onR, child: child, ctx: t.ctx}

	t.mu.Lock()
	if marksHandled {
		t.rejectHandled = true
	}
	if t.state == Pending {
		t.callbacks = append(t.callbacks, rec)
		t.mu.Unlock()
		return child
	}
	t.mu.Unlock()

	t.eng.Post(func() { t.execute(rec) })
	child.clearParent()
	return child
}

// settle performs the one-time pending transition. It flushes the queued
// continuations onto the engine in registration order, clears the parent
// links of the flushed children, and, for a rejection with an empty chain,
// schedules the grace-window unhandled check.
func (t *Task[T]) settle(s State, v T, reason error) bool {
	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return false
	}
	t.state = s
	t.value = v
	t.reason = reason
	cbs := t.callbacks
	t.callbacks = nil
	t.onSignal = nil
	t.parent = nil
	unhandled := s == Rejected && !t.rejectHandled && len(cbs) == 0
	close(t.done)
	t.mu.Unlock()

	debug(t.eng, evSettle)

	for i := range cbs {
		rec := cbs[i]
		t.eng.Post(func() { t.execute(rec) })
		if rec.child != nil {
			rec.child.clearParent()
		}
	}

	if unhandled {
		t.scheduleUnhandledCheck()
	}
	return true
}

func (t *Task[T]) clearParent() {
	t.mu.Lock()
	t.parent = nil
	t.mu.Unlock()
}

func (t *Task[T]) markRejectHandled() {
	t.mu.Lock()
	t.rejectHandled = true
	t.mu.Unlock()
}

// execute runs one continuation against the settled task. It only ever runs
// on the engine goroutine.
func (t *Task[T]) execute(rec continuation[T]) {
	// state, value and reason are immutable once settled; no lock needed.
	if rec.watch != nil {
		t.runWatch(rec.watch)
		return
	}

	debug(t.eng, evExecute)

	switch t.state {
	case Fulfilled:
		if rec.onFulfilled == nil {
			rec.child.settle(Fulfilled, t.value, nil)
			return
		}
		runHandler(rec.child, rec.ctx, func(ctx context.Context) Result[T] {
			return rec.onFulfilled(ctx, t.value)
		})
	case Rejected:
		if rec.onRejected == nil {
			var zero T
			rec.child.settle(Rejected, zero, t.reason)
			return
		}
		runHandler(rec.child, rec.ctx, func(ctx context.Context) Result[T] {
			return rec.onRejected(ctx, t.reason)
		})
	}
}

// runWatch invokes a settlement observer. An observer has no child task to
// reject, so a panic is contained and reported to the engine's rejection
// sink instead of unwinding the dispatch loop.
func (t *Task[T]) runWatch(watch func(State, T, error)) {
	defer func() {
		if r := recover(); r != nil {
			t.eng.reportRejection(&PanicError{V: r})
		}
	}()
	watch(t.state, t.value, t.reason)
}

// runHandler invokes a continuation handler, turning a panic into the
// child's rejection and anything else into the child's resolution.
func runHandler[T any](child *Task[T], ctx context.Context, call func(context.Context) Result[T]) {
	var res Result[T]
	panicked := true
	func() {
		defer func() {
			if panicked {
				child.Reject(&PanicError{V: recover()})
			}
		}()
		res = call(ctx)
		panicked = false
	}()
	if panicked {
		return
	}
	child.resolveResult(res)
}

// resolveResult settles the task according to a callback's Result value.
func (t *Task[T]) resolveResult(res Result[T]) {
	switch {
	case res == nil:
		var zero T
		t.Resolve(zero)
	case res.task() != nil:
		t.ResolveWith(res.task())
	case res.Err() != nil:
		t.settle(Rejected, res.Val(), res.Err())
	default:
		t.Resolve(res.Val())
	}
}

// scheduleUnhandledCheck arms the grace-window timer for a rejected task
// with an empty chain. If a rejection handler shows up before the deadline
// (Catch, OnResult, Result, ResolveWith), the report is suppressed.
func (t *Task[T]) scheduleUnhandledCheck() {
	e := t.eng
	e.after(e.grace, func() {
		e.Post(func() {
			t.mu.Lock()
			report := t.state == Rejected && !t.rejectHandled && !t.reported
			if report {
				t.reported = true
			}
			reason := t.reason
			t.mu.Unlock()
			if report {
				debug(e, evReportRejection)
				e.reportRejection(reason)
			}
		})
	})
}
