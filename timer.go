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
	"sync"
	"time"
)

// Forever makes Delay and DelayFunc return a manual gate: a task that never
// auto-settles and is advanced only by an external Resolve, Reject or
// Signal.
const Forever time.Duration = -1

// Delay returns a task that fulfills with v after d on the engine clock.
// The task is cancellable; a signal stops the timer and rejects it.
func Delay[T any](e *Engine, d time.Duration, v T) *Task[T] {
	return DelayFunc(e, d, func() T { return v })
}

// DelayFunc is Delay with the value computed by fn at fire time. A panic in
// fn rejects the task with a *PanicError.
func DelayFunc[T any](e *Engine, d time.Duration, fn func() T) *Task[T] {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	if e == nil {
		e = Default()
	}
	t := New[T](e)
	if d == Forever {
		return t
	}

	// fn is user code, so it runs on the engine goroutine like any other
	// continuation; the timer callback only posts the work.
	h := e.after(d, func() {
		e.Post(func() {
			if t.State() != Pending {
				return
			}
			panicked := true
			func() {
				defer func() {
					if panicked {
						t.Reject(&PanicError{V: recover()})
					}
				}()
				t.Resolve(fn())
				panicked = false
			}()
		})
	})
	t.SetOnSignal(func(sig error) {
		h.Stop()
		t.Reject(sig)
	})
	return t
}

// Timeout returns a task that rejects with a *TimeoutError after d.
// The task is cancellable; a signal stops the timer.
func Timeout[T any](e *Engine, d time.Duration) *Task[T] {
	if e == nil {
		e = Default()
	}
	t := New[T](e)
	h := e.after(d, func() {
		t.Reject(&TimeoutError{After: d})
	})
	t.SetOnSignal(func(sig error) {
		h.Stop()
		t.Reject(sig)
	})
	return t
}

// WithTimeout races t against a timeout of d. Whichever loses is canceled.
func WithTimeout[T any](t *Task[T], d time.Duration) *Task[T] {
	if t == nil {
		panic(nilTaskPanicMsg)
	}
	return Race(t.eng, t, Timeout[T](t.eng, d))
}

// Count tells Interval how many ticks to run.
type Count struct {
	n       int
	forever bool
	while   func(next int) bool
}

// Times runs exactly n ticks.
func Times(n int) Count { return Count{n: n} }

// Repeat runs until the body stops the interval.
func Repeat() Count { return Count{forever: true} }

// While runs as long as pred holds for the next tick index.
func While(pred func(next int) bool) Count {
	if pred == nil {
		panic(nilCallbackPanicMsg)
	}
	return Count{while: pred}
}

func (c Count) includes(i int) bool {
	switch {
	case c.forever:
		return true
	case c.while != nil:
		return c.while(i)
	default:
		return i < c.n
	}
}

// IntervalResult is the fulfillment value of an interval task. Stopped is
// true when the body resolved early through its stop function, in which
// case Value holds the value it passed; otherwise the count was exhausted
// and Last holds the final tick index (-1 if no tick ran).
type IntervalResult[T any] struct {
	Value   T
	Stopped bool
	Last    int
}

// Interval invokes fn every period on the engine clock, passing the tick
// index, an early-return function that fulfills the interval task and stops
// ticking, and the handle of the pending timer. fn returning an error, or
// panicking, rejects the task. Exhausting the count fulfills the task with
// the last tick index. Layer completion, failure and cleanup callbacks with
// Then, Catch and Finally on the returned task; Finally runs exactly once.
func Interval[T any](e *Engine, period time.Duration, count Count, fn func(i int, stop func(T), h TimerHandle) error) *Task[IntervalResult[T]] {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	if e == nil {
		e = Default()
	}

	outcome := New[IntervalResult[T]](e)

	var mu sync.Mutex
	var current TimerHandle

	var schedule func(i int)
	run := func(i int) {
		if outcome.State() != Pending {
			return
		}
		stop := func(v T) {
			outcome.Resolve(IntervalResult[T]{Value: v, Stopped: true, Last: i})
		}

		mu.Lock()
		h := current
		mu.Unlock()

		var err error
		panicked := true
		func() {
			defer func() {
				if panicked {
					outcome.Reject(&PanicError{V: recover()})
				}
			}()
			err = fn(i, stop, h)
			panicked = false
		}()
		if panicked {
			return
		}
		if err != nil {
			outcome.Reject(err)
			return
		}
		if outcome.State() != Pending {
			return
		}
		if !count.includes(i + 1) {
			outcome.Resolve(IntervalResult[T]{Last: i})
			return
		}
		schedule(i + 1)
	}
	schedule = func(i int) {
		// fn runs on the engine goroutine; the timer callback only posts.
		h := e.after(period, func() { e.Post(func() { run(i) }) })
		mu.Lock()
		current = h
		mu.Unlock()
	}

	outcome.SetOnSignal(func(sig error) {
		mu.Lock()
		h := current
		mu.Unlock()
		h.Stop()
		outcome.Reject(sig)
	})

	if !count.includes(0) {
		outcome.Resolve(IntervalResult[T]{Last: -1})
	} else {
		schedule(0)
	}
	return outcome
}
