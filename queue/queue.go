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

// Package queue provides the admission queue of the task engine: a
// concurrency limit combined with a token-bucket rate limiter, gating when
// submitted tasks get to start, never how they settle.
package queue

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/taskio-go/taskio"
)

const nilStartPanicMsg = "queue: the provided start callback is nil"

// Config carries the queue knobs. The zero value is an unbounded queue.
type Config struct {
	// Limit is the maximum number of running tasks. 0 or less means no
	// concurrency limit.
	Limit int

	// Rate is the token refill rate per second. 0 or less means no rate
	// limiting.
	Rate float64

	// Capacity is the token bucket size, bounding the admission burst.
	// If rate limiting is on and Capacity is 0 or less, it defaults to
	// max(Rate, 1).
	Capacity float64

	// Clock is the time source for token refill and the re-check timer.
	// Defaults to the wall clock.
	Clock clock.Clock

	// OnDrain, if set, is invoked each time the queue transitions to
	// having no running and no waiting tasks. A panic in the callback is
	// contained.
	OnDrain func()
}

type entry[T any] struct {
	t     *taskio.Task[T]
	start func()
	// prev is the signal handler shadowed by the queue's removal handler
	// while the entry waits; it is reinstated on admission or removal.
	prev func(error)
}

// Queue admits (task, start) submissions subject to the concurrency limit
// and the token bucket. A submission that cannot start immediately waits in
// FIFO order; canceling its task while waiting removes it. Completion of a
// running task, success or failure, releases its slot and re-runs admission
// against the waiting list.
//
// A task is in at most one of the running and waiting sets at any time.
type Queue[T any] struct {
	mu       sync.Mutex
	clk      clock.Clock
	limit    int
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
	running  map[*taskio.Task[T]]struct{}
	waiting  []entry[T]
	onDrain  func()
	recheck  *clock.Timer
}

// New creates a queue from cfg. The bucket starts full.
func New[T any](cfg Config) *Queue[T] {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	capacity := cfg.Capacity
	if cfg.Rate > 0 && capacity <= 0 {
		capacity = cfg.Rate
		if capacity < 1 {
			capacity = 1
		}
	}
	return &Queue[T]{
		clk:      clk,
		limit:    cfg.Limit,
		rate:     cfg.Rate,
		capacity: capacity,
		tokens:   capacity,
		last:     clk.Now(),
		running:  make(map[*taskio.Task[T]]struct{}),
		onDrain:  cfg.OnDrain,
	}
}

// Submit asks the queue to start t. If the admission rule passes, start is
// invoked deferred on t's engine and t joins the running set until it
// settles. Otherwise the pair waits its turn; a signal delivered to t while
// waiting removes it from the queue and chains to any previously installed
// signal handler. Once the entry starts, that handler is back in charge.
func (q *Queue[T]) Submit(t *taskio.Task[T], start func()) {
	if t == nil {
		panic("queue: the provided task is nil")
	}
	if start == nil {
		panic(nilStartPanicMsg)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.refillLocked()
	if q.admitLocked() {
		q.startLocked(t, start)
		return
	}
	ent := entry[T]{t: t, start: start}
	ent.prev = t.SetOnSignal(func(sig error) {
		q.Remove(t)
		if ent.prev != nil {
			ent.prev(sig)
			return
		}
		t.Reject(sig)
	})
	q.waiting = append(q.waiting, ent)
	q.scheduleRecheckLocked()
}

// Remove takes t out of the waiting list, if it is there. It reports
// whether an entry was removed, and fires OnDrain if this emptied the
// queue.
func (q *Queue[T]) Remove(t *taskio.Task[T]) bool {
	q.mu.Lock()
	wasDrained := q.drainedLocked()
	removed := false
	var prev func(error)
	for i, e := range q.waiting {
		if e.t == t {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			removed = true
			prev = e.prev
			break
		}
	}
	fire := removed && !wasDrained && q.drainedLocked()
	q.mu.Unlock()

	if removed {
		t.SetOnSignal(prev)
	}
	if fire {
		q.fireDrain()
	}
	return removed
}

// SetLimit changes the concurrency limit, effective at the next admission
// check. Raising it admits eligible waiting tasks at once.
func (q *Queue[T]) SetLimit(limit int) {
	q.mu.Lock()
	q.limit = limit
	q.pumpLocked()
	q.mu.Unlock()
}

// SetRate changes the refill rate and bucket capacity, effective at the
// next admission check.
func (q *Queue[T]) SetRate(rate, capacity float64) {
	q.mu.Lock()
	q.refillLocked()
	q.rate = rate
	if rate > 0 && capacity <= 0 {
		capacity = rate
		if capacity < 1 {
			capacity = 1
		}
	}
	q.capacity = capacity
	if q.tokens > capacity {
		q.tokens = capacity
	}
	q.pumpLocked()
	q.mu.Unlock()
}

// Len returns the sizes of the running and waiting sets.
func (q *Queue[T]) Len() (running, waiting int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running), len(q.waiting)
}

func (q *Queue[T]) drainedLocked() bool {
	return len(q.running) == 0 && len(q.waiting) == 0
}

// refillLocked lazily adds elapsed*rate tokens, capped at capacity.
func (q *Queue[T]) refillLocked() {
	if q.rate <= 0 {
		return
	}
	now := q.clk.Now()
	q.tokens += now.Sub(q.last).Seconds() * q.rate
	if q.tokens > q.capacity {
		q.tokens = q.capacity
	}
	q.last = now
}

func (q *Queue[T]) admitLocked() bool {
	if q.limit > 0 && len(q.running) >= q.limit {
		return false
	}
	if q.rate > 0 && q.tokens < 1 {
		return false
	}
	return true
}

func (q *Queue[T]) startLocked(t *taskio.Task[T], start func()) {
	if q.rate > 0 {
		q.tokens--
	}
	q.running[t] = struct{}{}
	t.Engine().Post(start)
	t.OnSettled(func(taskio.State, T, error) {
		q.release(t)
	})
}

// release frees t's slot and re-runs admission against the waiting list.
func (q *Queue[T]) release(t *taskio.Task[T]) {
	q.mu.Lock()
	delete(q.running, t)
	q.pumpLocked()
	fire := q.drainedLocked()
	q.mu.Unlock()

	if fire {
		q.fireDrain()
	}
}

// fireDrain invokes the drain callback, containing any panic so that a
// misbehaving callback cannot take down the engine dispatch loop or the
// clock goroutine it happens to run on.
func (q *Queue[T]) fireDrain() {
	cb := q.onDrain
	if cb == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	cb()
}

func (q *Queue[T]) pumpLocked() {
	q.refillLocked()
	for len(q.waiting) > 0 && q.admitLocked() {
		e := q.waiting[0]
		q.waiting = q.waiting[1:]
		// the queue no longer owns the task's signal; hand it back
		e.t.SetOnSignal(e.prev)
		q.startLocked(e.t, e.start)
	}
	q.scheduleRecheckLocked()
}

// scheduleRecheckLocked arms a one-shot timer for the next token, but only
// when the queue is blocked purely on token scarcity with nothing running;
// any other blockage is resolved synchronously by a future release.
func (q *Queue[T]) scheduleRecheckLocked() {
	if q.recheck != nil {
		return
	}
	if len(q.waiting) == 0 || len(q.running) != 0 {
		return
	}
	if q.rate <= 0 || q.tokens >= 1 {
		return
	}
	wait := time.Duration((1 - q.tokens) / q.rate * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	q.recheck = q.clk.AfterFunc(wait, func() {
		q.mu.Lock()
		q.recheck = nil
		wasDrained := q.drainedLocked()
		q.pumpLocked()
		fire := !wasDrained && q.drainedLocked()
		q.mu.Unlock()

		if fire {
			q.fireDrain()
		}
	})
}
