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
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// defRejectionGrace is the window a rejected task has to get a rejection
// handler attached before the rejection is reported to the engine sink.
const defRejectionGrace = 100 * time.Millisecond

// EngineConfig carries the optional knobs of an Engine.
type EngineConfig struct {
	// Clock is the time source used by all timer helpers, the rejection
	// grace window, and anything else in this engine that observes time.
	// Defaults to the wall clock. Tests typically inject clock.NewMock().
	Clock clock.Clock

	// UnhandledRejection is the process-step sink invoked, at most once per
	// task, for a rejected task that still has no rejection handler when
	// its grace window elapses. Defaults to printing on os.Stderr.
	UnhandledRejection func(reason error)

	// RejectionGrace overrides the grace window. If 0, the default is used.
	RejectionGrace time.Duration

	// DebugHandler receives engine trace events. It is only ever called
	// when the build tag enable_taskio_debug is set.
	DebugHandler func(e debugEvent)
}

// Engine is the cooperative scheduler every Task belongs to.
//
// An Engine owns a FIFO run queue drained by a single goroutine, so exactly
// one continuation executes at a time. Resolve, Reject and Signal may be
// called from any goroutine; the continuations they trigger always run on
// the engine goroutine, deferred, never inline with the triggering call.
//
// An Engine also owns the timer registry: every timer created by the timer
// helpers is tracked under a handle until it fires or is stopped, and all
// remaining timers are stopped on Shutdown.
type Engine struct {
	clk         clock.Clock
	onUnhandled func(reason error)
	grace       time.Duration
	debugCB     func(e debugEvent)

	mu       sync.Mutex
	wake     *sync.Cond
	idleCond *sync.Cond
	runq     []func()
	busy     bool
	closed   bool
	done     chan struct{}

	timers map[uuid.UUID]*clock.Timer
}

// NewEngine creates an Engine and starts its dispatch goroutine.
// Call Shutdown when done with it.
func NewEngine(c ...*EngineConfig) *Engine {
	e := &Engine{
		clk:    clock.New(),
		grace:  defRejectionGrace,
		done:   make(chan struct{}),
		timers: make(map[uuid.UUID]*clock.Timer),
	}
	e.onUnhandled = func(reason error) {
		fmt.Fprintf(os.Stderr, "taskio: unhandled rejection: %v\n", reason)
	}
	e.wake = sync.NewCond(&e.mu)
	e.idleCond = sync.NewCond(&e.mu)

	if len(c) != 0 && c[0] != nil {
		if c[0].Clock != nil {
			e.clk = c[0].Clock
		}
		if cb := c[0].UnhandledRejection; cb != nil {
			e.onUnhandled = cb
		}
		if d := c[0].RejectionGrace; d > 0 {
			e.grace = d
		}
		if cb := c[0].DebugHandler; cb != nil {
			e.debugCB = cb
		}
	}

	go e.loop()
	return e
}

// Clock returns the engine's time source.
func (e *Engine) Clock() clock.Clock { return e.clk }

// Post appends fn to the run queue. fn is never invoked inline; it runs on
// the engine goroutine, after everything already queued. Posting to a
// shut-down engine drops fn.
func (e *Engine) Post(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.runq = append(e.runq, fn)
	e.wake.Signal()
	e.mu.Unlock()
}

// Idle blocks until the run queue is empty and no continuation is executing.
// It is mainly a synchronization point for tests.
func (e *Engine) Idle() {
	e.mu.Lock()
	for len(e.runq) != 0 || e.busy {
		e.idleCond.Wait()
	}
	e.mu.Unlock()
}

// Shutdown stops the engine: remaining queued work is dropped, all
// registered timers are stopped, and the dispatch goroutine exits.
// It blocks until the goroutine has returned. Safe to call more than once.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		e.runq = nil
		for id, tm := range e.timers {
			tm.Stop()
			delete(e.timers, id)
		}
		e.wake.Broadcast()
	}
	e.mu.Unlock()
	<-e.done
}

func (e *Engine) loop() {
	e.mu.Lock()
	for {
		for len(e.runq) == 0 && !e.closed {
			e.idleCond.Broadcast()
			e.wake.Wait()
		}
		if e.closed {
			e.idleCond.Broadcast()
			e.mu.Unlock()
			close(e.done)
			return
		}

		fn := e.runq[0]
		e.runq = e.runq[1:]
		e.busy = true
		e.mu.Unlock()

		fn()

		e.mu.Lock()
		e.busy = false
		if len(e.runq) == 0 {
			e.idleCond.Broadcast()
		}
	}
}

// TimerHandle identifies a timer tracked in the engine registry.
type TimerHandle struct {
	id   uuid.UUID
	eng  *Engine
	tm   *clock.Timer
	dead bool
}

// ID returns the registry key of the timer.
func (h TimerHandle) ID() uuid.UUID { return h.id }

// Stop cancels the timer, if it hasn't fired, and removes it from the
// registry.
func (h TimerHandle) Stop() {
	if h.dead {
		return
	}
	h.tm.Stop()
	h.eng.dropTimer(h.id)
}

// deadHandle is returned when a timer cannot be scheduled (engine closed).
func (e *Engine) deadHandle() TimerHandle {
	return TimerHandle{eng: e, dead: true}
}

// after schedules fn on the engine clock after d and tracks the timer in
// the registry until it fires, it is stopped, or the engine shuts down.
// fn runs on the clock's goroutine; it is expected to only settle tasks or
// Post work.
func (e *Engine) after(d time.Duration, fn func()) TimerHandle {
	id := uuid.New()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.deadHandle()
	}
	tm := e.clk.AfterFunc(d, func() {
		e.dropTimer(id)
		fn()
	})
	e.timers[id] = tm
	e.mu.Unlock()

	return TimerHandle{id: id, eng: e, tm: tm}
}

func (e *Engine) dropTimer(id uuid.UUID) {
	e.mu.Lock()
	delete(e.timers, id)
	e.mu.Unlock()
}

// timerCount reports the registry size; test hook.
func (e *Engine) timerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

func (e *Engine) reportRejection(reason error) {
	e.onUnhandled(reason)
}
