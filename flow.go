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

	"github.com/pkg/errors"
)

// awaitable is satisfied by every *Task regardless of its value type.
type awaitable interface {
	anyTask() *Task[any]
}

// anyTask bridges the task to a *Task[any] view of itself. The bridge keeps
// the original task as its parent, so signals route back into it.
func (t *Task[T]) anyTask() *Task[any] {
	if at, ok := any(t).(*Task[any]); ok {
		return at
	}
	b := newTask[any](t.eng, t.ctx)
	b.parent = t
	t.markRejectHandled()
	t.OnSettled(func(s State, v T, reason error) {
		if s == Fulfilled {
			b.Resolve(v)
			return
		}
		b.settle(Rejected, nil, reason)
	})
	return b
}

// await coerces a step result into a task: a task of any value type is
// followed (to arbitrary nesting), a []any is combined with All so every
// element is awaited, and anything else becomes an already-fulfilled task.
func await(e *Engine, v any) *Task[any] {
	switch x := v.(type) {
	case awaitable:
		return x.anyTask()
	case []any:
		tasks := make([]*Task[any], len(x))
		for i, el := range x {
			tasks[i] = await(e, el)
		}
		return All(e, tasks...).anyTask()
	default:
		t := New[any](e)
		t.Resolve(v)
		return t
	}
}

// Scope carries the bindings of a running flow. It is the explicit
// incarnation of the ambient state a suspension point must not lose: each
// step receives the same scope, already holding everything the previous
// steps bound.
//
// A Scope is only ever touched from the engine goroutine.
type Scope struct {
	vals map[string]any
}

// Set binds v under name.
func (s *Scope) Set(name string, v any) {
	s.vals[name] = v
}

// Value returns the binding under name, or nil.
func (s *Scope) Value(name string) any {
	return s.vals[name]
}

// Lookup returns the binding under name, reporting whether it exists.
func (s *Scope) Lookup(name string) (any, bool) {
	v, ok := s.vals[name]
	return v, ok
}

type stepKind int

const (
	stepBind stepKind = iota
	stepIf
	stepRescue
)

type flowStep[T any] struct {
	kind   stepKind
	name   string
	fn     func(*Scope) any
	cond   func(*Scope) any
	then   *Flow[T]
	els    *Flow[T]
	match  func(error) bool
	rescue func(*Scope, error) any
}

// Flow builds a sequential computation over tasks without hand-writing the
// continuation chain. Steps run strictly in order; whenever a step produces
// a task, the next step waits for it. The net result of Run is the same
// right-nested Then chain one would write by hand.
type Flow[T any] struct {
	eng   *Engine
	steps []flowStep[T]
}

// NewFlow starts an empty flow whose Run task carries a T.
func NewFlow[T any](e *Engine) *Flow[T] {
	if e == nil {
		e = Default()
	}
	return &Flow[T]{eng: e}
}

// Bind evaluates fn, awaits its result if it is a task (or a []any of
// tasks, combined with All), and binds the settled value in the scope under
// name. fn is evaluated exactly once, after every earlier step settled.
func (f *Flow[T]) Bind(name string, fn func(s *Scope) any) *Flow[T] {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	f.steps = append(f.steps, flowStep[T]{kind: stepBind, name: name, fn: fn})
	return f
}

// Do is Bind without a binding.
func (f *Flow[T]) Do(fn func(s *Scope) any) *Flow[T] {
	return f.Bind("", fn)
}

// If awaits cond's result, then runs the then flow when it is truthy (not
// nil and not false) or the els flow otherwise. A nil branch passes the
// condition value through. Both branches share the outer scope and continue
// into the steps that follow.
func (f *Flow[T]) If(cond func(s *Scope) any, then, els *Flow[T]) *Flow[T] {
	if cond == nil {
		panic(nilCallbackPanicMsg)
	}
	f.steps = append(f.steps, flowStep[T]{kind: stepIf, cond: cond, then: then, els: els})
	return f
}

// Rescue handles a rejection flowing out of the steps before it. The clause
// applies when match returns true (a nil match catches everything); its fn
// result is awaited like a Bind result. A rejection no clause matches keeps
// propagating.
func (f *Flow[T]) Rescue(match func(reason error) bool, fn func(s *Scope, reason error) any) *Flow[T] {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	f.steps = append(f.steps, flowStep[T]{kind: stepRescue, match: match, rescue: fn})
	return f
}

// Run compiles the flow into a continuation chain and starts it. The final
// step's settled value must be a T (or nil, for the zero value); anything
// else rejects the returned task.
func (f *Flow[T]) Run() *Task[T] {
	s := &Scope{vals: make(map[string]any)}
	chain := f.chain(s)

	result := newTask[T](f.eng, context.Background())
	result.parent = chain
	chain.markRejectHandled()
	chain.OnSettled(func(st State, v any, reason error) {
		if st == Rejected {
			result.Reject(reason)
			return
		}
		if v == nil {
			var zero T
			result.Resolve(zero)
			return
		}
		tv, ok := v.(T)
		if !ok {
			result.Reject(errors.Errorf("taskio: flow produced %T", v))
			return
		}
		result.Resolve(tv)
	})
	return result
}

func (f *Flow[T]) chain(s *Scope) *Task[any] {
	cur := Wrap[any](f.eng, nil)
	for _, st := range f.steps {
		cur = st.apply(f.eng, cur, s)
	}
	return cur
}

func (st flowStep[T]) apply(e *Engine, cur *Task[any], s *Scope) *Task[any] {
	switch st.kind {
	case stepBind:
		awaited := cur.Then(func(ctx context.Context, _ any) Result[any] {
			return Follow(await(e, st.fn(s)))
		})
		if st.name == "" {
			return awaited
		}
		name := st.name
		return awaited.Then(func(ctx context.Context, v any) Result[any] {
			s.Set(name, v)
			return Val(v)
		})

	case stepIf:
		cond := cur.Then(func(ctx context.Context, _ any) Result[any] {
			return Follow(await(e, st.cond(s)))
		})
		then, els := st.then, st.els
		return cond.Then(func(ctx context.Context, cv any) Result[any] {
			branch := then
			if !truthy(cv) {
				branch = els
			}
			if branch == nil {
				return Val(cv)
			}
			return Follow(branch.chain(s))
		})

	case stepRescue:
		match, rescue := st.match, st.rescue
		return cur.Catch(func(ctx context.Context, reason error) Result[any] {
			if match != nil && !match(reason) {
				return Err[any](reason)
			}
			return Follow(await(e, rescue(s, reason)))
		})
	}
	return cur
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
