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
	"time"
)

// Context returns a context.Context view of the task: it is done once the
// task settles, without requiring a separate goroutine. Values are looked
// up in the task's ambient context.
func (t *Task[T]) Context() context.Context {
	return taskCtx[T]{t: t}
}

// taskCtx adapts a task's done channel to the context.Context interface.
// It's similar to context.cancelCtx, without any connection or knowledge
// between it and any possible children.
type taskCtx[T any] struct{ t *Task[T] }

func (c taskCtx[T]) Deadline() (deadline time.Time, ok bool) { return }
func (c taskCtx[T]) Done() <-chan struct{}                   { return c.t.done }
func (c taskCtx[T]) Value(key any) any                       { return c.t.ctx.Value(key) }
func (c taskCtx[T]) String() string                          { return "taskio.Context" }

func (c taskCtx[T]) Err() error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	switch c.t.state {
	case Pending:
		return nil
	case Rejected:
		return c.t.reason
	default:
		return context.Canceled
	}
}
