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
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrSelfResolve is the rejection reason of a task that was resolved
	// with itself.
	ErrSelfResolve = errors.New("taskio: task resolved with itself")

	// ErrNoTasks is the rejection reason of Any and Race when called with
	// an empty task list.
	ErrNoTasks = errors.New("taskio: no tasks")

	// Canceled is the default signal delivered by Task.Signal when no
	// explicit reason is given, and the default rejection reason of a
	// canceled task.
	Canceled = errors.New("taskio: task canceled")
)

// panic messages
const (
	nilCallbackPanicMsg = "taskio: the provided callback is nil"
	nilTaskPanicMsg     = "taskio: the provided task is nil"
)

// TimeoutError is the rejection reason produced by Timeout and WithTimeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("taskio: timed out after %s", e.After)
}

// Timeout implements the net.Error convention.
func (e *TimeoutError) Timeout() bool { return true }

// PanicError wraps a panic value recovered from a callback, a delay value
// function, or an interval body. It rejects the task the callback was
// producing a result for.
type PanicError struct {
	V any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("taskio: callback panicked: %v", e.V)
}

// Unwrap returns the panic value as an error, if it is one.
func (e *PanicError) Unwrap() error {
	if err, ok := e.V.(error); ok {
		return err
	}
	return nil
}

// AggregateError is the rejection reason of Any when every task rejects.
// Reasons holds one rejection reason per input task, in input order.
type AggregateError struct {
	Reasons []error
}

func (e *AggregateError) Error() string {
	b := strings.Builder{}
	b.WriteString("taskio: all tasks rejected")
	for i, err := range e.Reasons {
		fmt.Fprintf(&b, "\n[%d] %s", i, err)
	}
	return b.String()
}

func (e *AggregateError) Unwrap() []error { return e.Reasons }
