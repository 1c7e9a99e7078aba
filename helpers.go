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

// WaitAll waits for all the provided tasks to settle, or for ctx to be
// done, whichever comes first. It returns ctx's error if ctx won.
func WaitAll[T any](ctx context.Context, tasks ...*Task[T]) error {
	for _, t := range tasks {
		if err := t.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// MustResult returns the task's value, blocking until it settles, and
// panics on a rejection. For tasks known to always fulfill.
func MustResult[T any](t *Task[T]) T {
	v, err := t.Result()
	if err != nil {
		panic("taskio: MustResult on a rejected task: " + err.Error())
	}
	return v
}
