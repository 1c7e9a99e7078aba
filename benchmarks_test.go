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

package taskio_test

import (
	"context"
	"testing"

	"github.com/taskio-go/taskio"
)

func BenchmarkNew(b *testing.B) {
	e := taskio.NewEngine()
	defer e.Shutdown()

	var tk *taskio.Task[int]
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tk = taskio.New[int](e)
	}
	_ = tk
}

func BenchmarkResolveResult(b *testing.B) {
	e := taskio.NewEngine()
	defer e.Shutdown()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tk := taskio.New[int](e)
		tk.Resolve(i)
		_, _ = tk.Result()
	}
}

func BenchmarkThenChain(b *testing.B) {
	e := taskio.NewEngine()
	defer e.Shutdown()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tk := taskio.New[int](e)
		end := tk.Then(func(_ context.Context, v int) taskio.Result[int] {
			return taskio.Val(v + 1)
		}).Then(func(_ context.Context, v int) taskio.Result[int] {
			return taskio.Val(v + 1)
		})
		tk.Resolve(i)
		_, _ = end.Result()
	}
}

func BenchmarkGo(b *testing.B) {
	e := taskio.NewEngine()
	defer e.Shutdown()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = taskio.Go(e, func(context.Context) taskio.Result[int] {
			return taskio.Val(0)
		}).Result()
	}
}

func BenchmarkAll(b *testing.B) {
	e := taskio.NewEngine()
	defer e.Shutdown()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tasks := make([]*taskio.Task[int], 4)
		for j := range tasks {
			tasks[j] = taskio.Wrap(e, taskio.Val(j))
		}
		_, _ = taskio.All(e, tasks...).Result()
	}
}
