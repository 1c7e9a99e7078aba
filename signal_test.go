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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalDefaultRejects(t *testing.T) {
	e := newTestEngine(t)

	tk := New[int](e)
	tk.Signal(errBoom)

	_, err := tk.Result()
	assert.ErrorIs(t, err, errBoom)
}

func TestSignalNilMeansCanceled(t *testing.T) {
	e := newTestEngine(t)

	tk := New[int](e)
	tk.Signal(nil)

	_, err := tk.Result()
	assert.ErrorIs(t, err, Canceled)
}

func TestSignalHandler(t *testing.T) {
	e := newTestEngine(t)

	tk := New[int](e)
	var got error
	prev := tk.SetOnSignal(func(sig error) {
		got = sig
		tk.Reject(sig)
	})
	assert.Nil(t, prev)

	tk.Signal(errBoom)
	_, err := tk.Result()
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, got, errBoom)
}

func TestSignalRoutesToDeepestPendingAncestor(t *testing.T) {
	e := newTestEngine(t)

	root := New[int](e)
	var got error
	root.SetOnSignal(func(sig error) {
		got = sig
		root.Reject(sig)
	})

	mid := root.Then(func(_ context.Context, v int) Result[int] { return Val(v) })
	leaf := mid.Then(func(_ context.Context, v int) Result[int] { return Val(v) })

	leaf.Cancel()

	_, err := leaf.Result()
	assert.ErrorIs(t, err, Canceled)
	assert.ErrorIs(t, got, Canceled)
	assert.Equal(t, Rejected, root.State())
}

func TestSignalStopsAtSettledParent(t *testing.T) {
	e := newTestEngine(t)

	root := New[int](e)
	root.SetOnSignal(func(error) {
		t.Error("signal reached a settled ancestor's handler")
	})
	child := root.Then(func(_ context.Context, v int) Result[int] { return Val(v) })

	root.Resolve(1)
	e.Idle()

	// the handler ran; the child's parent link is cleared, so the signal
	// lands on the child itself, which is already settled: a no-op
	v, err := child.Result()
	require.NoError(t, err)
	child.Signal(errBoom)
	assert.Equal(t, 1, v)
	assert.Equal(t, Fulfilled, child.State())
}

func TestSignalOnSettledTaskIsNoop(t *testing.T) {
	e := newTestEngine(t)

	tk := Wrap(e, Val(5))
	tk.Signal(errBoom)
	tk.Cancel()

	v, err := tk.Result()
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestSignalIdempotent(t *testing.T) {
	e := newTestEngine(t)

	tk := New[int](e)
	calls := 0
	tk.SetOnSignal(func(sig error) {
		calls++
		tk.Reject(sig)
	})

	tk.Cancel()
	tk.Cancel()
	tk.Signal(errBoom)

	_, err := tk.Result()
	assert.ErrorIs(t, err, Canceled)
	assert.Equal(t, 1, calls)
}

func TestSignalForwardedThroughResolveWith(t *testing.T) {
	e := newTestEngine(t)

	inner := New[int](e)
	var got error
	inner.SetOnSignal(func(sig error) {
		got = sig
		inner.Reject(sig)
	})

	outer := New[int](e)
	outer.ResolveWith(inner)

	outer.Signal(errBoom)
	_, err := outer.Result()
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, got, errBoom)
}

func TestSetOnSignalOnSettledTask(t *testing.T) {
	e := newTestEngine(t)

	tk := Wrap(e, Val(1))
	prev := tk.SetOnSignal(func(error) {})
	assert.Nil(t, prev)
}

func TestSetOnSignalChaining(t *testing.T) {
	e := newTestEngine(t)

	tk := New[int](e)
	var order []string
	tk.SetOnSignal(func(error) { order = append(order, "first") })

	var prev func(error)
	prev = tk.SetOnSignal(func(sig error) {
		order = append(order, "second")
		prev(sig)
		tk.Reject(sig)
	})
	require.NotNil(t, prev)

	tk.Cancel()
	_, err := tk.Result()
	assert.ErrorIs(t, err, Canceled)
	assert.Equal(t, []string{"second", "first"}, order)
}
