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

package cache

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskio-go/taskio"
)

func newTestPolicy(ttl TTL) (*Policy, *clock.Mock) {
	mock := clock.NewMock()
	return &Policy{
		TTL:         ttl,
		Key:         Subject(),
		Store:       NewMapStore(),
		Clock:       mock,
		SweepChance: -1,
	}, mock
}

func TestPolicyTTL(t *testing.T) {
	p, mock := newTestPolicy(For(time.Second))

	p.Put("k", "v")
	v, ok := p.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	mock.Add(500 * time.Millisecond)
	_, ok = p.Get("k")
	assert.True(t, ok, "entry expired early")

	mock.Add(time.Second)
	_, ok = p.Get("k")
	assert.False(t, ok, "entry outlived its TTL")

	// the expired entry was evicted on the way out
	_, present := p.Store.Load("k")
	assert.False(t, present)
}

func TestPolicyNever(t *testing.T) {
	p, mock := newTestPolicy(Never())

	p.Put("k", 1)
	mock.Add(1000 * time.Hour)

	v, ok := p.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestPolicyPerValue(t *testing.T) {
	p, mock := newTestPolicy(PerValue(func(v any) time.Duration {
		if v == "short" {
			return time.Second
		}
		return 0 // never expires
	}))

	p.Put("a", "short")
	p.Put("b", "long")

	mock.Add(2 * time.Second)
	_, ok := p.Get("a")
	assert.False(t, ok)
	_, ok = p.Get("b")
	assert.True(t, ok)
}

func TestPolicyDelete(t *testing.T) {
	p, _ := newTestPolicy(Never())

	p.Put("k", 1)
	p.Delete("k")
	_, ok := p.Get("k")
	assert.False(t, ok)
}

func TestPolicySweep(t *testing.T) {
	p, mock := newTestPolicy(For(time.Second))

	p.Put("a", 1)
	p.Put("b", 2)
	mock.Add(2 * time.Second)
	p.Put("c", 3)

	p.Sweep()

	var kept []string
	p.Store.Range(func(key string, _ Entry) bool {
		kept = append(kept, key)
		return true
	})
	assert.Equal(t, []string{"c"}, kept)
}

func TestPolicyChecksConfig(t *testing.T) {
	assert.Panics(t, func() { (&Policy{Key: Subject()}).Get("k") })
	assert.Panics(t, func() { (&Policy{TTL: Never()}).Get("k") })
}

func TestKeyRules(t *testing.T) {
	assert.Equal(t, "fixed", Key("fixed")("anything"))

	fields := Fields("b", "a")
	subject := map[string]any{"a": 1, "b": "two", "c": "ignored"}
	assert.Equal(t, "b=two&a=1", fields(subject))
	assert.Equal(t, "b=<nil>&a=<nil>", fields("not a map"))

	bySubject := Subject()
	assert.Equal(t, "plain", bySubject("plain"))
	assert.Equal(t, "42", bySubject(42))
	assert.Equal(t, "a=1&b=2", bySubject(map[string]any{"b": 2, "a": 1}))
	assert.Equal(t, "5s", bySubject(5*time.Second)) // fmt.Stringer
}

func TestWrapMissThenHit(t *testing.T) {
	e := taskio.NewEngine()
	t.Cleanup(e.Shutdown)
	p, _ := newTestPolicy(For(time.Minute))

	produced := 0
	producer := func() *taskio.Task[string] {
		produced++
		return taskio.Wrap(e, taskio.Val("fresh"))
	}

	v, err := Wrap(e, p, "k", producer).Result()
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 1, produced)

	// the fulfilled value lands in the store once the engine drains
	e.Idle()
	stored, ok := p.Get("k")
	require.True(t, ok)
	assert.Equal(t, "fresh", stored)

	v, err = Wrap(e, p, "k", producer).Result()
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 1, produced, "hit must not invoke the producer")
}

func TestWrapRejectionNotCached(t *testing.T) {
	e := taskio.NewEngine()
	t.Cleanup(e.Shutdown)
	p, _ := newTestPolicy(For(time.Minute))

	failing := func() *taskio.Task[string] {
		return taskio.Wrap(e, taskio.Err[string](assert.AnError))
	}

	_, err := Wrap(e, p, "k", failing).Result()
	require.ErrorIs(t, err, assert.AnError)

	e.Idle()
	_, ok := p.Get("k")
	assert.False(t, ok)
}

func TestWrapWrongTypeIsMiss(t *testing.T) {
	e := taskio.NewEngine()
	t.Cleanup(e.Shutdown)
	p, _ := newTestPolicy(For(time.Minute))

	p.Put("k", 123) // not a string

	produced := 0
	v, err := Wrap(e, p, "k", func() *taskio.Task[string] {
		produced++
		return taskio.Wrap(e, taskio.Val("replaced"))
	}).Result()
	require.NoError(t, err)
	assert.Equal(t, "replaced", v)
	assert.Equal(t, 1, produced)
}

func TestWrapExpiredEntryReproduced(t *testing.T) {
	e := taskio.NewEngine()
	t.Cleanup(e.Shutdown)
	p, mock := newTestPolicy(For(time.Second))

	p.Put("k", "old")
	mock.Add(2 * time.Second)

	v, err := Wrap(e, p, "k", func() *taskio.Task[string] {
		return taskio.Wrap(e, taskio.Val("new"))
	}).Result()
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}
