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

// Package cache provides TTL-keyed memoization over task-producing work.
//
// A Policy binds a TTL rule, a key-derivation rule and a storage backend.
// Wrap memoizes a producer whose result arrives as a task: a hit returns
// the stored value without invoking the producer, a miss invokes it and
// stores the eventually-fulfilled value. Concurrent misses for the same key
// across overlapping asynchronous calls are not de-duplicated; each such
// call invokes the producer. This is a documented limitation.
package cache

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/taskio-go/taskio"
)

// defSweepChance is the probability that a Put triggers a full sweep of
// expired entries, amortizing cleanup without a dedicated scheduler.
const defSweepChance = 0.01

// TTL decides how long a stored value stays valid.
type TTL interface {
	// expiry returns the absolute expiry for v stored at now, or
	// noExpiry=true for a value that never expires.
	expiry(v any, now time.Time) (at time.Time, noExpiry bool)
}

type fixedTTL time.Duration

func (d fixedTTL) expiry(_ any, now time.Time) (time.Time, bool) {
	return now.Add(time.Duration(d)), false
}

type neverTTL struct{}

func (neverTTL) expiry(any, time.Time) (time.Time, bool) {
	return time.Time{}, true
}

type perValueTTL func(v any) time.Duration

func (fn perValueTTL) expiry(v any, now time.Time) (time.Time, bool) {
	d := fn(v)
	if d <= 0 {
		return time.Time{}, true
	}
	return now.Add(d), false
}

// For keeps entries for a fixed duration.
func For(d time.Duration) TTL { return fixedTTL(d) }

// Never keeps entries until explicitly deleted or overwritten.
func Never() TTL { return neverTTL{} }

// PerValue derives each entry's duration from the stored value; a duration
// of 0 or less means the value never expires.
func PerValue(fn func(v any) time.Duration) TTL {
	if fn == nil {
		panic("cache: the provided TTL function is nil")
	}
	return perValueTTL(fn)
}

// Key derives the same key for every subject.
func Key(key string) func(subject any) string {
	return func(any) string { return key }
}

// Fields derives the key from the named fields of a map[string]any subject,
// in the given order. A missing field contributes an empty value.
func Fields(names ...string) func(subject any) string {
	fields := append([]string(nil), names...)
	return func(subject any) string {
		m, _ := subject.(map[string]any)
		parts := make([]string, 0, len(fields))
		for _, name := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", name, m[name]))
		}
		return strings.Join(parts, "&")
	}
}

// Subject derives the key from the subject's own representation: its
// fmt.Stringer form if it has one, its %v rendering otherwise. Map subjects
// render with sorted keys so the key is stable.
func Subject() func(subject any) string {
	return func(subject any) string {
		switch s := subject.(type) {
		case string:
			return s
		case fmt.Stringer:
			return s.String()
		case map[string]any:
			names := make([]string, 0, len(s))
			for name := range s {
				names = append(names, name)
			}
			sort.Strings(names)
			parts := make([]string, 0, len(names))
			for _, name := range names {
				parts = append(parts, fmt.Sprintf("%s=%v", name, s[name]))
			}
			return strings.Join(parts, "&")
		default:
			return fmt.Sprintf("%v", subject)
		}
	}
}

// Policy binds a TTL rule, a key rule and a storage backend.
//
// Independent policies may share a Store by reference; they must then
// namespace their keys, as there is no isolation between writers to the
// same backend.
type Policy struct {
	// TTL is required.
	TTL TTL

	// Key is required: it derives the storage key from a subject.
	Key func(subject any) string

	// Store defaults to the process-wide store Named("default").
	Store Store

	// Clock defaults to the wall clock.
	Clock clock.Clock

	// SweepChance overrides the per-Put probability of a full expired-entry
	// sweep. 0 means the default; a negative value disables sweeping.
	SweepChance float64
}

// check validates the policy and fills in defaults. A malformed policy is
// programmer misuse and fails fast.
func (p *Policy) check() {
	if p.TTL == nil {
		panic(errors.New("cache: policy has no TTL rule"))
	}
	if p.Key == nil {
		panic(errors.New("cache: policy has no key rule"))
	}
	if p.Store == nil {
		p.Store = Named("default")
	}
	if p.Clock == nil {
		p.Clock = clock.New()
	}
	if p.SweepChance == 0 {
		p.SweepChance = defSweepChance
	}
}

// Get derives the key for subject and looks it up. Absent and expired
// entries are misses; an expired entry is evicted on the way out.
func (p *Policy) Get(subject any) (any, bool) {
	p.check()
	key := p.Key(subject)
	e, ok := p.Store.Load(key)
	if !ok {
		return nil, false
	}
	if !e.NoExpiry && p.Clock.Now().After(e.ExpiresAt) {
		p.Store.Delete(key)
		return nil, false
	}
	return e.Value, true
}

// Put stores v under subject's key with an absolute expiry computed from
// the TTL rule. With a small random chance it also sweeps every expired
// entry out of the backend.
func (p *Policy) Put(subject any, v any) {
	p.check()
	at, noExpiry := p.TTL.expiry(v, p.Clock.Now())
	p.Store.Store(p.Key(subject), Entry{Value: v, ExpiresAt: at, NoExpiry: noExpiry})
	if p.SweepChance > 0 && rand.Float64() < p.SweepChance {
		p.Sweep()
	}
}

// Delete evicts subject's entry.
func (p *Policy) Delete(subject any) {
	p.check()
	p.Store.Delete(p.Key(subject))
}

// Sweep evicts every expired entry from the backend.
func (p *Policy) Sweep() {
	p.check()
	now := p.Clock.Now()
	expired := make([]string, 0)
	p.Store.Range(func(key string, e Entry) bool {
		if !e.NoExpiry && now.After(e.ExpiresAt) {
			expired = append(expired, key)
		}
		return true
	})
	for _, key := range expired {
		p.Store.Delete(key)
	}
}

// Wrap memoizes producer under subject's key. On a hit it returns an
// already-fulfilled task carrying the stored value without invoking the
// producer; on a miss it invokes the producer and stores the value its task
// eventually fulfills with. A stored value of the wrong type counts as a
// miss and is evicted.
func Wrap[T any](e *taskio.Engine, p *Policy, subject any, producer func() *taskio.Task[T]) *taskio.Task[T] {
	if producer == nil {
		panic(errors.New("cache: the provided producer is nil"))
	}
	p.check()

	if v, ok := p.Get(subject); ok {
		if tv, ok := v.(T); ok {
			return taskio.Wrap(e, taskio.Val(tv))
		}
		p.Delete(subject)
	}

	t := producer()
	if t == nil {
		panic(errors.New("cache: the producer returned a nil task"))
	}
	t.OnSettled(func(s taskio.State, v T, _ error) {
		if s == taskio.Fulfilled {
			p.Put(subject, v)
		}
	})
	return t
}
