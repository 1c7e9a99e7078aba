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

// Signal delivers a cooperative cancellation/control message to the task.
//
// It is meaningful only while the task is pending; signaling a settled task
// is a no-op. The signal is routed up the parent chain to the deepest
// pending ancestor, which is the task owning the underlying resource. If
// that task has a signal handler installed, the handler is invoked with the
// signal; otherwise the task is rejected with it. A nil sig stands for
// Canceled.
func (t *Task[T]) Signal(sig error) {
	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return
	}
	p := t.parent
	t.mu.Unlock()

	if p != nil && p.isPending() {
		p.Signal(sig)
		return
	}
	t.deliver(sig)
}

// Cancel is Signal(Canceled).
func (t *Task[T]) Cancel() {
	t.Signal(Canceled)
}

func (t *Task[T]) deliver(sig error) {
	if sig == nil {
		sig = Canceled
	}

	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return
	}
	h := t.onSignal
	t.mu.Unlock()

	debug(t.eng, evSignal)

	if h != nil {
		h(sig)
		return
	}
	t.Reject(sig)
}
