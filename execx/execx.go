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

// Package execx is the process runner backend of the task engine: a child
// process resolves its task on exit 0 and rejects it otherwise, and a
// cancellation signal delivered to the task force-terminates the process.
package execx

import (
	"bytes"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/taskio-go/taskio"
)

// Result is the settled value of a process task.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Run starts the command and returns the task it settles. Stdout and
// stderr are captured. A nonzero exit rejects the task with the wrapped
// *exec.ExitError; a signal kills the process and rejects with the signal.
func Run(e *taskio.Engine, name string, args ...string) *taskio.Task[Result] {
	t := taskio.New[Result](e)

	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Reject(errors.Wrapf(err, "execx: starting %s", name))
		return t
	}

	t.SetOnSignal(func(sig error) {
		// forced termination; Wait below observes the kill and rejects,
		// but the signal reason should win, so reject first.
		t.Reject(sig)
		_ = cmd.Process.Kill()
	})

	go func() {
		err := cmd.Wait()
		res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		if err != nil {
			t.Reject(errors.Wrapf(err, "execx: %s failed", name))
			return
		}
		t.Resolve(res)
	}()
	return t
}
