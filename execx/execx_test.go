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

package execx

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskio-go/taskio"
)

func newTestEngine(t *testing.T) *taskio.Engine {
	t.Helper()
	e := taskio.NewEngine()
	t.Cleanup(e.Shutdown)
	return e
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestRun(t *testing.T) {
	requireTool(t, "sh")
	e := newTestEngine(t)

	res, err := Run(e, "sh", "-c", "echo out; echo err >&2").Result()
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestRunNonzeroExit(t *testing.T) {
	requireTool(t, "sh")
	e := newTestEngine(t)

	_, err := Run(e, "sh", "-c", "exit 3").Result()
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestRunMissingBinary(t *testing.T) {
	e := newTestEngine(t)

	_, err := Run(e, "definitely-not-a-real-binary").Result()
	assert.Error(t, err)
}

func TestRunCancelKillsProcess(t *testing.T) {
	requireTool(t, "sleep")
	e := newTestEngine(t)

	tk := Run(e, "sleep", "60")
	tk.Cancel()

	_, err := tk.Result()
	assert.ErrorIs(t, err, taskio.Canceled)
}
