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

// Package httpx is the HTTP transport backend of the task engine. It only
// implements the start→settle contract: a request starts an operation and
// eventually resolves or rejects a task; a cancellation signal delivered to
// the task aborts the in-flight request. Header and body transformation
// belong to the callers.
package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/taskio-go/taskio"
)

// Response is the settled value of a fetch task: the interesting parts of
// the wire response with the body fully read.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Fetch starts req on its own goroutine and returns the task it settles.
// A nil client means http.DefaultClient. Signaling the task cancels the
// request context, which aborts the request, and rejects the task with the
// signal.
func Fetch(e *taskio.Engine, client *http.Client, req *http.Request) *taskio.Task[*Response] {
	if req == nil {
		panic("httpx: the provided request is nil")
	}
	if client == nil {
		client = http.DefaultClient
	}

	t := taskio.NewCtx[*Response](e, req.Context())
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	t.SetOnSignal(func(sig error) {
		cancel()
		t.Reject(sig)
	})

	go func() {
		defer cancel()
		resp, err := client.Do(req)
		if err != nil {
			t.Reject(errors.Wrap(err, "httpx: request failed"))
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Reject(errors.Wrap(err, "httpx: reading response body"))
			return
		}
		t.Resolve(&Response{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       body,
		})
	}()
	return t
}
