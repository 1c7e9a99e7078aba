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

import "sync"

var (
	defOnce   sync.Once
	defEngine *Engine
)

// Default returns the lazily-created process-wide engine. It is what every
// constructor in this package falls back to when passed a nil engine.
// The default engine is never shut down.
func Default() *Engine {
	defOnce.Do(func() {
		defEngine = NewEngine()
	})
	return defEngine
}
