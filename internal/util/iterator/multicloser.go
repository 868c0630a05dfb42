// Copyright 2026 The Memagg Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package iterator

import "sync"

// MultiCloser collects the Close methods of every stage in a pipeline
// chain, so dropping the outermost iterator releases every intermediate
// buffer (blocking stages materialize their upstream into an owned
// slice; that slice is only reclaimed once Close runs).
type MultiCloser struct {
	mu      sync.Mutex
	closers []func()
}

// NewMultiCloser returns an empty MultiCloser.
func NewMultiCloser() *MultiCloser {
	return new(MultiCloser)
}

// Add registers closer to run when Close is called.
func (mc *MultiCloser) Add(closer func()) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.closers = append(mc.closers, closer)
}

// Close runs every registered closer, in reverse registration order
// (for a Chain, the last stage's iterator first and the input last).
func (mc *MultiCloser) Close() {
	mc.mu.Lock()
	closers := mc.closers
	mc.closers = nil
	mc.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
