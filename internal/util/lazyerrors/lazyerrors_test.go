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

package lazyerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorfAnnotatesCallSite(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	err := Errorf("wrapping: %w", base)

	require.Error(t, err)
	assert.ErrorIs(t, err, base, "the chain survives wrapping")
	assert.Contains(t, err.Error(), "lazyerrors_test.go", "the message carries the call site")
	assert.Contains(t, err.Error(), "boom")
}

func TestNew(t *testing.T) {
	t.Parallel()

	err := New("plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plain")
}
