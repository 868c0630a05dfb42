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

package types

import (
	"github.com/memagg/memagg/internal/util/lazyerrors"
)

// Array is an ordered sequence of Values.
type Array struct {
	s []any
}

// NewArray creates an Array from the given values, in order.
func NewArray(values ...any) (*Array, error) {
	a := MakeArray(len(values))

	for _, v := range values {
		if err := a.Append(v); err != nil {
			return nil, lazyerrors.Errorf("types.NewArray: %w", err)
		}
	}

	return a, nil
}

// MustNewArray is like NewArray, but panics on error.
func MustNewArray(values ...any) *Array {
	a, err := NewArray(values...)
	if err != nil {
		panic(err)
	}

	return a
}

// MakeArray creates an empty Array with capacity for at least
// capacity elements.
func MakeArray(capacity int) *Array {
	if capacity == 0 {
		return new(Array)
	}

	return &Array{s: make([]any, 0, capacity)}
}

// Len returns the number of elements in a. Safe to call on nil.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}

	return len(a.s)
}

// Get returns the element at index i, or an error if out of bounds.
func (a *Array) Get(i int) (any, error) {
	if a == nil || i < 0 || i >= len(a.s) {
		n := 0
		if a != nil {
			n = len(a.s)
		}

		return nil, lazyerrors.Errorf("types.Array.Get: index %d is out of bounds [0-%d)", i, n)
	}

	return a.s[i], nil
}

// Set replaces the element at index i.
func (a *Array) Set(i int, value any) error {
	value = Normalize(value)

	if !validateValue(value) {
		return lazyerrors.Errorf("types.Array.Set: types.validateValue: unsupported type: %T (%v)", value, value)
	}

	if i < 0 || i >= len(a.s) {
		return lazyerrors.Errorf("types.Array.Set: index %d is out of bounds [0-%d)", i, len(a.s))
	}

	a.s[i] = value

	return nil
}

// Append adds value to the end of a.
func (a *Array) Append(value any) error {
	value = Normalize(value)

	if !validateValue(value) {
		return lazyerrors.Errorf("types.Array.Append: types.validateValue: unsupported type: %T (%v)", value, value)
	}

	a.s = append(a.s, value)

	return nil
}

// Slice returns the elements of a as a plain slice. The returned slice
// must not be mutated.
func (a *Array) Slice() []any {
	if a == nil {
		return nil
	}

	return a.s
}

// DeepCopy returns a recursive copy of a.
func (a *Array) DeepCopy() *Array {
	if a == nil {
		return nil
	}

	cp := MakeArray(a.Len())

	for _, v := range a.s {
		cp.s = append(cp.s, deepCopyValue(v))
	}

	return cp
}

// Min returns the smallest element of a, per Compare's total order, or
// Missing if a is empty.
func (a *Array) Min() any {
	return a.extreme(Less)
}

// Max returns the largest element of a, per Compare's total order, or
// Missing if a is empty.
func (a *Array) Max() any {
	return a.extreme(Greater)
}

func (a *Array) extreme(want CompareResult) any {
	if a.Len() == 0 {
		return Missing
	}

	best := a.s[0]

	for _, v := range a.s[1:] {
		if Compare(v, best) == want {
			best = v
		}
	}

	return best
}
