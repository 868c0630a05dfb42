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

// Package iterator provides the pull-based, closable iterator contract
// used everywhere documents flow through the pipeline runtime. A single
// generic interface covers slices, functions, and stage adapters alike.
package iterator

import (
	"errors"
)

// ErrIteratorDone is returned by Next once the iterator is exhausted.
var ErrIteratorDone = errors.New("iterator is done")

// Interface is a closable iterator of (key, value) pairs. Next returns
// ErrIteratorDone, not an error wrapping it, once exhausted; callers
// should compare with errors.Is.
type Interface[K, V any] interface {
	// Next returns the next key/value pair, or ErrIteratorDone.
	Next() (K, V, error)

	// Close releases any resources held by the iterator. It is safe to
	// call Close multiple times, and safe to call Next after Close
	// (it returns ErrIteratorDone).
	Close()
}

// sliceIterator adapts a slice to Interface[int, V].
type sliceIterator[V any] struct {
	values []V
	n      int
	closed bool
}

// ForSlice returns an iterator over values, indexed by position.
func ForSlice[V any](values []V) Interface[int, V] {
	return &sliceIterator[V]{values: values}
}

// Next implements Interface.
func (it *sliceIterator[V]) Next() (int, V, error) {
	var zero V

	if it.closed || it.n >= len(it.values) {
		return 0, zero, ErrIteratorDone
	}

	i := it.n
	it.n++

	return i, it.values[i], nil
}

// Close implements Interface.
func (it *sliceIterator[V]) Close() {
	it.closed = true
}

// funcIterator adapts a function to Interface[K, V].
type funcIterator[K, V any] struct {
	f      func() (K, V, error)
	closed bool
}

// ForFunc returns an iterator that calls f for every element, until f
// returns ErrIteratorDone.
func ForFunc[K, V any](f func() (K, V, error)) Interface[K, V] {
	return &funcIterator[K, V]{f: f}
}

// Next implements Interface.
func (it *funcIterator[K, V]) Next() (K, V, error) {
	var zeroK K

	var zeroV V

	if it.closed {
		return zeroK, zeroV, ErrIteratorDone
	}

	return it.f()
}

// Close implements Interface.
func (it *funcIterator[K, V]) Close() {
	it.closed = true
}

// Values drops the key half of a (key, value) iterator, keeping the
// same Close semantics.
func Values[K, V any](iter Interface[K, V]) Interface[struct{}, V] {
	return ForFunc(func() (struct{}, V, error) {
		var zero struct{}

		_, v, err := iter.Next()

		return zero, v, err
	})
}

// ConsumeValues drains iter entirely into a slice.
func ConsumeValues[K, V any](iter Interface[K, V]) ([]V, error) {
	var res []V

	for {
		_, v, err := iter.Next()
		if errors.Is(err, ErrIteratorDone) {
			return res, nil
		}

		if err != nil {
			return nil, err
		}

		res = append(res, v)
	}
}

// ConsumeValuesN drains at most n values from iter. It returns nil, not
// an empty slice, once iter is exhausted and no values were produced.
func ConsumeValuesN[K, V any](iter Interface[K, V], n int) ([]V, error) {
	var res []V

	for i := 0; i < n; i++ {
		_, v, err := iter.Next()
		if errors.Is(err, ErrIteratorDone) {
			break
		}

		if err != nil {
			return nil, err
		}

		res = append(res, v)
	}

	return res, nil
}
