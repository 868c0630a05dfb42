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

package aggregations

import "github.com/memagg/memagg/internal/types"

// memoKey identifies one (document, expression) compute() call.
// *types.Document and Expression are both reference types, so pointer
// identity gives the (identity-of-doc, identity-of-expr) pairing the
// cache is keyed on for free.
type memoKey struct {
	doc  *types.Document
	expr Expression
}

// Memo caches compute() results for the lifetime of one blocking
// stage's invocation (e.g. the sort-key computation in $bucketAuto, or
// the _id/accumulator expressions in $group). A stage constructs a
// fresh Memo per Process call; it is never shared across stages.
type Memo struct {
	m map[memoKey]any
}

// NewMemo returns an empty Memo.
func NewMemo() *Memo {
	return &Memo{m: make(map[memoKey]any)}
}

// Get returns the cached result for (doc, expr), if any.
func (c *Memo) Get(doc *types.Document, expr Expression) (any, bool) {
	if c == nil {
		return nil, false
	}

	v, ok := c.m[memoKey{doc: doc, expr: expr}]

	return v, ok
}

// Set records the result of computing expr against doc.
func (c *Memo) Set(doc *types.Document, expr Expression, v any) {
	if c == nil {
		return
	}

	c.m[memoKey{doc: doc, expr: expr}] = v
}

// Evaluate evaluates expr against f.Current, memoizing the result
// against f.Root (the document identity the cache is keyed on) when
// f.Memo is non-nil. Stages that want memoization call this instead of
// expr.Evaluate directly.
func Evaluate(expr Expression, f *Frame) (any, error) {
	if f.Memo != nil {
		if v, ok := f.Memo.Get(f.Root, expr); ok {
			return v, nil
		}
	}

	v, err := expr.Evaluate(f)
	if err != nil {
		return nil, err
	}

	if f.Memo != nil {
		f.Memo.Set(f.Root, expr, v)
	}

	return v, nil
}
