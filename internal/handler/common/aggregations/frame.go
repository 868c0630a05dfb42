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

// Frame is the evaluation context threaded through one compute() call:
// the document the pipeline started from, the document (or sub-value)
// a bare "$path" resolves against, the active "$$var" bindings, and the
// construction-time options.
type Frame struct {
	Root    *types.Document
	Current any
	Vars    map[string]any
	Ctx     *EvalContext
	Memo    *Memo
}

// NewFrame builds the top-level Frame for evaluating expressions
// against doc: Root and Current both start out as doc, the default
// target of a bare "$path".
func NewFrame(doc *types.Document, ctx *EvalContext) *Frame {
	if ctx == nil {
		ctx = DefaultEvalContext()
	}

	vars := map[string]any{}

	for k, v := range ctx.Variables {
		vars[k] = v
	}

	return &Frame{Root: doc, Current: doc, Vars: vars, Ctx: ctx, Memo: NewMemo()}
}

// NewMemoFrame is NewFrame with a caller-owned Memo, so a blocking
// stage can share one cache across every document of a single Process
// call. The cache lives for the duration of one stage and is cleared
// at stage boundaries, here by the stage dropping it.
func NewMemoFrame(doc *types.Document, ctx *EvalContext, memo *Memo) *Frame {
	f := NewFrame(doc, ctx)
	f.Memo = memo

	return f
}

// WithCurrent returns a copy of f with Current replaced by cur, without
// disturbing the enclosing Frame. ($map, $filter, and $reduce bind
// their elements through WithVar instead.)
func (f *Frame) WithCurrent(cur any) *Frame {
	cp := *f
	cp.Current = cur

	return &cp
}

// WithVar returns a copy of f with name bound to value in Vars, used by
// $let and the iteration operators to introduce a new variable binding
// without mutating the caller's Vars map.
func (f *Frame) WithVar(name string, value any) *Frame {
	vars := make(map[string]any, len(f.Vars)+1)

	for k, v := range f.Vars {
		vars[k] = v
	}

	vars[name] = value

	cp := *f
	cp.Vars = vars

	return &cp
}
