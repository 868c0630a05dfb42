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

import (
	"github.com/memagg/memagg/internal/handler/commonpath"
	"github.com/memagg/memagg/internal/handler/common/aggregations/operators"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

// Evaluate implements Expression for a field or variable reference.
func (e *fieldRefExpr) Evaluate(f *Frame) (any, error) {
	var base any

	switch e.variable {
	case "":
		base = f.Current
	case "ROOT":
		base = f.Root
	case "CURRENT":
		base = f.Current
	default:
		v, ok := f.Vars[e.variable]
		if !ok {
			return types.Missing, nil
		}

		base = v
	}

	if len(e.path) == 0 {
		return base, nil
	}

	return commonpath.Resolve(base, types.NewStaticPath(e.path...)), nil
}

// Evaluate implements Expression for an array literal: elementwise,
// Missing collapses to Null.
func (e *arrayExpr) Evaluate(f *Frame) (any, error) {
	out := types.MakeArray(len(e.elements))

	for _, elem := range e.elements {
		v, err := elem.Evaluate(f)
		if err != nil {
			return nil, err
		}

		if types.IsMissing(v) {
			v = types.Null
		}

		_ = out.Append(v)
	}

	return out, nil
}

// Evaluate implements Expression for a document literal: key order is
// preserved, and a key whose value evaluates to Missing is dropped.
func (e *documentExpr) Evaluate(f *Frame) (any, error) {
	out, err := types.NewDocument()
	if err != nil {
		return nil, err
	}

	for i, key := range e.keys {
		v, err := e.values[i].Evaluate(f)
		if err != nil {
			return nil, err
		}

		if types.IsMissing(v) {
			continue
		}

		if err := out.Set(key, v); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Evaluate implements Expression for a leaf operator invocation: every
// argument is evaluated first, then dispatched to the operators
// catalog.
func (e *callExpr) Evaluate(f *Frame) (any, error) {
	if !operators.IsRegistered(e.name) {
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrOperatorInvalid,
			"unknown expression operator",
			e.name,
		)
	}

	args := make([]any, len(e.args))

	for i, a := range e.args {
		v, err := a.Evaluate(f)
		if err != nil {
			return nil, err
		}

		args[i] = v
	}

	return operators.Dispatch(e.name, args, f.Ctx.ToOperatorsContext())
}
