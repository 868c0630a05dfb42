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
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

// Evaluate implements Expression for $cond: exactly one of then/else_
// is evaluated.
func (e *condExpr) Evaluate(f *Frame) (any, error) {
	p, err := e.if_.Evaluate(f)
	if err != nil {
		return nil, err
	}

	if types.Truthy(p) {
		return e.then.Evaluate(f)
	}

	return e.else_.Evaluate(f)
}

// Evaluate implements Expression for $ifNull: evaluates its operands in
// order, returning the first that is not Null/Missing; the last
// operand is returned (and evaluated) even if it too is nullish.
func (e *ifNullExpr) Evaluate(f *Frame) (any, error) {
	for i, expr := range e.exprs {
		v, err := expr.Evaluate(f)
		if err != nil {
			return nil, err
		}

		if i == len(e.exprs)-1 || !(types.IsNull(v) || types.IsMissing(v)) {
			return v, nil
		}
	}

	return types.Null, nil
}

// Evaluate implements Expression for $and: short-circuits at the first
// falsy operand.
func (e *andExpr) Evaluate(f *Frame) (any, error) {
	for _, expr := range e.exprs {
		v, err := expr.Evaluate(f)
		if err != nil {
			return nil, err
		}

		if !types.Truthy(v) {
			return false, nil
		}
	}

	return true, nil
}

// Evaluate implements Expression for $or: short-circuits at the first
// truthy operand.
func (e *orExpr) Evaluate(f *Frame) (any, error) {
	for _, expr := range e.exprs {
		v, err := expr.Evaluate(f)
		if err != nil {
			return nil, err
		}

		if types.Truthy(v) {
			return true, nil
		}
	}

	return false, nil
}

// Evaluate implements Expression for $switch: evaluates case
// expressions in order, stopping at the first truthy branch.
func (e *switchExpr) Evaluate(f *Frame) (any, error) {
	for _, branch := range e.branches {
		c, err := branch.case_.Evaluate(f)
		if err != nil {
			return nil, err
		}

		if types.Truthy(c) {
			return branch.then.Evaluate(f)
		}
	}

	if e.default_ != nil {
		return e.default_.Evaluate(f)
	}

	return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$switch has no default and no branch matched")
}

// Evaluate implements Expression for $let: binds each named expression
// in order (later bindings may reference earlier ones, matching
// left-to-right evaluation) then evaluates "in" against the extended
// Frame.
func (e *letExpr) Evaluate(f *Frame) (any, error) {
	cur := f

	for i, name := range e.varNames {
		v, err := e.varExprs[i].Evaluate(cur)
		if err != nil {
			return nil, err
		}

		cur = cur.WithVar(name, v)
	}

	return e.in.Evaluate(cur)
}

// Evaluate implements Expression for $map: applies "in" to each element
// of "input" in turn, with "as" (default "this") bound to the element.
func (e *mapExpr) Evaluate(f *Frame) (any, error) {
	in, err := e.input.Evaluate(f)
	if err != nil {
		return nil, err
	}

	if types.IsNull(in) || types.IsMissing(in) {
		return types.Null, nil
	}

	arr, ok := in.(*types.Array)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$map input must be an array")
	}

	as := e.as
	if as == "" {
		as = "this"
	}

	out := types.MakeArray(arr.Len())

	for _, elem := range arr.Slice() {
		ef := f.WithVar(as, elem)

		v, err := e.in.Evaluate(ef)
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

// Evaluate implements Expression for $filter: keeps the elements of
// "input" for which "cond" is truthy, optionally capped at "limit".
func (e *filterExpr) Evaluate(f *Frame) (any, error) {
	in, err := e.input.Evaluate(f)
	if err != nil {
		return nil, err
	}

	if types.IsNull(in) || types.IsMissing(in) {
		return types.Null, nil
	}

	arr, ok := in.(*types.Array)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$filter input must be an array")
	}

	as := e.as
	if as == "" {
		as = "this"
	}

	limit := -1

	if e.limit != nil {
		v, err := e.limit.Evaluate(f)
		if err != nil {
			return nil, err
		}

		if n, ok := types.ToFloat64(v); ok {
			limit = int(n)
		}
	}

	out := types.MakeArray(0)

	for _, elem := range arr.Slice() {
		if limit >= 0 && out.Len() >= limit {
			break
		}

		ef := f.WithVar(as, elem)

		keep, err := e.cond.Evaluate(ef)
		if err != nil {
			return nil, err
		}

		if types.Truthy(keep) {
			_ = out.Append(elem)
		}
	}

	return out, nil
}

// Evaluate implements Expression for $reduce: folds "in" over "input"
// left to right, with "$$value" bound to the running accumulator
// (seeded from "initialValue") and "$$this" to the current element.
func (e *reduceExpr) Evaluate(f *Frame) (any, error) {
	in, err := e.input.Evaluate(f)
	if err != nil {
		return nil, err
	}

	acc, err := e.initial.Evaluate(f)
	if err != nil {
		return nil, err
	}

	if types.IsNull(in) || types.IsMissing(in) {
		return acc, nil
	}

	arr, ok := in.(*types.Array)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$reduce input must be an array")
	}

	for _, elem := range arr.Slice() {
		ef := f.WithVar("value", acc).WithVar("this", elem)

		acc, err = e.in.Evaluate(ef)
		if err != nil {
			return nil, err
		}
	}

	return acc, nil
}

// Evaluate implements Expression for $function: the argument
// expressions are evaluated here, but the body itself runs in the
// embedder's script evaluator.
func (e *functionExpr) Evaluate(f *Frame) (any, error) {
	if f.Ctx == nil || !f.Ctx.ScriptEnabled || f.Ctx.ScriptEvaluator == nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrScriptDisabled, "$function requires scriptEnabled")
	}

	args := make([]any, len(e.args))

	for i, a := range e.args {
		v, err := a.Evaluate(f)
		if err != nil {
			return nil, err
		}

		args[i] = v
	}

	return f.Ctx.ScriptEvaluator(e.body, args)
}

// Evaluate implements Expression for $zip: transposes "inputs" into an
// array of tuples.
func (e *zipExpr) Evaluate(f *Frame) (any, error) {
	arrays := make([]*types.Array, len(e.inputs))
	maxLen, minLen := 0, -1

	for i, expr := range e.inputs {
		v, err := expr.Evaluate(f)
		if err != nil {
			return nil, err
		}

		arr, ok := v.(*types.Array)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$zip inputs must be arrays")
		}

		arrays[i] = arr

		if arr.Len() > maxLen {
			maxLen = arr.Len()
		}

		if minLen == -1 || arr.Len() < minLen {
			minLen = arr.Len()
		}
	}

	length := minLen
	if e.useLongestLength {
		length = maxLen
	}

	defaults := make([]any, len(e.defaults))

	for i, d := range e.defaults {
		v, err := d.Evaluate(f)
		if err != nil {
			return nil, err
		}

		if types.IsMissing(v) {
			v = types.Null
		}

		defaults[i] = v
	}

	out := types.MakeArray(length)

	for i := 0; i < length; i++ {
		tuple := types.MakeArray(len(arrays))

		for j, arr := range arrays {
			if i < arr.Len() {
				v, _ := arr.Get(i)
				_ = tuple.Append(v)

				continue
			}

			if j < len(defaults) {
				_ = tuple.Append(defaults[j])
			} else {
				_ = tuple.Append(types.Null)
			}
		}

		_ = out.Append(tuple)
	}

	return out, nil
}

// Evaluate implements Expression for $range: produces [start, end)
// stepping by step (default 1); an empty range if step points away
// from end, and an error if step is zero.
func (e *rangeExpr) Evaluate(f *Frame) (any, error) {
	startV, err := e.start.Evaluate(f)
	if err != nil {
		return nil, err
	}

	endV, err := e.end.Evaluate(f)
	if err != nil {
		return nil, err
	}

	step := int64(1)

	if e.step != nil {
		stepV, err := e.step.Evaluate(f)
		if err != nil {
			return nil, err
		}

		if n, ok := types.ToFloat64(stepV); ok {
			step = int64(n)
		}
	}

	start, ok1 := types.ToFloat64(startV)
	end, ok2 := types.ToFloat64(endV)

	if !ok1 || !ok2 || step == 0 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$range requires numeric start/end and a non-zero step")
	}

	out := types.MakeArray(0)

	if step > 0 {
		for v := int64(start); v < int64(end); v += step {
			_ = out.Append(v)
		}
	} else {
		for v := int64(start); v > int64(end); v += step {
			_ = out.Append(v)
		}
	}

	return out, nil
}
