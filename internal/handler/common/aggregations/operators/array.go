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

package operators

import (
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

func init() {
	Register("$size", arraySize)
	Register("$arrayElemAt", arrayElemAt)
	Register("$concatArrays", arrayConcat)
	Register("$reverseArray", arrayReverse)
	Register("$indexOfArray", arrayIndexOf)
	Register("$slice", arraySlice)
	Register("$in", arrayIn)
	Register("$min", variadicExtreme(types.Less))
	Register("$max", variadicExtreme(types.Greater))
}

func asArray(v any) (*types.Array, bool) {
	a, ok := v.(*types.Array)
	return a, ok
}

func arraySize(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$size", args)
	}

	a, ok := asArray(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$size requires an array")
	}

	return int64(a.Len()), nil
}

func arrayElemAt(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$arrayElemAt", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	a, ok := asArray(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$arrayElemAt requires an array")
	}

	idxF, ok := Numeric(args[1])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$arrayElemAt index must be numeric")
	}

	idx := int(idxF)
	if idx < 0 {
		idx += a.Len()
	}

	v, err := a.Get(idx)
	if err != nil {
		return nil, nil
	}

	return v, nil
}

func arrayConcat(args []any, _ *Context) (any, error) {
	out := types.MakeArray(0)

	for _, a := range args {
		if IsNullish(a) {
			return nil, nil
		}

		arr, ok := asArray(a)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$concatArrays only supports arrays")
		}

		for _, v := range arr.Slice() {
			_ = out.Append(v)
		}
	}

	return out, nil
}

func arrayReverse(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$reverseArray", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	a, ok := asArray(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$reverseArray requires an array")
	}

	s := a.Slice()
	out := types.MakeArray(len(s))

	for i := len(s) - 1; i >= 0; i-- {
		_ = out.Append(s[i])
	}

	return out, nil
}

func arrayIndexOf(args []any, _ *Context) (any, error) {
	if len(args) < 2 || len(args) > 4 {
		return nil, ErrArity("$indexOfArray", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	a, ok := asArray(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$indexOfArray requires an array")
	}

	s := a.Slice()
	start, end := 0, len(s)

	if len(args) >= 3 {
		f, ok := Numeric(args[2])
		if ok {
			start = clampIndex(int(f), len(s))
		}
	}

	if len(args) == 4 {
		f, ok := Numeric(args[3])
		if ok {
			end = clampIndex(int(f), len(s))
		}
	}

	for i := start; i < end; i++ {
		if types.Compare(s[i], args[1]) == types.Equal {
			return int64(i), nil
		}
	}

	return int64(-1), nil
}

func arraySlice(args []any, _ *Context) (any, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, ErrArity("$slice", args)
	}

	a, ok := asArray(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$slice requires an array")
	}

	s := a.Slice()
	n := len(s)

	if len(args) == 2 {
		count, ok := Numeric(args[1])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$slice count must be numeric")
		}

		if count >= 0 {
			return types.MustNewArray(s[:clampIndex(int(count), n)]...), nil
		}

		start := clampIndex(n+int(count), n)

		return types.MustNewArray(s[start:]...), nil
	}

	pos, ok1 := Numeric(args[1])
	count, ok2 := Numeric(args[2])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$slice position/count must be numeric")
	}

	start := int(pos)
	if start < 0 {
		start = clampIndex(n+start, n)
	} else {
		start = clampIndex(start, n)
	}

	end := clampIndex(start+int(count), n)

	return types.MustNewArray(s[start:end]...), nil
}

func arrayIn(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$in", args)
	}

	a, ok := asArray(args[1])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$in requires an array as its second argument")
	}

	for _, v := range a.Slice() {
		if types.Compare(v, args[0]) == types.Equal {
			return true, nil
		}
	}

	return false, nil
}

// variadicExtreme implements the expression-language $min/$max, which
// (unlike the $group accumulators of the same name) take a variadic
// list of already-evaluated expressions and return the one that
// compares furthest in the given direction, skipping Null/Missing.
func variadicExtreme(want types.CompareResult) Func {
	return func(args []any, _ *Context) (any, error) {
		var best any = types.Missing

		for _, a := range args {
			if IsNullish(a) {
				continue
			}

			if types.IsMissing(best) || types.Compare(a, best) == want {
				best = a
			}
		}

		if types.IsMissing(best) {
			return nil, nil
		}

		return best, nil
	}
}
