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
	Register("$setEquals", setEquals)
	Register("$setUnion", setUnion)
	Register("$setIntersection", setIntersection)
	Register("$setDifference", setDifference)
	Register("$setIsSubset", setIsSubset)
	Register("$anyElementTrue", anyElementTrue)
	Register("$allElementsTrue", allElementsTrue)
}

// dedupe returns the distinct elements of a's Slice, using Compare for
// equality (sets have no defined order, per MongoDB's set operators).
func dedupe(a *types.Array) []any {
	var out []any

	for _, v := range a.Slice() {
		found := false

		for _, o := range out {
			if types.Compare(v, o) == types.Equal {
				found = true

				break
			}
		}

		if !found {
			out = append(out, v)
		}
	}

	return out
}

func contains(set []any, v any) bool {
	for _, o := range set {
		if types.Compare(v, o) == types.Equal {
			return true
		}
	}

	return false
}

func setEquals(args []any, _ *Context) (any, error) {
	if len(args) < 2 {
		return nil, ErrArity("$setEquals", args)
	}

	var first []any

	for i, a := range args {
		arr, ok := asArray(a)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$setEquals only supports arrays")
		}

		set := dedupe(arr)

		if i == 0 {
			first = set

			continue
		}

		if len(set) != len(first) {
			return false, nil
		}

		for _, v := range set {
			if !contains(first, v) {
				return false, nil
			}
		}
	}

	return true, nil
}

func setUnion(args []any, _ *Context) (any, error) {
	var out []any

	for _, a := range args {
		arr, ok := asArray(a)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$setUnion only supports arrays")
		}

		for _, v := range arr.Slice() {
			if !contains(out, v) {
				out = append(out, v)
			}
		}
	}

	return types.MustNewArray(out...), nil
}

func setIntersection(args []any, _ *Context) (any, error) {
	if len(args) == 0 {
		return types.MustNewArray(), nil
	}

	first, ok := asArray(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$setIntersection only supports arrays")
	}

	out := dedupe(first)

	for _, a := range args[1:] {
		arr, ok := asArray(a)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$setIntersection only supports arrays")
		}

		set := dedupe(arr)

		var next []any

		for _, v := range out {
			if contains(set, v) {
				next = append(next, v)
			}
		}

		out = next
	}

	return types.MustNewArray(out...), nil
}

func setDifference(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$setDifference", args)
	}

	a, ok1 := asArray(args[0])
	b, ok2 := asArray(args[1])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$setDifference only supports arrays")
	}

	bSet := dedupe(b)

	var out []any

	for _, v := range dedupe(a) {
		if !contains(bSet, v) {
			out = append(out, v)
		}
	}

	return types.MustNewArray(out...), nil
}

func setIsSubset(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$setIsSubset", args)
	}

	a, ok1 := asArray(args[0])
	b, ok2 := asArray(args[1])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$setIsSubset only supports arrays")
	}

	bSet := dedupe(b)

	for _, v := range a.Slice() {
		if !contains(bSet, v) {
			return false, nil
		}
	}

	return true, nil
}

func anyElementTrue(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$anyElementTrue", args)
	}

	a, ok := asArray(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$anyElementTrue requires an array")
	}

	for _, v := range a.Slice() {
		if types.Truthy(v) {
			return true, nil
		}
	}

	return false, nil
}

func allElementsTrue(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$allElementsTrue", args)
	}

	a, ok := asArray(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$allElementsTrue requires an array")
	}

	for _, v := range a.Slice() {
		if !types.Truthy(v) {
			return false, nil
		}
	}

	return true, nil
}
