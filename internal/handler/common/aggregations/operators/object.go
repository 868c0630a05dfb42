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
	Register("$isArray", objectIsArray)
	Register("$objectToArray", objectToArray)
	Register("$arrayToObject", arrayToObject)
	Register("$mergeObjects", mergeObjects)
}

func objectIsArray(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$isArray", args)
	}

	_, ok := args[0].(*types.Array)

	return ok, nil
}

func objectToArray(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$objectToArray", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	doc, ok := args[0].(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$objectToArray requires a document")
	}

	out := types.MakeArray(doc.Len())

	for _, k := range doc.Keys() {
		v, _ := doc.Get(k)

		pair, err := types.NewDocument("k", k, "v", v)
		if err != nil {
			return nil, err
		}

		_ = out.Append(pair)
	}

	return out, nil
}

func arrayToObject(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$arrayToObject", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$arrayToObject requires an array")
	}

	out, err := types.NewDocument()
	if err != nil {
		return nil, err
	}

	for _, elem := range arr.Slice() {
		switch e := elem.(type) {
		case *types.Document:
			// {k: ..., v: ...} pair form.
			kRaw, err := e.Get("k")
			if err != nil {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$arrayToObject document elements require 'k' and 'v'")
			}

			k, ok := kRaw.(string)
			if !ok {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$arrayToObject 'k' must be a string")
			}

			v, err := e.Get("v")
			if err != nil {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$arrayToObject document elements require 'k' and 'v'")
			}

			if err := out.Set(k, v); err != nil {
				return nil, err
			}

		case *types.Array:
			// [key, value] pair form.
			if e.Len() != 2 {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$arrayToObject array elements must have exactly 2 elements")
			}

			kRaw, _ := e.Get(0)

			k, ok := kRaw.(string)
			if !ok {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$arrayToObject pair keys must be strings")
			}

			v, _ := e.Get(1)

			if err := out.Set(k, v); err != nil {
				return nil, err
			}

		default:
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$arrayToObject elements must be documents or 2-element arrays")
		}
	}

	return out, nil
}

// mergeObjects is the expression-operator form; the $group accumulator
// of the same name lives with the other accumulators in the stages
// package.
func mergeObjects(args []any, _ *Context) (any, error) {
	out, err := types.NewDocument()
	if err != nil {
		return nil, err
	}

	for _, a := range args {
		if IsNullish(a) {
			continue
		}

		doc, ok := a.(*types.Document)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$mergeObjects only supports documents")
		}

		for _, k := range doc.Keys() {
			v, _ := doc.Get(k)

			if err := out.Set(k, v); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}
