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

import "github.com/memagg/memagg/internal/types"

func init() {
	Register("$cmp", comparisonCmp)
	Register("$eq", comparisonOp(func(c types.CompareResult) bool { return c == types.Equal }))
	Register("$ne", comparisonOp(func(c types.CompareResult) bool { return c != types.Equal }))
	Register("$gt", comparisonOp(func(c types.CompareResult) bool { return c == types.Greater }))
	Register("$gte", comparisonOp(func(c types.CompareResult) bool { return c != types.Less }))
	Register("$lt", comparisonOp(func(c types.CompareResult) bool { return c == types.Less }))
	Register("$lte", comparisonOp(func(c types.CompareResult) bool { return c != types.Greater }))
}

// comparisonCmp implements $cmp, returning -1, 0, or 1 regardless of
// Null/Missing (comparison operators, unlike arithmetic, never
// short-circuit: Null and Missing have a well-defined place in the
// canonical type order).
func comparisonCmp(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$cmp", args)
	}

	switch types.Compare(args[0], args[1]) {
	case types.Less:
		return int32(-1), nil
	case types.Greater:
		return int32(1), nil
	default:
		return int32(0), nil
	}
}

func comparisonOp(pred func(types.CompareResult) bool) Func {
	return func(args []any, _ *Context) (any, error) {
		if len(args) != 2 {
			return nil, ErrArity("comparison operator", args)
		}

		return pred(types.Compare(args[0], args[1])), nil
	}
}
