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

// $and and $or are short-circuiting and therefore live in the
// aggregations package, which owns the expression tree. $not always
// evaluates its single argument, so it belongs here.
func init() {
	Register("$not", boolNot)
}

func boolNot(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$not", args)
	}

	return !types.Truthy(args[0]), nil
}
