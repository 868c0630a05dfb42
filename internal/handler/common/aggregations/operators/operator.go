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

// Package operators is the catalog of leaf expression operators:
// arithmetic, string, array, set, type-conversion, date, and
// trigonometric functions that operate on already-evaluated arguments.
// Operators whose semantics require controlling evaluation of their own
// operands ($cond, $ifNull, $switch, $and, $or, $let, $map, $filter,
// $reduce, $zip) live one level up, in the aggregations package, since
// they need access to the expression tree and evaluation frame that
// this package intentionally doesn't depend on (to keep the dependency
// graph acyclic: aggregations imports operators, never the reverse).
package operators

import (
	"fmt"
	"strings"

	"github.com/memagg/memagg/internal/collation"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

// LooksLikeCall reports whether name has the shape of an expression
// operator name ("$" followed by a non-empty identifier with no further
// dots), the syntactic test that decides whether a
// single-key document is a Call rather than a literal document.
func LooksLikeCall(name string) bool {
	return strings.HasPrefix(name, "$") && len(name) > 1 && !strings.Contains(name, ".")
}

// Context carries the construction-time options a leaf operator might
// need: collation for string comparisons, and the identity field name.
type Context struct {
	Collator collation.Collator
	IDKey    string
}

// Func is the shape of every registered operator: given its
// already-evaluated, positional arguments, produce a result.
type Func func(args []any, ctx *Context) (any, error)

var registry = map[string]Func{}

// Register adds name to the operator table. Called from each family's
// init function; panics on duplicate registration, since that can only
// be a programming error.
func Register(name string, fn Func) {
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("operators: duplicate registration for %s", name))
	}

	registry[name] = fn
}

// Lookup returns the operator registered under name, if any.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]

	return fn, ok
}

// IsRegistered reports whether name is a known operator. Used by the
// evaluator to reject an unknown operator name before evaluating its
// arguments.
func IsRegistered(name string) bool {
	_, ok := registry[name]

	return ok
}

// Dispatch evaluates the operator named name against already-evaluated
// args.
func Dispatch(name string, args []any, ctx *Context) (any, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrOperatorInvalid,
			fmt.Sprintf("unknown expression operator %q", name),
			name,
		)
	}

	return fn(args, ctx)
}

// ErrArity returns a standard wrong-arity CommandError for name,
// reporting the arguments actually received.
func ErrArity(name string, args []any) error {
	return handlererrors.NewCommandErrorMsgWithArgument(
		handlererrors.ErrOperatorWrongLenOfArgs,
		fmt.Sprintf("%s has the wrong number of arguments (%d provided)", name, len(args)),
		name,
	)
}

// Numeric converts v to a float64 for the arithmetic operators; it does
// not report v's original numeric type (callers that keep integer
// results integral inspect the argument themselves). ok is false for
// non-numeric values (the caller then decides whether to propagate
// Null or raise a type-mismatch error).
func Numeric(v any) (f float64, ok bool) {
	return types.ToFloat64(v)
}

// IsNullish reports whether v is Null or Missing, the inputs that make
// most arithmetic, string, and date operators return Null. The
// comparison operators do not use it.
func IsNullish(v any) bool {
	return types.IsNull(v) || types.IsMissing(v)
}
