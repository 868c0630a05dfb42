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
	"math"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/memagg/memagg/internal/handler/handlererrors"
)

func init() {
	Register("$add", arithAdd)
	Register("$subtract", arithSubtract)
	Register("$multiply", arithMultiply)
	Register("$divide", arithDivide)
	Register("$mod", arithMod)
	Register("$abs", arithUnary(math.Abs))
	Register("$ceil", arithUnary(math.Ceil))
	Register("$floor", arithUnary(math.Floor))
	Register("$sqrt", arithUnary(math.Sqrt))
	Register("$exp", arithUnary(math.Exp))
	Register("$ln", arithUnary(math.Log))
	Register("$log10", arithUnary(math.Log10))
	Register("$pow", arithPow)
	Register("$round", arithRound)
	Register("$trunc", arithTrunc)
}

// isIntegral reports whether v is one of the integer Value types, so
// the basic arithmetic operators can keep all-integer inputs in int64
// instead of widening everything to float64.
func isIntegral(v any) bool {
	switch v.(type) {
	case int32, int64:
		return true
	default:
		return false
	}
}

func arithAdd(args []any, _ *Context) (any, error) {
	sum := 0.0
	allInt := true

	var date *bson.DateTime

	for _, a := range args {
		if IsNullish(a) {
			return nil, nil
		}

		if dt, ok := a.(bson.DateTime); ok {
			if date != nil {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$add accepts at most one date")
			}

			date = &dt

			continue
		}

		f, ok := Numeric(a)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$add only supports numeric types")
		}

		allInt = allInt && isIntegral(a)
		sum += f
	}

	if date != nil {
		return bson.DateTime(int64(*date) + int64(sum)), nil
	}

	if allInt {
		return int64(sum), nil
	}

	return sum, nil
}

func arithSubtract(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$subtract", args)
	}

	if IsNullish(args[0]) || IsNullish(args[1]) {
		return nil, nil
	}

	// date - date yields milliseconds; date - number yields a date.
	if da, ok := args[0].(bson.DateTime); ok {
		if db, ok := args[1].(bson.DateTime); ok {
			return int64(da) - int64(db), nil
		}

		if f, ok := Numeric(args[1]); ok {
			return bson.DateTime(int64(da) - int64(f)), nil
		}
	}

	a, ok1 := Numeric(args[0])
	b, ok2 := Numeric(args[1])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$subtract only supports numeric types")
	}

	if isIntegral(args[0]) && isIntegral(args[1]) {
		return int64(a) - int64(b), nil
	}

	return a - b, nil
}

func arithMultiply(args []any, _ *Context) (any, error) {
	product := 1.0
	allInt := true

	for _, a := range args {
		if IsNullish(a) {
			return nil, nil
		}

		f, ok := Numeric(a)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$multiply only supports numeric types")
		}

		allInt = allInt && isIntegral(a)
		product *= f
	}

	if allInt {
		return int64(product), nil
	}

	return product, nil
}

func arithDivide(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$divide", args)
	}

	if IsNullish(args[0]) || IsNullish(args[1]) {
		return nil, nil
	}

	a, ok1 := Numeric(args[0])
	b, ok2 := Numeric(args[1])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$divide only supports numeric types")
	}

	if b == 0 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrDivideByZero, "$divide by zero")
	}

	return a / b, nil
}

func arithMod(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$mod", args)
	}

	if IsNullish(args[0]) || IsNullish(args[1]) {
		return nil, nil
	}

	a, ok1 := Numeric(args[0])
	b, ok2 := Numeric(args[1])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$mod only supports numeric types")
	}

	if b == 0 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrDivideByZero, "$mod by zero")
	}

	return math.Mod(a, b), nil
}

func arithUnary(fn func(float64) float64) Func {
	return func(args []any, _ *Context) (any, error) {
		if len(args) != 1 {
			return nil, ErrArity("unary arithmetic operator", args)
		}

		if IsNullish(args[0]) {
			return nil, nil
		}

		f, ok := Numeric(args[0])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "operator only supports numeric types")
		}

		return fn(f), nil
	}
}

func arithPow(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$pow", args)
	}

	if IsNullish(args[0]) || IsNullish(args[1]) {
		return nil, nil
	}

	a, ok1 := Numeric(args[0])
	b, ok2 := Numeric(args[1])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$pow only supports numeric types")
	}

	return math.Pow(a, b), nil
}

func arithRound(args []any, _ *Context) (any, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, ErrArity("$round", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	f, ok := Numeric(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$round only supports numeric types")
	}

	place := 0.0

	if len(args) == 2 {
		if IsNullish(args[1]) {
			return nil, nil
		}

		place, ok = Numeric(args[1])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$round place must be numeric")
		}
	}

	mul := math.Pow(10, place)

	return math.Round(f*mul) / mul, nil
}

func arithTrunc(args []any, _ *Context) (any, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, ErrArity("$trunc", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	f, ok := Numeric(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$trunc only supports numeric types")
	}

	place := 0.0

	if len(args) == 2 {
		if IsNullish(args[1]) {
			return nil, nil
		}

		place, ok = Numeric(args[1])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$trunc place must be numeric")
		}
	}

	mul := math.Pow(10, place)

	return math.Trunc(f*mul) / mul, nil
}
