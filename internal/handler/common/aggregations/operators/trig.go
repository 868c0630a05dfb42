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

import "math"

func init() {
	Register("$sin", arithUnary(math.Sin))
	Register("$cos", arithUnary(math.Cos))
	Register("$tan", arithUnary(math.Tan))
	Register("$asin", arithUnary(math.Asin))
	Register("$acos", arithUnary(math.Acos))
	Register("$atan", arithUnary(math.Atan))
	Register("$atan2", arithPow2(math.Atan2))
	Register("$sinh", arithUnary(math.Sinh))
	Register("$cosh", arithUnary(math.Cosh))
	Register("$tanh", arithUnary(math.Tanh))
	Register("$degreesToRadians", arithUnary(func(d float64) float64 { return d * math.Pi / 180 }))
	Register("$radiansToDegrees", arithUnary(func(r float64) float64 { return r * 180 / math.Pi }))
}

func arithPow2(fn func(float64, float64) float64) Func {
	return func(args []any, _ *Context) (any, error) {
		if len(args) != 2 {
			return nil, ErrArity("binary trig operator", args)
		}

		if IsNullish(args[0]) || IsNullish(args[1]) {
			return nil, nil
		}

		a, ok1 := Numeric(args[0])
		b, ok2 := Numeric(args[1])

		if !ok1 || !ok2 {
			return nil, ErrArity("binary trig operator", args)
		}

		return fn(a, b), nil
	}
}
