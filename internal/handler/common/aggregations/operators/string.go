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
	"strings"
	"unicode/utf8"

	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

func init() {
	Register("$concat", stringConcat)
	Register("$toUpper", stringUnary(strings.ToUpper))
	Register("$toLower", stringUnary(strings.ToLower))
	Register("$trim", stringTrim(strings.TrimSpace, strings.Trim))
	Register("$ltrim", stringTrim(func(s string) string { return strings.TrimLeft(s, " \t\n\r") }, strings.TrimLeft))
	Register("$rtrim", stringTrim(func(s string) string { return strings.TrimRight(s, " \t\n\r") }, strings.TrimRight))
	Register("$split", stringSplit)
	Register("$strLenCP", stringLenCP)
	Register("$strLenBytes", stringLenBytes)
	Register("$substrCP", stringSubstrCP)
	Register("$substrBytes", stringSubstrBytes)
	Register("$substr", stringSubstrCP)
	Register("$indexOfCP", stringIndexOfCP)
	Register("$replaceOne", stringReplace(1))
	Register("$replaceAll", stringReplace(-1))
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func stringConcat(args []any, _ *Context) (any, error) {
	var b strings.Builder

	for _, a := range args {
		if IsNullish(a) {
			return nil, nil
		}

		s, ok := asString(a)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$concat only supports strings")
		}

		b.WriteString(s)
	}

	return b.String(), nil
}

func stringUnary(fn func(string) string) Func {
	return func(args []any, _ *Context) (any, error) {
		if len(args) != 1 {
			return nil, ErrArity("unary string operator", args)
		}

		if IsNullish(args[0]) {
			return nil, nil
		}

		s, ok := asString(args[0])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "operator only supports strings")
		}

		return fn(s), nil
	}
}

func stringTrim(noArgCutset func(string) string, withCutset func(string, string) string) Func {
	return func(args []any, _ *Context) (any, error) {
		if len(args) != 1 && len(args) != 2 {
			return nil, ErrArity("trim operator", args)
		}

		if IsNullish(args[0]) {
			return nil, nil
		}

		s, ok := asString(args[0])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "trim input must be a string")
		}

		if len(args) == 1 || IsNullish(args[1]) {
			return noArgCutset(s), nil
		}

		cutset, ok := asString(args[1])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "trim chars must be a string")
		}

		return withCutset(s, cutset), nil
	}
}

func stringSplit(args []any, _ *Context) (any, error) {
	if len(args) != 2 {
		return nil, ErrArity("$split", args)
	}

	if IsNullish(args[0]) || IsNullish(args[1]) {
		return nil, nil
	}

	s, ok1 := asString(args[0])
	sep, ok2 := asString(args[1])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$split only supports strings")
	}

	parts := strings.Split(s, sep)
	arr := types.MustNewArray()

	for _, p := range parts {
		_ = arr.Append(p)
	}

	return arr, nil
}

func stringLenCP(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$strLenCP", args)
	}

	s, ok := asString(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$strLenCP requires a string")
	}

	return int64(utf8.RuneCountInString(s)), nil
}

func stringLenBytes(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$strLenBytes", args)
	}

	s, ok := asString(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$strLenBytes requires a string")
	}

	return int64(len(s)), nil
}

func stringSubstrCP(args []any, _ *Context) (any, error) {
	if len(args) != 3 {
		return nil, ErrArity("$substrCP", args)
	}

	s, ok := asString(args[0])
	if !ok {
		if IsNullish(args[0]) {
			return nil, nil
		}

		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$substrCP requires a string")
	}

	start, ok1 := Numeric(args[1])
	length, ok2 := Numeric(args[2])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$substrCP offsets must be numeric")
	}

	runes := []rune(s)
	si := clampIndex(int(start), len(runes))
	ei := clampIndex(int(start)+int(length), len(runes))

	if ei < si {
		ei = si
	}

	return string(runes[si:ei]), nil
}

func stringSubstrBytes(args []any, _ *Context) (any, error) {
	if len(args) != 3 {
		return nil, ErrArity("$substrBytes", args)
	}

	s, ok := asString(args[0])
	if !ok {
		if IsNullish(args[0]) {
			return nil, nil
		}

		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$substrBytes requires a string")
	}

	start, ok1 := Numeric(args[1])
	length, ok2 := Numeric(args[2])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$substrBytes offsets must be numeric")
	}

	si := clampIndex(int(start), len(s))
	ei := clampIndex(int(start)+int(length), len(s))

	if ei < si {
		ei = si
	}

	return s[si:ei], nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}

	if i > n {
		return n
	}

	return i
}

func stringIndexOfCP(args []any, _ *Context) (any, error) {
	if len(args) < 2 || len(args) > 4 {
		return nil, ErrArity("$indexOfCP", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	s, ok1 := asString(args[0])
	sub, ok2 := asString(args[1])

	if !ok1 || !ok2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$indexOfCP only supports strings")
	}

	runes := []rune(s)
	start := 0

	if len(args) >= 3 {
		f, ok := Numeric(args[2])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$indexOfCP start must be numeric")
		}

		start = clampIndex(int(f), len(runes))
	}

	end := len(runes)

	if len(args) == 4 {
		f, ok := Numeric(args[3])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$indexOfCP end must be numeric")
		}

		end = clampIndex(int(f), len(runes))
	}

	if start > end {
		return int64(-1), nil
	}

	idx := strings.Index(string(runes[start:end]), sub)
	if idx < 0 {
		return int64(-1), nil
	}

	return int64(start + utf8.RuneCountInString(string(runes[start:end])[:idx])), nil
}

func stringReplace(n int) Func {
	return func(args []any, _ *Context) (any, error) {
		if len(args) != 3 {
			return nil, ErrArity("replace operator", args)
		}

		if IsNullish(args[0]) {
			return nil, nil
		}

		s, ok1 := asString(args[0])
		find, ok2 := asString(args[1])
		repl, ok3 := asString(args[2])

		if !ok1 || !ok2 || !ok3 {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "replace operator only supports strings")
		}

		return strings.Replace(s, find, repl, n), nil
	}
}
