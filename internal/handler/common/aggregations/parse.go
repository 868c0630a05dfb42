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
	"strings"

	"github.com/memagg/memagg/internal/handler/common/aggregations/operators"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

// NewExpression parses a raw Value into an Expression tree: a single
// recursive descent over the document/array shape of
// raw, performed once at pipeline-construction time so the same tree
// can be evaluated against every document in the stream.
func NewExpression(raw any) (Expression, error) {
	switch v := raw.(type) {
	case *types.Document:
		return parseDocument(v)

	case *types.Array:
		elems := make([]Expression, v.Len())

		for i, e := range v.Slice() {
			expr, err := NewExpression(e)
			if err != nil {
				return nil, err
			}

			elems[i] = expr
		}

		return &arrayExpr{elements: elems}, nil

	case string:
		return parseStringExpr(v), nil

	default:
		return &literalExpr{value: raw}, nil
	}
}

func parseStringExpr(s string) Expression {
	if !strings.HasPrefix(s, "$") {
		return &literalExpr{value: s}
	}

	if strings.HasPrefix(s, "$$") {
		parts := strings.Split(s[2:], ".")

		return &fieldRefExpr{variable: parts[0], path: parts[1:]}
	}

	return &fieldRefExpr{path: strings.Split(s[1:], ".")}
}

// parseDocument decides whether doc is a DocumentExpr
// (the general case) or a Call (exactly one key, and that key is
// "$"-prefixed).
func parseDocument(doc *types.Document) (Expression, error) {
	if doc.Len() == 1 {
		key := doc.Keys()[0]

		if operators.LooksLikeCall(key) {
			val, _ := doc.Get(key)

			return parseCall(key, val)
		}
	}

	keys := doc.Keys()
	values := make([]Expression, len(keys))

	for i, k := range keys {
		raw, _ := doc.Get(k)

		expr, err := NewExpression(raw)
		if err != nil {
			return nil, err
		}

		values[i] = expr
	}

	return &documentExpr{keys: keys, values: values}, nil
}

// keywordArgOrder lists, for operators invoked in keyword-document form
// (e.g. {$dateToString: {date: ..., format: ...}}), the positional
// order their registered Func expects its evaluated arguments in.
var keywordArgOrder = map[string][]string{
	"$dateToString": {"date", "format"},
	"$dateToParts":  {"date", "iso8601"},
	"$convert":      {"input", "to", "onError", "onNull"},
	"$dateAdd":      {"startDate", "unit", "amount"},
	"$dateSubtract": {"startDate", "unit", "amount"},
	"$trim":         {"input", "chars"},
	"$ltrim":        {"input", "chars"},
	"$rtrim":        {"input", "chars"},
}

func parseCall(name string, val any) (Expression, error) {
	if name == "$literal" {
		return &literalExpr{value: val}, nil
	}

	switch name {
	case "$cond":
		return parseCond(val)
	case "$ifNull":
		return parseVariadicExprs(val, func(exprs []Expression) Expression { return &ifNullExpr{exprs: exprs} })
	case "$and":
		return parseVariadicExprs(val, func(exprs []Expression) Expression { return &andExpr{exprs: exprs} })
	case "$or":
		return parseVariadicExprs(val, func(exprs []Expression) Expression { return &orExpr{exprs: exprs} })
	case "$switch":
		return parseSwitch(val)
	case "$let":
		return parseLet(val)
	case "$map":
		return parseMap(val)
	case "$filter":
		return parseFilter(val)
	case "$reduce":
		return parseReduce(val)
	case "$zip":
		return parseZip(val)
	case "$function":
		return parseFunction(val)
	case "$range":
		return parseVariadicExprs(val, func(exprs []Expression) Expression {
			r := &rangeExpr{}

			if len(exprs) > 0 {
				r.start = exprs[0]
			}

			if len(exprs) > 1 {
				r.end = exprs[1]
			}

			if len(exprs) > 2 {
				r.step = exprs[2]
			}

			return r
		})
	}

	args, err := parseCallArgs(name, val)
	if err != nil {
		return nil, err
	}

	return &callExpr{name: name, args: args}, nil
}

// parseCallArgs builds the positional argument list for a leaf
// operator, from either an array (already positional), a keyword
// document (translated via keywordArgOrder), or a single bare value
// (treated as the operator's sole argument).
func parseCallArgs(name string, val any) ([]Expression, error) {
	switch v := val.(type) {
	case *types.Array:
		args := make([]Expression, v.Len())

		for i, e := range v.Slice() {
			expr, err := NewExpression(e)
			if err != nil {
				return nil, err
			}

			args[i] = expr
		}

		return args, nil

	case *types.Document:
		if order, ok := keywordArgOrder[name]; ok {
			args := make([]Expression, len(order))

			for i, k := range order {
				raw, err := v.Get(k)
				if err != nil {
					args[i] = &literalExpr{value: types.Missing}

					continue
				}

				expr, err := NewExpression(raw)
				if err != nil {
					return nil, err
				}

				args[i] = expr
			}

			return args, nil
		}

		expr, err := parseDocument(v)
		if err != nil {
			return nil, err
		}

		return []Expression{expr}, nil

	default:
		expr, err := NewExpression(v)
		if err != nil {
			return nil, err
		}

		return []Expression{expr}, nil
	}
}

func parseVariadicExprs(val any, build func([]Expression) Expression) (Expression, error) {
	arr, ok := val.(*types.Array)
	if !ok {
		expr, err := NewExpression(val)
		if err != nil {
			return nil, err
		}

		return build([]Expression{expr}), nil
	}

	exprs := make([]Expression, arr.Len())

	for i, e := range arr.Slice() {
		expr, err := NewExpression(e)
		if err != nil {
			return nil, err
		}

		exprs[i] = expr
	}

	return build(exprs), nil
}

func parseCond(val any) (Expression, error) {
	var rawIf, rawThen, rawElse any

	switch v := val.(type) {
	case *types.Array:
		if v.Len() != 3 {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$cond requires exactly 3 arguments")
		}

		rawIf, _ = v.Get(0)
		rawThen, _ = v.Get(1)
		rawElse, _ = v.Get(2)

	case *types.Document:
		var err error

		if rawIf, err = v.Get("if"); err != nil {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$cond requires an 'if' field")
		}

		if rawThen, err = v.Get("then"); err != nil {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$cond requires a 'then' field")
		}

		if rawElse, err = v.Get("else"); err != nil {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$cond requires an 'else' field")
		}

	default:
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$cond requires an array or document")
	}

	ifExpr, err := NewExpression(rawIf)
	if err != nil {
		return nil, err
	}

	thenExpr, err := NewExpression(rawThen)
	if err != nil {
		return nil, err
	}

	elseExpr, err := NewExpression(rawElse)
	if err != nil {
		return nil, err
	}

	return &condExpr{if_: ifExpr, then: thenExpr, else_: elseExpr}, nil
}

func parseSwitch(val any) (Expression, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$switch requires a document")
	}

	rawBranches, err := doc.Get("branches")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$switch requires 'branches'")
	}

	branchArr, ok := rawBranches.(*types.Array)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$switch 'branches' must be an array")
	}

	branches := make([]switchBranch, branchArr.Len())

	for i, raw := range branchArr.Slice() {
		bDoc, ok := raw.(*types.Document)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$switch branch must be a document")
		}

		rawCase, err := bDoc.Get("case")
		if err != nil {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$switch branch requires 'case'")
		}

		rawThen, err := bDoc.Get("then")
		if err != nil {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$switch branch requires 'then'")
		}

		caseExpr, err := NewExpression(rawCase)
		if err != nil {
			return nil, err
		}

		thenExpr, err := NewExpression(rawThen)
		if err != nil {
			return nil, err
		}

		branches[i] = switchBranch{case_: caseExpr, then: thenExpr}
	}

	var defaultExpr Expression

	if rawDefault, err := doc.Get("default"); err == nil {
		defaultExpr, err = NewExpression(rawDefault)
		if err != nil {
			return nil, err
		}
	}

	return &switchExpr{branches: branches, default_: defaultExpr}, nil
}

func parseLet(val any) (Expression, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$let requires a document")
	}

	rawVars, err := doc.Get("vars")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$let requires 'vars'")
	}

	varsDoc, ok := rawVars.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$let 'vars' must be a document")
	}

	rawIn, err := doc.Get("in")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$let requires 'in'")
	}

	names := varsDoc.Keys()
	exprs := make([]Expression, len(names))

	for i, n := range names {
		raw, _ := varsDoc.Get(n)

		expr, err := NewExpression(raw)
		if err != nil {
			return nil, err
		}

		exprs[i] = expr
	}

	inExpr, err := NewExpression(rawIn)
	if err != nil {
		return nil, err
	}

	return &letExpr{varNames: names, varExprs: exprs, in: inExpr}, nil
}

func parseMap(val any) (Expression, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$map requires a document")
	}

	rawInput, err := doc.Get("input")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$map requires 'input'")
	}

	rawIn, err := doc.Get("in")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$map requires 'in'")
	}

	as := "this"

	if rawAs, err := doc.Get("as"); err == nil {
		if s, ok := rawAs.(string); ok {
			as = s
		}
	}

	inputExpr, err := NewExpression(rawInput)
	if err != nil {
		return nil, err
	}

	inExpr, err := NewExpression(rawIn)
	if err != nil {
		return nil, err
	}

	return &mapExpr{input: inputExpr, as: as, in: inExpr}, nil
}

func parseFilter(val any) (Expression, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$filter requires a document")
	}

	rawInput, err := doc.Get("input")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$filter requires 'input'")
	}

	rawCond, err := doc.Get("cond")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$filter requires 'cond'")
	}

	as := "this"

	if rawAs, err := doc.Get("as"); err == nil {
		if s, ok := rawAs.(string); ok {
			as = s
		}
	}

	inputExpr, err := NewExpression(rawInput)
	if err != nil {
		return nil, err
	}

	condExprV, err := NewExpression(rawCond)
	if err != nil {
		return nil, err
	}

	var limitExpr Expression

	if rawLimit, err := doc.Get("limit"); err == nil {
		limitExpr, err = NewExpression(rawLimit)
		if err != nil {
			return nil, err
		}
	}

	return &filterExpr{input: inputExpr, as: as, cond: condExprV, limit: limitExpr}, nil
}

func parseReduce(val any) (Expression, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$reduce requires a document")
	}

	rawInput, err := doc.Get("input")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$reduce requires 'input'")
	}

	rawInitial, err := doc.Get("initialValue")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$reduce requires 'initialValue'")
	}

	rawIn, err := doc.Get("in")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$reduce requires 'in'")
	}

	inputExpr, err := NewExpression(rawInput)
	if err != nil {
		return nil, err
	}

	initialExpr, err := NewExpression(rawInitial)
	if err != nil {
		return nil, err
	}

	inExpr, err := NewExpression(rawIn)
	if err != nil {
		return nil, err
	}

	return &reduceExpr{input: inputExpr, initial: initialExpr, in: inExpr}, nil
}

func parseFunction(val any) (Expression, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$function requires a document")
	}

	bodyRaw, err := doc.Get("body")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$function requires 'body'")
	}

	body, ok := bodyRaw.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$function 'body' must be a string")
	}

	if langRaw, err := doc.Get("lang"); err == nil {
		if lang, ok := langRaw.(string); !ok || lang != "js" {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$function 'lang' must be \"js\"")
		}
	}

	var args []Expression

	if argsRaw, err := doc.Get("args"); err == nil {
		argsArr, ok := argsRaw.(*types.Array)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$function 'args' must be an array")
		}

		args = make([]Expression, argsArr.Len())

		for i, raw := range argsArr.Slice() {
			expr, err := NewExpression(raw)
			if err != nil {
				return nil, err
			}

			args[i] = expr
		}
	}

	return &functionExpr{body: body, args: args}, nil
}

func parseZip(val any) (Expression, error) {
	doc, ok := val.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$zip requires a document")
	}

	rawInputs, err := doc.Get("inputs")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$zip requires 'inputs'")
	}

	inputsArr, ok := rawInputs.(*types.Array)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$zip 'inputs' must be an array")
	}

	inputs := make([]Expression, inputsArr.Len())

	for i, raw := range inputsArr.Slice() {
		expr, err := NewExpression(raw)
		if err != nil {
			return nil, err
		}

		inputs[i] = expr
	}

	useLongest := false

	if rawULL, err := doc.Get("useLongestLength"); err == nil {
		if b, ok := rawULL.(bool); ok {
			useLongest = b
		}
	}

	var defaults []Expression

	if rawDefaults, err := doc.Get("defaults"); err == nil {
		defArr, ok := rawDefaults.(*types.Array)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$zip 'defaults' must be an array")
		}

		defaults = make([]Expression, defArr.Len())

		for i, raw := range defArr.Slice() {
			expr, err := NewExpression(raw)
			if err != nil {
				return nil, err
			}

			defaults[i] = expr
		}
	}

	return &zipExpr{inputs: inputs, useLongestLength: useLongest, defaults: defaults}, nil
}
