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

package query

import (
	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

// Compile parses spec into a Predicate. spec's top level is an implicit
// AND of its fields: a "$"-prefixed key is a logical/script operator
// ($and, $or, $nor, $where, $expr); anything else is a field path whose
// value is either a literal (equality) or an operator document.
func Compile(spec *types.Document, ctx *Context) (Predicate, error) {
	if spec.Len() == 0 {
		return &alwaysPredicate{verdict: true}, nil
	}

	preds := make([]Predicate, 0, spec.Len())

	for _, key := range spec.Keys() {
		raw, _ := spec.Get(key)

		pred, err := compileTopLevel(key, raw, ctx)
		if err != nil {
			return nil, err
		}

		preds = append(preds, pred)
	}

	if len(preds) == 1 {
		return preds[0], nil
	}

	return &andPredicate{preds: preds}, nil
}

func compileTopLevel(key string, raw any, ctx *Context) (Predicate, error) {
	switch key {
	case "$and":
		return compileLogical(raw, ctx, func(preds []Predicate) Predicate { return &andPredicate{preds: preds} })
	case "$or":
		return compileLogical(raw, ctx, func(preds []Predicate) Predicate { return &orPredicate{preds: preds} })
	case "$nor":
		return compileLogical(raw, ctx, func(preds []Predicate) Predicate { return &norPredicate{preds: preds} })
	case "$where":
		return compileWhere(raw, ctx)
	case "$expr":
		return compileExpr(raw, ctx)
	default:
		return compileField(key, raw, ctx)
	}
}

func compileLogical(raw any, ctx *Context, build func([]Predicate) Predicate) (Predicate, error) {
	arr, ok := raw.(*types.Array)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "logical operator requires an array of predicates")
	}

	preds := make([]Predicate, arr.Len())

	for i, e := range arr.Slice() {
		sub, ok := e.(*types.Document)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "logical operator elements must be documents")
		}

		pred, err := Compile(sub, ctx)
		if err != nil {
			return nil, err
		}

		preds[i] = pred
	}

	return build(preds), nil
}

func compileWhere(raw any, ctx *Context) (Predicate, error) {
	if ctx == nil || !ctx.ScriptEnabled {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrScriptDisabled, "$where requires scriptEnabled")
	}

	source, ok := raw.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$where requires a string")
	}

	return &wherePredicate{source: source, ctx: ctx}, nil
}

type wherePredicate struct {
	source string
	ctx    *Context
}

func (p *wherePredicate) Matches(doc *types.Document) (bool, error) {
	v, err := p.ctx.Script(p.source, []any{doc})
	if err != nil {
		return false, err
	}

	return types.Truthy(v), nil
}

func compileExpr(raw any, ctx *Context) (Predicate, error) {
	expr, err := aggregations.NewExpression(raw)
	if err != nil {
		return nil, err
	}

	return &exprPredicate{expr: expr, ctx: ctx}, nil
}

type exprPredicate struct {
	expr aggregations.Expression
	ctx  *Context
}

func (p *exprPredicate) Matches(doc *types.Document) (bool, error) {
	f := aggregations.NewFrame(doc, p.ctx.evalContext())

	v, err := p.expr.Evaluate(f)
	if err != nil {
		return false, err
	}

	return types.Truthy(v), nil
}
