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

package stages

import (
	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

func init() {
	register("$group", newGroupStage)
}

// groupField is one output field of a $group stage, other than _id:
// the single accumulator operator applied to one expression
// ({field: {$op: expr}}).
type groupField struct {
	key  string
	op   string
	expr aggregations.Expression
}

type groupStage struct {
	idExpr  aggregations.Expression
	fields  []groupField
	evalCtx *aggregations.EvalContext
}

func newGroupStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGroupID, "$group requires a document")
	}

	idRaw, err := doc.Get("_id")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGroupID, "$group requires an '_id' specification")
	}

	idExpr, err := aggregations.NewExpression(idRaw)
	if err != nil {
		return nil, err
	}

	s := &groupStage{idExpr: idExpr, evalCtx: ctx.Eval}

	for _, key := range doc.Keys() {
		if key == "_id" {
			continue
		}

		raw, _ := doc.Get(key)

		accDoc, ok := raw.(*types.Document)
		if !ok || accDoc.Len() != 1 {
			return nil, handlererrors.NewCommandErrorMsg(
				handlererrors.ErrStageGroupUnaryOperator, "a $group field must be a single accumulator operator",
			)
		}

		op := accDoc.Keys()[0]
		argRaw, _ := accDoc.Get(op)

		var argExpr aggregations.Expression

		if op == "$count" {
			argExpr = nil
		} else {
			argExpr, err = aggregations.NewExpression(argRaw)
			if err != nil {
				return nil, err
			}
		}

		if _, err := newAccumulator(op); err != nil {
			return nil, err
		}

		s.fields = append(s.fields, groupField{key: key, op: op, expr: argExpr})
	}

	return s, nil
}

// Process implements Stage: $group blocks, draining upstream, hashing
// every document to its _id key (types.CanonicalKey, so numerically
// equal _id values collapse into one group), and folding each group's
// fields through a fresh accumulator per field.
func (s *groupStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	docs, err := drain(upstream)
	if err != nil {
		return nil, err
	}

	type group struct {
		id   any
		accs []accumulator
	}

	order := make([]string, 0)
	groups := make(map[string]*group)
	memo := aggregations.NewMemo()

	for _, d := range docs {
		frame := aggregations.NewMemoFrame(d, s.evalCtx, memo)

		idVal, err := aggregations.Evaluate(s.idExpr, frame)
		if err != nil {
			return nil, err
		}

		// An unresolvable _id expression groups under null; Missing
		// never enters a container.
		if types.IsMissing(idVal) {
			idVal = types.Null
		}

		key := types.CanonicalKey(idVal)

		// A string _id joins an existing string group the collation
		// considers equal to it.
		if str, ok := idVal.(string); ok && s.evalCtx != nil && s.evalCtx.Collator != nil {
			for _, k := range order {
				if gs, ok := groups[k].id.(string); ok && s.evalCtx.Collator.Compare(str, gs) == 0 {
					key = k

					break
				}
			}
		}

		g, ok := groups[key]
		if !ok {
			accs := make([]accumulator, len(s.fields))

			for i, f := range s.fields {
				acc, err := newAccumulator(f.op)
				if err != nil {
					return nil, err
				}

				accs[i] = acc
			}

			g = &group{id: idVal, accs: accs}
			groups[key] = g
			order = append(order, key)
		}

		for i, f := range s.fields {
			var v any

			if f.expr != nil {
				v, err = aggregations.Evaluate(f.expr, frame)
				if err != nil {
					return nil, err
				}
			}

			g.accs[i].Add(v)
		}
	}

	out := make([]*types.Document, 0, len(order))

	for _, key := range order {
		g := groups[key]

		doc, err := types.NewDocument("_id", g.id)
		if err != nil {
			return nil, err
		}

		for i, f := range s.fields {
			res := g.accs[i].Result()

			// $first/$last of an absent field: the output key is
			// omitted, since Missing cannot be stored.
			if types.IsMissing(res) {
				continue
			}

			if err := doc.Set(f.key, res); err != nil {
				return nil, err
			}
		}

		out = append(out, doc)
	}

	return sliceDocsIterator(out), nil
}
