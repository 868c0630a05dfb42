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
	"github.com/memagg/memagg/internal/handler/commonpath"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

func init() {
	register("$lookup", newLookupStage)
}

// lookupStage implements $lookup: for each
// upstream document it joins against a named in-memory collection,
// either by equality on localField/foreignField or by running a full
// sub-pipeline with "let"-bound variables, and assigns the (always
// array-valued) result to "as".
type lookupStage struct {
	from string
	as   string

	// equality-join form
	localField   types.Path
	foreignField types.Path

	// pipeline form: the pipeline is recompiled per joined document
	// when "let" is present, since its variable bindings are
	// per-document; subStage caches the compiled chain for the common
	// case of no "let" at all.
	let      map[string]aggregations.Expression
	pipeline *types.Array
	subStage []Stage

	ctx *Context
}

func newLookupStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageLookupInvalid, "$lookup requires a document")
	}

	fromRaw, err := doc.Get("from")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageLookupInvalid, "$lookup requires 'from'")
	}

	from, ok := fromRaw.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageLookupInvalid, "'from' must be a string")
	}

	asRaw, err := doc.Get("as")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageLookupInvalid, "$lookup requires 'as'")
	}

	as, ok := asRaw.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageLookupInvalid, "'as' must be a string")
	}

	s := &lookupStage{from: from, as: as, ctx: ctx}

	localRaw, localErr := doc.Get("localField")
	foreignRaw, foreignErr := doc.Get("foreignField")

	if localErr == nil && foreignErr == nil {
		localStr, ok1 := localRaw.(string)
		foreignStr, ok2 := foreignRaw.(string)

		if !ok1 || !ok2 {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageLookupInvalid, "'localField'/'foreignField' must be strings")
		}

		s.localField = types.NewPathFromString(localStr)
		s.foreignField = types.NewPathFromString(foreignStr)
	}

	if letRaw, err := doc.Get("let"); err == nil {
		letDoc, ok := letRaw.(*types.Document)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageLookupInvalid, "'let' must be a document")
		}

		s.let = make(map[string]aggregations.Expression, letDoc.Len())

		for _, k := range letDoc.Keys() {
			v, _ := letDoc.Get(k)

			expr, err := aggregations.NewExpression(v)
			if err != nil {
				return nil, err
			}

			s.let[k] = expr
		}
	}

	if pipeRaw, err := doc.Get("pipeline"); err == nil {
		pipeArr, ok := pipeRaw.(*types.Array)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageLookupInvalid, "'pipeline' must be an array")
		}

		s.pipeline = pipeArr

		if len(s.let) == 0 {
			subStages, err := Build(pipeArr, ctx)
			if err != nil {
				return nil, err
			}

			s.subStage = subStages
		}
	}

	if s.pipeline == nil && s.let == nil && (s.localField.Len() == 0 || s.foreignField.Len() == 0) {
		return nil, handlererrors.NewCommandErrorMsg(
			handlererrors.ErrStageLookupInvalid,
			"$lookup requires either 'localField'/'foreignField' or 'let'/'pipeline'",
		)
	}

	return s, nil
}

// Process implements Stage: $lookup streams, one join per upstream
// document; the foreign collection itself is read wholesale from
// ctx.Collections on every call, matching the in-memory, no-index
// execution model the rest of the runtime uses.
func (s *lookupStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	return iterator.ForFunc(func() (int, *types.Document, error) {
		i, doc, err := upstream.Next()
		if err != nil {
			return 0, nil, err
		}

		matches, err := s.join(doc)
		if err != nil {
			return 0, nil, err
		}

		out := doc.DeepCopy()

		arr := types.MakeArray(len(matches))
		for _, m := range matches {
			_ = arr.Append(m)
		}

		if err := out.Set(s.as, arr); err != nil {
			return 0, nil, err
		}

		return i, out, nil
	}), nil
}

func (s *lookupStage) join(doc *types.Document) ([]*types.Document, error) {
	foreign := s.ctx.Collections[s.from]

	if s.pipeline != nil {
		return s.joinPipeline(doc, foreign)
	}

	localVal := commonpath.Resolve(doc, s.localField)

	var out []*types.Document

	for _, fdoc := range foreign {
		foreignVal := commonpath.Resolve(fdoc, s.foreignField)

		if lookupEquals(localVal, foreignVal) {
			out = append(out, fdoc)
		}
	}

	return out, nil
}

// lookupEquals implements the equality-join form's matching rule: a
// local array value matches if any of its elements equals the foreign
// value.
func lookupEquals(local, foreign any) bool {
	if arr, ok := local.(*types.Array); ok {
		for _, elem := range arr.Slice() {
			if types.Compare(elem, foreign) == types.Equal {
				return true
			}
		}

		return false
	}

	return types.Compare(local, foreign) == types.Equal
}

func (s *lookupStage) joinPipeline(doc *types.Document, foreign []*types.Document) ([]*types.Document, error) {
	subStages := s.subStage

	if len(s.let) > 0 {
		evalCtx := s.ctx.Eval
		frame := aggregations.NewFrame(doc, evalCtx)
		vars := map[string]any{}

		for k, v := range evalCtx.Variables {
			vars[k] = v
		}

		for name, expr := range s.let {
			v, err := expr.Evaluate(frame)
			if err != nil {
				return nil, err
			}

			vars[name] = v
		}

		cp := *evalCtx
		cp.Variables = vars

		subCtx := *s.ctx
		subCtx.Eval = &cp

		built, err := Build(s.pipeline, &subCtx)
		if err != nil {
			return nil, err
		}

		subStages = built
	}

	upstream := sliceDocsIterator(foreign)

	out, closer, err := Chain(upstream, subStages)
	if err != nil {
		return nil, err
	}

	defer closer()

	return drain(out)
}
