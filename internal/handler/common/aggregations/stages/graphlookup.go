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
	"github.com/AlekSi/pointer"

	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/handler/commonpath"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

func init() {
	register("$graphLookup", newGraphLookupStage)
}

// graphLookupStage implements $graphLookup: a
// breadth-first traversal of a named collection, following
// connectFromField -> connectToField edges from each starting value,
// with an _id-keyed visited set so cycles terminate the search instead
// of looping forever.
type graphLookupStage struct {
	from        string
	startWith   aggregations.Expression
	connectFrom types.Path
	connectTo   types.Path
	as          string
	maxDepth    *int    // nil: unbounded
	depthField  *string // nil: depth not reported
	ctx         *Context
}

func newGraphLookupStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "$graphLookup requires a document")
	}

	fromRaw, err := doc.Get("from")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "$graphLookup requires 'from'")
	}

	from, ok := fromRaw.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "'from' must be a string")
	}

	startWithRaw, err := doc.Get("startWith")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "$graphLookup requires 'startWith'")
	}

	startWith, err := aggregations.NewExpression(startWithRaw)
	if err != nil {
		return nil, err
	}

	connectFromRaw, err := doc.Get("connectFromField")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "$graphLookup requires 'connectFromField'")
	}

	connectFromStr, ok := connectFromRaw.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "'connectFromField' must be a string")
	}

	connectToRaw, err := doc.Get("connectToField")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "$graphLookup requires 'connectToField'")
	}

	connectToStr, ok := connectToRaw.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "'connectToField' must be a string")
	}

	asRaw, err := doc.Get("as")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "$graphLookup requires 'as'")
	}

	as, ok := asRaw.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "'as' must be a string")
	}

	s := &graphLookupStage{
		from:        from,
		startWith:   startWith,
		connectFrom: types.NewPathFromString(connectFromStr),
		connectTo:   types.NewPathFromString(connectToStr),
		as:          as,
		ctx:         ctx,
	}

	if maxDepthRaw, err := doc.Get("maxDepth"); err == nil {
		n, ok := types.ToFloat64(maxDepthRaw)
		if !ok || n < 0 {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "'maxDepth' must be a non-negative number")
		}

		s.maxDepth = pointer.To(int(n))
	}

	if depthFieldRaw, err := doc.Get("depthField"); err == nil {
		name, ok := depthFieldRaw.(string)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGraphLookupInvalid, "'depthField' must be a string")
		}

		s.depthField = pointer.To(name)
	}

	return s, nil
}

// Process implements Stage: $graphLookup streams, running one full
// traversal per upstream document.
func (s *graphLookupStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	return iterator.ForFunc(func() (int, *types.Document, error) {
		i, doc, err := upstream.Next()
		if err != nil {
			return 0, nil, err
		}

		out, err := s.traverse(doc)
		if err != nil {
			return 0, nil, err
		}

		return i, out, nil
	}), nil
}

func (s *graphLookupStage) traverse(doc *types.Document) (*types.Document, error) {
	foreign := s.ctx.Collections[s.from]

	frame := aggregations.NewFrame(doc, s.ctx.Eval)

	startVal, err := s.startWith.Evaluate(frame)
	if err != nil {
		return nil, err
	}

	var frontier []any

	if arr, ok := startVal.(*types.Array); ok {
		frontier = append(frontier, arr.Slice()...)
	} else {
		frontier = append(frontier, startVal)
	}

	visited := map[string]struct{}{}
	var resultDepths []int
	var result []*types.Document

	depth := 0

	for len(frontier) > 0 {
		if s.maxDepth != nil && depth > *s.maxDepth {
			break
		}

		var next []any

		for _, fdoc := range foreign {
			toVal := commonpath.Resolve(fdoc, s.connectTo)

			if !matchesAnyGraph(frontier, toVal) {
				continue
			}

			key := types.CanonicalKey(fdoc)
			if id, err := fdoc.Get(s.ctx.idKey()); err == nil {
				key = types.CanonicalKey(id)
			}

			if _, ok := visited[key]; ok {
				continue
			}

			visited[key] = struct{}{}
			result = append(result, fdoc)
			resultDepths = append(resultDepths, depth)

			fromVal := commonpath.Resolve(fdoc, s.connectFrom)
			if arr, ok := fromVal.(*types.Array); ok {
				next = append(next, arr.Slice()...)
			} else if !types.IsMissing(fromVal) {
				next = append(next, fromVal)
			}
		}

		frontier = next
		depth++
	}

	out := doc.DeepCopy()

	arr := types.MakeArray(len(result))

	for idx, r := range result {
		v := any(r)

		if s.depthField != nil {
			withDepth := r.DeepCopy()
			_ = withDepth.Set(*s.depthField, int64(resultDepths[idx]))
			v = withDepth
		}

		_ = arr.Append(v)
	}

	if err := out.Set(s.as, arr); err != nil {
		return nil, err
	}

	return out, nil
}

func matchesAnyGraph(frontier []any, toVal any) bool {
	for _, f := range frontier {
		if types.Compare(f, toVal) == types.Equal {
			return true
		}
	}

	return false
}
