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
	"strings"

	"github.com/AlekSi/pointer"

	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/handler/common/aggregations/operators"
	"github.com/memagg/memagg/internal/handler/common/query"
	"github.com/memagg/memagg/internal/handler/commonpath"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

func init() {
	register("$project", newProjectStage)
	register("$addFields", newAddFieldsStage)
	register("$set", newAddFieldsStage)
	register("$unset", newUnsetStage)
	register("$replaceRoot", newReplaceRootStage)
	register("$replaceWith", newReplaceWithStage)
}

// projKind classifies one entry of a normalized projection spec
//.
type projKind int

const (
	projInclude projKind = iota
	projExclude
	projComputed
	projNested
	projOperator
)

type projEntry struct {
	key    string
	kind   projKind
	expr   aggregations.Expression
	nested *projectionSpec

	// projOperator state: the projection-dialect operators $slice and
	// $elemMatch, which transform
	// the existing field value instead of computing a new one.
	opName    string
	sliceSkip *int // nil for the single-argument $slice form
	sliceN    int
	elemTest  func(elem any) (bool, error)
}

// projMode is the spec-wide include/exclude classification:
// include-mode and exclude-mode are mutually exclusive, except that
// _id may be excluded from an include-spec.
type projMode int

const (
	projModeInclude projMode = iota
	projModeExclude
)

type projectionSpec struct {
	mode      projMode
	idExclude bool // only meaningful at the root
	entries   []projEntry
}

// buildProjectionTree expands dotted top-level keys ("a.b") into an
// equivalent nested-document tree ({a: {b: ...}}), so the rest of the
// compiler only has to handle the nested-subdocument shape.
func buildProjectionTree(doc *types.Document) (*types.Document, error) {
	root, err := types.NewDocument()
	if err != nil {
		return nil, err
	}

	for _, key := range doc.Keys() {
		raw, _ := doc.Get(key)

		if err := insertProjectionPath(root, strings.Split(key, "."), raw); err != nil {
			return nil, err
		}
	}

	return root, nil
}

func insertProjectionPath(node *types.Document, segs []string, val any) error {
	head := segs[0]

	if len(segs) == 1 {
		return node.Set(head, val)
	}

	var child *types.Document

	if existing, err := node.Get(head); err == nil {
		if cd, ok := existing.(*types.Document); ok {
			child = cd
		}
	}

	if child == nil {
		child, _ = types.NewDocument()
	}

	if err := insertProjectionPath(child, segs[1:], val); err != nil {
		return err
	}

	return node.Set(head, child)
}

func compileProjectionSpec(doc *types.Document, isRoot bool, qctx *query.Context) (*projectionSpec, error) {
	tree, err := buildProjectionTree(doc)
	if err != nil {
		return nil, err
	}

	spec := &projectionSpec{}

	sawInclude, sawExclude := false, false

	for _, key := range tree.Keys() {
		raw, _ := tree.Get(key)

		entry, kind, err := compileProjectionEntry(key, raw, qctx)
		if err != nil {
			return nil, err
		}

		entry.kind = kind
		spec.entries = append(spec.entries, entry)

		switch kind {
		case projInclude:
			if isRoot && key == "_id" {
				continue
			}

			sawInclude = true
		case projExclude:
			if isRoot && key == "_id" {
				spec.idExclude = true

				continue
			}

			sawExclude = true
		case projNested:
			switch entry.nested.mode {
			case projModeInclude:
				sawInclude = true
			case projModeExclude:
				sawExclude = true
			}
		case projOperator:
			// $elemMatch implies inclusion; $slice is allowed in
			// either mode.
			if entry.opName == "$elemMatch" {
				sawInclude = true
			}
		}
	}

	if sawInclude && sawExclude {
		return nil, handlererrors.NewCommandErrorMsg(
			handlererrors.ErrProjectionMixing,
			"a projection spec cannot mix inclusion and exclusion except for _id",
		)
	}

	if sawExclude {
		spec.mode = projModeExclude
	} else {
		spec.mode = projModeInclude
	}

	return spec, nil
}

func compileProjectionEntry(key string, raw any, qctx *query.Context) (projEntry, projKind, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return projEntry{key: key}, projInclude, nil
		}

		return projEntry{key: key}, projExclude, nil

	case int32, int64, float64:
		if n, _ := types.ToFloat64(v); n == 0 {
			return projEntry{key: key}, projExclude, nil
		}

		return projEntry{key: key}, projInclude, nil

	case *types.Document:
		if v.Len() == 1 {
			switch op := v.Keys()[0]; op {
			case "$slice":
				sliceRaw, _ := v.Get(op)

				return compileProjSlice(key, sliceRaw)

			case "$elemMatch":
				subRaw, _ := v.Get(op)

				sub, ok := subRaw.(*types.Document)
				if !ok {
					return projEntry{}, 0, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$elemMatch projection requires a document")
				}

				test, err := query.CompileElemTest(sub, qctx)
				if err != nil {
					return projEntry{}, 0, err
				}

				return projEntry{key: key, opName: op, elemTest: test}, projOperator, nil
			}
		}

		if v.Len() == 1 && operators.LooksLikeCall(v.Keys()[0]) {
			expr, err := aggregations.NewExpression(v)
			if err != nil {
				return projEntry{}, 0, err
			}

			return projEntry{key: key, expr: expr}, projComputed, nil
		}

		nested, err := compileProjectionSpec(v, false, qctx)
		if err != nil {
			return projEntry{}, 0, err
		}

		return projEntry{key: key, nested: nested}, projNested, nil

	default:
		expr, err := aggregations.NewExpression(raw)
		if err != nil {
			return projEntry{}, 0, err
		}

		return projEntry{key: key, expr: expr}, projComputed, nil
	}
}

// compileProjSlice parses the projection $slice's two forms: a bare
// count (negative for "last n") or a [skip, limit] pair.
func compileProjSlice(key string, raw any) (projEntry, projKind, error) {
	if arr, ok := raw.(*types.Array); ok {
		if arr.Len() != 2 {
			return projEntry{}, 0, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$slice projection array form requires [skip, limit]")
		}

		skipRaw, _ := arr.Get(0)
		limitRaw, _ := arr.Get(1)

		skip, ok1 := types.ToFloat64(skipRaw)
		limit, ok2 := types.ToFloat64(limitRaw)

		if !ok1 || !ok2 || limit <= 0 {
			return projEntry{}, 0, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$slice projection requires numeric skip and positive limit")
		}

		return projEntry{key: key, opName: "$slice", sliceSkip: pointer.To(int(skip)), sliceN: int(limit)}, projOperator, nil
	}

	n, ok := types.ToFloat64(raw)
	if !ok {
		return projEntry{}, 0, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$slice projection requires a number or [skip, limit]")
	}

	return projEntry{key: key, opName: "$slice", sliceN: int(n)}, projOperator, nil
}

// applyProjOperator applies a $slice/$elemMatch projection entry to
// doc's existing field value; ok is false when the key should be
// omitted from the output.
func applyProjOperator(doc *types.Document, e projEntry) (any, bool, error) {
	v := doc.GetOrMissing(e.key)

	arr, isArr := v.(*types.Array)
	if !isArr {
		if types.IsMissing(v) {
			return nil, false, nil
		}

		// A non-array value passes through $slice untouched.
		if e.opName == "$slice" {
			return v, true, nil
		}

		return nil, false, nil
	}

	switch e.opName {
	case "$slice":
		s := arr.Slice()
		n := len(s)

		var start, end int

		switch {
		case e.sliceSkip != nil:
			start = *e.sliceSkip
			if start < 0 {
				start = n + start
			}

			start = clampBound(start, n)
			end = clampBound(start+e.sliceN, n)

		case e.sliceN < 0:
			start = clampBound(n+e.sliceN, n)
			end = n

		default:
			start = 0
			end = clampBound(e.sliceN, n)
		}

		out := types.MakeArray(end - start)

		for _, elem := range s[start:end] {
			_ = out.Append(elem)
		}

		return out, true, nil

	case "$elemMatch":
		for _, elem := range arr.Slice() {
			ok, err := e.elemTest(elem)
			if err != nil {
				return nil, false, err
			}

			if ok {
				out := types.MakeArray(1)
				_ = out.Append(elem)

				return out, true, nil
			}
		}

		return nil, false, nil
	}

	return nil, false, nil
}

func clampBound(i, n int) int {
	if i < 0 {
		return 0
	}

	if i > n {
		return n
	}

	return i
}

type projectStage struct {
	spec    *projectionSpec
	idKey   string
	evalCtx *aggregations.EvalContext
}

func newProjectStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$project requires a document")
	}

	compiled, err := compileProjectionSpec(doc, true, &query.Context{Collator: ctx.collator()})
	if err != nil {
		return nil, err
	}

	return &projectStage{spec: compiled, idKey: ctx.idKey(), evalCtx: ctx.Eval}, nil
}

// Process implements Stage: $project reshapes one document at a time,
// streaming.
func (s *projectStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	return mapStream(upstream, func(doc *types.Document) (*types.Document, error) {
		frame := aggregations.NewFrame(doc, s.evalCtx)

		return applyProjection(doc, s.spec, frame, s.idKey, true)
	}), nil
}

func applyProjection(doc *types.Document, spec *projectionSpec, frame *aggregations.Frame, idKey string, isRoot bool) (*types.Document, error) {
	if spec.mode == projModeExclude {
		return applyExclusion(doc, spec)
	}

	return applyInclusion(doc, spec, frame, idKey, isRoot)
}

func applyInclusion(doc *types.Document, spec *projectionSpec, frame *aggregations.Frame, idKey string, isRoot bool) (*types.Document, error) {
	out, err := types.NewDocument()
	if err != nil {
		return nil, err
	}

	explicitID := false

	for _, e := range spec.entries {
		if isRoot && e.key == idKey {
			explicitID = true
		}
	}

	if isRoot && !explicitID && !spec.idExclude {
		if v, err := doc.Get(idKey); err == nil {
			if err := out.Set(idKey, v); err != nil {
				return nil, err
			}
		}
	}

	for _, e := range spec.entries {
		switch e.kind {
		case projExclude:
			continue

		case projInclude:
			v := commonpath.Resolve(doc, types.NewStaticPath(e.key))
			if types.IsMissing(v) {
				continue
			}

			if err := out.Set(e.key, v); err != nil {
				return nil, err
			}

		case projComputed:
			v, err := e.expr.Evaluate(frame)
			if err != nil {
				return nil, err
			}

			if types.IsMissing(v) {
				continue
			}

			if err := out.Set(e.key, v); err != nil {
				return nil, err
			}

		case projNested:
			childRaw := doc.GetOrMissing(e.key)

			projected, err := projectNestedValue(childRaw, e.nested, frame, idKey)
			if err != nil {
				return nil, err
			}

			if types.IsMissing(projected) {
				continue
			}

			if err := out.Set(e.key, projected); err != nil {
				return nil, err
			}

		case projOperator:
			v, ok, err := applyProjOperator(doc, e)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			if err := out.Set(e.key, v); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func projectNestedValue(v any, nested *projectionSpec, frame *aggregations.Frame, idKey string) (any, error) {
	switch cur := v.(type) {
	case *types.Document:
		return applyProjection(cur, nested, frame, idKey, false)

	case *types.Array:
		out := types.MakeArray(cur.Len())

		for _, elem := range cur.Slice() {
			pv, err := projectNestedValue(elem, nested, frame, idKey)
			if err != nil {
				return nil, err
			}

			if types.IsMissing(pv) {
				continue
			}

			if err := out.Append(pv); err != nil {
				return nil, err
			}
		}

		return out, nil

	default:
		return types.Missing, nil
	}
}

func applyExclusion(doc *types.Document, spec *projectionSpec) (*types.Document, error) {
	return applyExclusionFrame(doc, spec, aggregations.NewFrame(doc, nil))
}

func applyExclusionFrame(doc *types.Document, spec *projectionSpec, frame *aggregations.Frame) (*types.Document, error) {
	out := doc.DeepCopy()

	for _, e := range spec.entries {
		switch e.kind {
		case projExclude:
			out.Remove(e.key)

		case projNested:
			if child, err := out.Get(e.key); err == nil {
				pruned, err := pruneNested(child, e.nested, frame)
				if err != nil {
					return nil, err
				}

				if err := out.Set(e.key, pruned); err != nil {
					return nil, err
				}
			}

		case projComputed:
			v, err := e.expr.Evaluate(frame)
			if err != nil {
				return nil, err
			}

			if types.IsMissing(v) {
				out.Remove(e.key)

				continue
			}

			if err := out.Set(e.key, v); err != nil {
				return nil, err
			}

		case projOperator:
			v, ok, err := applyProjOperator(out, e)
			if err != nil {
				return nil, err
			}

			if !ok {
				out.Remove(e.key)

				continue
			}

			if err := out.Set(e.key, v); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func pruneNested(v any, nested *projectionSpec, frame *aggregations.Frame) (any, error) {
	switch cur := v.(type) {
	case *types.Document:
		return applyExclusionFrame(cur, nested, frame)

	case *types.Array:
		out := types.MakeArray(cur.Len())

		for _, elem := range cur.Slice() {
			pv, err := pruneNested(elem, nested, frame)
			if err != nil {
				return nil, err
			}

			if err := out.Append(pv); err != nil {
				return nil, err
			}
		}

		return out, nil

	default:
		return v, nil
	}
}

type addFieldsStage struct {
	keys    []string
	exprs   []aggregations.Expression
	evalCtx *aggregations.EvalContext
}

func newAddFieldsStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$addFields/$set requires a document")
	}

	s := &addFieldsStage{evalCtx: ctx.Eval}

	for _, key := range doc.Keys() {
		raw, _ := doc.Get(key)

		expr, err := aggregations.NewExpression(raw)
		if err != nil {
			return nil, err
		}

		s.keys = append(s.keys, key)
		s.exprs = append(s.exprs, expr)
	}

	return s, nil
}

// Process implements Stage: each named path is computed against the
// original document and assigned into a deep copy, in spec order.
func (s *addFieldsStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	return mapStream(upstream, func(doc *types.Document) (*types.Document, error) {
		frame := aggregations.NewFrame(doc, s.evalCtx)
		out := doc.DeepCopy()

		for i, key := range s.keys {
			v, err := s.exprs[i].Evaluate(frame)
			if err != nil {
				return nil, err
			}

			if err := commonpath.Assign(out, types.NewPathFromString(key), v); err != nil {
				return nil, err
			}
		}

		return out, nil
	}), nil
}

type unsetStage struct {
	paths []types.Path
}

func newUnsetStage(spec any, _ *Context) (Stage, error) {
	s := &unsetStage{}

	switch v := spec.(type) {
	case string:
		s.paths = append(s.paths, types.NewPathFromString(v))

	case *types.Array:
		for _, e := range v.Slice() {
			str, ok := e.(string)
			if !ok {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$unset array elements must be strings")
			}

			s.paths = append(s.paths, types.NewPathFromString(str))
		}

	default:
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$unset requires a string or array of strings")
	}

	return s, nil
}

// Process implements Stage.
func (s *unsetStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	return mapStream(upstream, func(doc *types.Document) (*types.Document, error) {
		out := doc.DeepCopy()

		for _, p := range s.paths {
			commonpath.Remove(out, p)
		}

		return out, nil
	}), nil
}

type replaceRootStage struct {
	newRoot aggregations.Expression
	evalCtx *aggregations.EvalContext
}

func newReplaceRootStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$replaceRoot requires a document")
	}

	raw, err := doc.Get("newRoot")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$replaceRoot requires 'newRoot'")
	}

	expr, err := aggregations.NewExpression(raw)
	if err != nil {
		return nil, err
	}

	return &replaceRootStage{newRoot: expr, evalCtx: ctx.Eval}, nil
}

// newReplaceWithStage builds $replaceWith, a documented alias of
// {$replaceRoot: {newRoot: <expr>}}.
func newReplaceWithStage(spec any, ctx *Context) (Stage, error) {
	expr, err := aggregations.NewExpression(spec)
	if err != nil {
		return nil, err
	}

	return &replaceRootStage{newRoot: expr, evalCtx: ctx.Eval}, nil
}

// Process implements Stage.
func (s *replaceRootStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	return mapStream(upstream, func(doc *types.Document) (*types.Document, error) {
		frame := aggregations.NewFrame(doc, s.evalCtx)

		v, err := s.newRoot.Evaluate(frame)
		if err != nil {
			return nil, err
		}

		out, ok := v.(*types.Document)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$replaceRoot/$replaceWith requires newRoot to evaluate to a document")
		}

		return out, nil
	}), nil
}

// mapStream wraps upstream so each pulled document passes through fn,
// the common shape of every streaming reshape stage.
func mapStream(upstream types.DocumentsIterator, fn func(*types.Document) (*types.Document, error)) types.DocumentsIterator {
	return iterator.ForFunc(func() (int, *types.Document, error) {
		i, doc, err := upstream.Next()
		if err != nil {
			return 0, nil, err
		}

		out, err := fn(doc)
		if err != nil {
			return 0, nil, err
		}

		return i, out, nil
	})
}
