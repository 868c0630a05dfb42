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
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/handler/commonpath"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

func init() {
	register("$setWindowFields", newSetWindowFieldsStage)
}

// windowBound is one side of a window frame: either "unbounded",
// "current", or a signed document-count/range offset from the current
// document.
type windowBound struct {
	unbounded bool
	current   bool
	offset    float64
}

func parseWindowBound(v any) (windowBound, error) {
	switch t := v.(type) {
	case string:
		switch t {
		case "unbounded":
			return windowBound{unbounded: true}, nil
		case "current":
			return windowBound{current: true}, nil
		}
	default:
		if n, ok := types.ToFloat64(t); ok {
			return windowBound{offset: n}, nil
		}
	}

	return windowBound{}, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "invalid window bound")
}

type windowSpec struct {
	hasWindow bool
	byRange   bool
	lower     windowBound
	upper     windowBound

	// unitMillis scales range offsets when the sortBy field is a date
	// ("window": {range: [-1, 0], unit: "day"}); 1 for plain numbers.
	unitMillis float64
}

// unitMillisTable maps $setWindowFields's range units to milliseconds,
// the resolution sortBy dates carry.
var unitMillisTable = map[string]float64{
	"week":        7 * 24 * 60 * 60 * 1000,
	"day":         24 * 60 * 60 * 1000,
	"hour":        60 * 60 * 1000,
	"minute":      60 * 1000,
	"second":      1000,
	"millisecond": 1,
}

func compileWindowSpec(raw any) (windowSpec, error) {
	if raw == nil {
		return windowSpec{}, nil
	}

	doc, ok := raw.(*types.Document)
	if !ok {
		return windowSpec{}, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "'window' must be a document")
	}

	var bounds *types.Array

	byRange := false

	if v, err := doc.Get("documents"); err == nil {
		bounds, ok = v.(*types.Array)
	} else if v, err := doc.Get("range"); err == nil {
		bounds, ok = v.(*types.Array)
		byRange = true
	}

	if bounds == nil || !ok || bounds.Len() != 2 {
		return windowSpec{}, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "'window' requires a 2-element 'documents' or 'range' bound")
	}

	lowerRaw, _ := bounds.Get(0)
	upperRaw, _ := bounds.Get(1)

	lower, err := parseWindowBound(lowerRaw)
	if err != nil {
		return windowSpec{}, err
	}

	upper, err := parseWindowBound(upperRaw)
	if err != nil {
		return windowSpec{}, err
	}

	spec := windowSpec{hasWindow: true, byRange: byRange, lower: lower, upper: upper, unitMillis: 1}

	if unitRaw, err := doc.Get("unit"); err == nil {
		if !byRange {
			return windowSpec{}, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "'unit' is only valid with a range window")
		}

		name, ok := unitRaw.(string)
		if !ok {
			return windowSpec{}, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "'unit' must be a string")
		}

		ms, ok := unitMillisTable[name]
		if !ok {
			return windowSpec{}, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "unrecognized window 'unit'")
		}

		spec.unitMillis = ms
	}

	return spec, nil
}

type windowField struct {
	key    string
	op     string
	expr   aggregations.Expression
	window windowSpec
}

type setWindowFieldsStage struct {
	partitionBy aggregations.Expression
	sortKeys    []sortKey
	fields      []windowField
	evalCtx     *aggregations.EvalContext
}

func newSetWindowFieldsStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "$setWindowFields requires a document")
	}

	s := &setWindowFieldsStage{evalCtx: ctx.Eval}

	if pb, err := doc.Get("partitionBy"); err == nil {
		expr, err := aggregations.NewExpression(pb)
		if err != nil {
			return nil, err
		}

		s.partitionBy = expr
	}

	if sb, err := doc.Get("sortBy"); err == nil {
		sortDoc, ok := sb.(*types.Document)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "'sortBy' must be a document")
		}

		for _, k := range sortDoc.Keys() {
			raw, _ := sortDoc.Get(k)

			n, ok := types.ToFloat64(raw)
			if !ok || (n != 1 && n != -1) {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "'sortBy' direction must be 1 or -1")
			}

			s.sortKeys = append(s.sortKeys, sortKey{path: types.NewPathFromString(k), desc: n < 0})
		}
	}

	outputRaw, err := doc.Get("output")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "$setWindowFields requires 'output'")
	}

	outputDoc, ok := outputRaw.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "'output' must be a document")
	}

	for _, key := range outputDoc.Keys() {
		raw, _ := outputDoc.Get(key)

		fieldDoc, ok := raw.(*types.Document)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "each output field must be a document")
		}

		var op string

		var argExpr aggregations.Expression

		var winRaw any

		for _, k := range fieldDoc.Keys() {
			if k == "window" {
				winRaw, _ = fieldDoc.Get("window")

				continue
			}

			op = k

			v, _ := fieldDoc.Get(k)

			expr, err := aggregations.NewExpression(v)
			if err != nil {
				return nil, err
			}

			argExpr = expr
		}

		if op == "" {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "an output field must name an accumulator")
		}

		if _, err := newAccumulator(op); err != nil {
			return nil, err
		}

		win, err := compileWindowSpec(winRaw)
		if err != nil {
			return nil, err
		}

		if win.byRange && len(s.sortKeys) != 1 {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSetWindowInvalid, "a range window requires exactly one 'sortBy' field")
		}

		s.fields = append(s.fields, windowField{key: key, op: op, expr: argExpr, window: win})
	}

	return s, nil
}

// Process implements Stage: $setWindowFields blocks, partitioning,
// sorting within each partition, then computing each output field's
// accumulator over the window visible from every document's position.
func (s *setWindowFieldsStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	docs, err := drain(upstream)
	if err != nil {
		return nil, err
	}

	partitions := s.partition(docs)

	out := make([]*types.Document, 0, len(docs))

	for _, part := range partitions {
		s.sortPartition(part)

		windowed, err := s.applyFields(part)
		if err != nil {
			return nil, err
		}

		out = append(out, windowed...)
	}

	return sliceDocsIterator(out), nil
}

func (s *setWindowFieldsStage) partition(docs []*types.Document) [][]*types.Document {
	if s.partitionBy == nil {
		return [][]*types.Document{docs}
	}

	order := make([]string, 0)
	groups := make(map[string][]*types.Document)

	for _, d := range docs {
		frame := aggregations.NewFrame(d, s.evalCtx)

		v, err := s.partitionBy.Evaluate(frame)
		if err != nil {
			v = nil
		}

		key := types.CanonicalKey(v)

		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}

		groups[key] = append(groups[key], d)
	}

	out := make([][]*types.Document, len(order))
	for i, k := range order {
		out[i] = groups[k]
	}

	return out
}

func (s *setWindowFieldsStage) sortPartition(part []*types.Document) {
	if len(s.sortKeys) == 0 {
		return
	}

	sort.SliceStable(part, func(i, j int) bool {
		for _, k := range s.sortKeys {
			a := commonpath.Resolve(part[i], k.path)
			b := commonpath.Resolve(part[j], k.path)

			cmp := types.Compare(a, b)
			if cmp == types.Equal {
				continue
			}

			if k.desc {
				return cmp == types.Greater
			}

			return cmp == types.Less
		}

		return false
	})
}

func (s *setWindowFieldsStage) applyFields(part []*types.Document) ([]*types.Document, error) {
	out := make([]*types.Document, len(part))

	for i, d := range part {
		out[i] = d.DeepCopy()
	}

	// Range windows need the sortBy value of every document in the
	// partition; computed once, reused by every range-framed field.
	var sortVals []float64

	for _, f := range s.fields {
		if !f.window.byRange {
			continue
		}

		sortVals = make([]float64, len(part))

		for i, d := range part {
			v := commonpath.Resolve(d, s.sortKeys[0].path)
			sortVals[i], _ = rangeValue(v)
		}

		break
	}

	for _, f := range s.fields {
		for i := range part {
			var lo, hi int

			if f.window.byRange {
				lo, hi = rangeWindowBounds(i, sortVals, f.window)
			} else {
				lo, hi = windowRange(i, len(part), f.window)
			}

			acc, err := newAccumulator(f.op)
			if err != nil {
				return nil, err
			}

			for j := lo; j <= hi; j++ {
				var v any

				if f.expr != nil {
					frame := aggregations.NewFrame(part[j], s.evalCtx)

					v, err = f.expr.Evaluate(frame)
					if err != nil {
						return nil, err
					}
				}

				acc.Add(v)
			}

			res := acc.Result()
			if types.IsMissing(res) {
				continue
			}

			if err := out[i].Set(f.key, res); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// rangeValue maps a sortBy value to the number line range windows frame
// over: plain numerics as themselves, dates as epoch milliseconds.
func rangeValue(v any) (float64, bool) {
	if dt, ok := v.(bson.DateTime); ok {
		return float64(int64(dt)), true
	}

	return types.ToFloat64(v)
}

// rangeWindowBounds resolves a value-based window around position i: the
// run of documents whose sortBy value falls within [val[i]+lower*unit,
// val[i]+upper*unit], relying on vals being sorted.
func rangeWindowBounds(i int, vals []float64, w windowSpec) (int, int) {
	n := len(vals)

	lo := 0

	switch {
	case w.lower.unbounded:
		lo = 0
	case w.lower.current:
		for lo = i; lo > 0 && vals[lo-1] == vals[i]; lo-- {
		}
	default:
		min := vals[i] + w.lower.offset*w.unitMillis

		for lo = 0; lo < n && vals[lo] < min; lo++ {
		}
	}

	hi := n - 1

	switch {
	case w.upper.unbounded:
		hi = n - 1
	case w.upper.current:
		for hi = i; hi < n-1 && vals[hi+1] == vals[i]; hi++ {
		}
	default:
		max := vals[i] + w.upper.offset*w.unitMillis

		for hi = n - 1; hi >= 0 && vals[hi] > max; hi-- {
		}
	}

	if lo > hi {
		return i, i - 1 // empty window: accumulator sees no values
	}

	return lo, hi
}

// windowRange resolves a document-count window spec to a concrete,
// clamped [lo, hi] index range relative to position i in a partition of
// size n.
func windowRange(i, n int, w windowSpec) (int, int) {
	if !w.hasWindow {
		return 0, n - 1
	}

	lo := boundIndex(w.lower, i, n, true)
	hi := boundIndex(w.upper, i, n, false)

	if lo < 0 {
		lo = 0
	}

	if hi > n-1 {
		hi = n - 1
	}

	if lo > hi {
		lo, hi = i, i
	}

	return lo, hi
}

func boundIndex(b windowBound, i, n int, isLower bool) int {
	switch {
	case b.unbounded:
		if isLower {
			return 0
		}

		return n - 1
	case b.current:
		return i
	default:
		return i + int(b.offset)
	}
}
