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

	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

func init() {
	register("$bucket", newBucketStage)
	register("$bucketAuto", newBucketAutoStage)
}

// bucketField mirrors groupField: $bucket/$bucketAuto's "output"
// document uses the same unary-accumulator shape $group does.
type bucketField struct {
	key  string
	op   string
	expr aggregations.Expression
}

func compileBucketOutput(raw any) ([]bucketField, error) {
	if raw == nil {
		return []bucketField{{key: "count", op: "$count"}}, nil
	}

	doc, ok := raw.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "'output' must be a document")
	}

	fields := make([]bucketField, 0, doc.Len())

	for _, key := range doc.Keys() {
		v, _ := doc.Get(key)

		accDoc, ok := v.(*types.Document)
		if !ok || accDoc.Len() != 1 {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageGroupUnaryOperator, "a bucket output field must be a single accumulator operator")
		}

		op := accDoc.Keys()[0]

		var expr aggregations.Expression

		if op != "$count" {
			argRaw, _ := accDoc.Get(op)

			e, err := aggregations.NewExpression(argRaw)
			if err != nil {
				return nil, err
			}

			expr = e
		}

		if _, err := newAccumulator(op); err != nil {
			return nil, err
		}

		fields = append(fields, bucketField{key: key, op: op, expr: expr})
	}

	return fields, nil
}

func foldBucket(id any, docs []*types.Document, fields []bucketField, evalCtx *aggregations.EvalContext) (*types.Document, error) {
	accs := make([]accumulator, len(fields))

	for i, f := range fields {
		acc, err := newAccumulator(f.op)
		if err != nil {
			return nil, err
		}

		accs[i] = acc
	}

	for _, d := range docs {
		frame := aggregations.NewFrame(d, evalCtx)

		for i, f := range fields {
			var v any

			if f.expr != nil {
				var err error

				v, err = f.expr.Evaluate(frame)
				if err != nil {
					return nil, err
				}
			}

			accs[i].Add(v)
		}
	}

	out, err := types.NewDocument("_id", id)
	if err != nil {
		return nil, err
	}

	for i, f := range fields {
		res := accs[i].Result()
		if types.IsMissing(res) {
			continue
		}

		if err := out.Set(f.key, res); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// bucketStage implements $bucket: fixed boundaries supplied up front,
// each document assigned to the boundary pair it falls between, with
// an optional catch-all "default" bucket for values outside every
// range.
type bucketStage struct {
	groupBy    aggregations.Expression
	boundaries []any
	hasDefault bool
	def        any
	fields     []bucketField
	evalCtx    *aggregations.EvalContext
}

func newBucketStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "$bucket requires a document")
	}

	groupByRaw, err := doc.Get("groupBy")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "$bucket requires 'groupBy'")
	}

	groupBy, err := aggregations.NewExpression(groupByRaw)
	if err != nil {
		return nil, err
	}

	boundsRaw, err := doc.Get("boundaries")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "$bucket requires 'boundaries'")
	}

	boundsArr, ok := boundsRaw.(*types.Array)
	if !ok || boundsArr.Len() < 2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "'boundaries' must be an array of at least 2 values")
	}

	boundaries := append([]any(nil), boundsArr.Slice()...)

	sort.Slice(boundaries, func(i, j int) bool {
		return types.Compare(boundaries[i], boundaries[j]) == types.Less
	})

	s := &bucketStage{groupBy: groupBy, boundaries: boundaries, evalCtx: ctx.Eval}

	if def, err := doc.Get("default"); err == nil {
		s.hasDefault = true
		s.def = def
	}

	outputRaw, _ := doc.Get("output")

	fields, err := compileBucketOutput(outputRaw)
	if err != nil {
		return nil, err
	}

	s.fields = fields

	return s, nil
}

func (s *bucketStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	docs, err := drain(upstream)
	if err != nil {
		return nil, err
	}

	order := make([]any, 0)
	buckets := make(map[int][]*types.Document)
	defaultDocs := make([]*types.Document, 0)

	for _, d := range docs {
		frame := aggregations.NewFrame(d, s.evalCtx)

		v, err := s.groupBy.Evaluate(frame)
		if err != nil {
			return nil, err
		}

		idx := -1

		for i := 0; i < len(s.boundaries)-1; i++ {
			if types.Compare(v, s.boundaries[i]) != types.Less && types.Compare(v, s.boundaries[i+1]) == types.Less {
				idx = i

				break
			}
		}

		if idx == -1 {
			if !s.hasDefault {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "a document's groupBy value did not fall within any bucket and no default was given")
			}

			defaultDocs = append(defaultDocs, d)

			continue
		}

		if _, ok := buckets[idx]; !ok {
			order = append(order, idx)
		}

		buckets[idx] = append(buckets[idx], d)
	}

	out := make([]*types.Document, 0, len(order)+1)

	for _, raw := range order {
		idx := raw.(int)

		bdoc, err := foldBucket(s.boundaries[idx], buckets[idx], s.fields, s.evalCtx)
		if err != nil {
			return nil, err
		}

		out = append(out, bdoc)
	}

	if len(defaultDocs) > 0 {
		ddoc, err := foldBucket(s.def, defaultDocs, s.fields, s.evalCtx)
		if err != nil {
			return nil, err
		}

		out = append(out, ddoc)
	}

	return sliceDocsIterator(out), nil
}

// bucketAutoStage implements $bucketAuto: boundaries are derived from
// the data itself, distributing documents into approximately equal
// group counts and extending a chunk to absorb every document sharing
// its would-be boundary key before cutting to the next bucket.
type bucketAutoStage struct {
	groupBy    aggregations.Expression
	buckets    int
	fields     []bucketField
	granLevels []float64 // Renard R5/R10/R20/R40/R80 not modeled; nil means no granularity snapping
	evalCtx    *aggregations.EvalContext
}

func newBucketAutoStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "$bucketAuto requires a document")
	}

	groupByRaw, err := doc.Get("groupBy")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "$bucketAuto requires 'groupBy'")
	}

	groupBy, err := aggregations.NewExpression(groupByRaw)
	if err != nil {
		return nil, err
	}

	bucketsRaw, err := doc.Get("buckets")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "$bucketAuto requires 'buckets'")
	}

	n, ok := types.ToFloat64(bucketsRaw)
	if !ok || n < 1 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "'buckets' must be a positive number")
	}

	outputRaw, _ := doc.Get("output")

	fields, err := compileBucketOutput(outputRaw)
	if err != nil {
		return nil, err
	}

	// granularity is validated against the known series names but not
	// used to snap boundaries to a preferred-number series: a recognized
	// name yields the same equal-count buckets as no granularity, and an
	// unrecognized one is rejected.
	if gran, err := doc.Get("granularity"); err == nil {
		name, ok := gran.(string)
		if !ok || (name != "R5" && name != "R10" && name != "R20" && name != "R40" && name != "R80" && name != "1-2-5" && name != "E6" && name != "E12" && name != "E24" && name != "E48" && name != "E96" && name != "E192" && name != "POWERSOF2") {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageBucketInvalid, "unrecognized 'granularity'")
		}
	}

	return &bucketAutoStage{groupBy: groupBy, buckets: int(n), fields: fields, evalCtx: ctx.Eval}, nil
}

func (s *bucketAutoStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	docs, err := drain(upstream)
	if err != nil {
		return nil, err
	}

	type entry struct {
		doc *types.Document
		val any
	}

	entries := make([]entry, 0, len(docs))
	memo := aggregations.NewMemo()

	for _, d := range docs {
		frame := aggregations.NewMemoFrame(d, s.evalCtx, memo)

		v, err := aggregations.Evaluate(s.groupBy, frame)
		if err != nil {
			return nil, err
		}

		if types.IsMissing(v) {
			v = types.Null
		}

		entries = append(entries, entry{doc: d, val: v})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return types.Compare(entries[i].val, entries[j].val) == types.Less
	})

	if len(entries) == 0 {
		return sliceDocsIterator(nil), nil
	}

	// ceil(size/N) documents per chunk, so at most N buckets come out
	// even when size doesn't divide evenly.
	target := (len(entries) + s.buckets - 1) / s.buckets

	var chunks [][]entry

	i := 0
	for i < len(entries) {
		end := i + target
		if end > len(entries) {
			end = len(entries)
		}

		// Extend the chunk so it never splits a run of equal groupBy
		// values across two buckets.
		for end < len(entries) && types.Compare(entries[end-1].val, entries[end].val) == types.Equal {
			end++
		}

		chunks = append(chunks, entries[i:end])
		i = end
	}

	// Merge a too-small final chunk into the previous one rather than
	// emitting a bucket with far fewer documents than its neighbors.
	if len(chunks) > 1 && len(chunks[len(chunks)-1]) < target/2 {
		last := chunks[len(chunks)-1]
		chunks = chunks[:len(chunks)-1]
		chunks[len(chunks)-1] = append(chunks[len(chunks)-1], last...)
	}

	out := make([]*types.Document, 0, len(chunks))

	for ci, chunk := range chunks {
		minV := chunk[0].val

		var maxV any
		if ci+1 < len(chunks) {
			maxV = chunks[ci+1][0].val
		} else {
			maxV = chunk[len(chunk)-1].val
		}

		id, err := types.NewDocument("min", minV, "max", maxV)
		if err != nil {
			return nil, err
		}

		chunkDocs := make([]*types.Document, len(chunk))
		for i, e := range chunk {
			chunkDocs[i] = e.doc
		}

		bdoc, err := foldBucket(id, chunkDocs, s.fields, s.evalCtx)
		if err != nil {
			return nil, err
		}

		out = append(out, bdoc)
	}

	return sliceDocsIterator(out), nil
}
