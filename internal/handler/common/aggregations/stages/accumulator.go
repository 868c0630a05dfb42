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
	"math"

	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

// accumulator folds a sequence of per-document values into one result.
// $group and $setWindowFields both drive one accumulator per group (or
// per window) through Add calls in document order, then read Result
// once.
type accumulator interface {
	Add(v any)
	Result() any
}

// newAccumulator constructs the accumulator registered for op. Callers
// get one fresh instance per group/window; instances are never shared.
func newAccumulator(op string) (accumulator, error) {
	switch op {
	case "$sum":
		return &sumAcc{isInt: true}, nil
	case "$avg":
		return &avgAcc{}, nil
	case "$min":
		return &extremeAcc{want: types.Less}, nil
	case "$max":
		return &extremeAcc{want: types.Greater}, nil
	case "$first":
		return &firstAcc{}, nil
	case "$last":
		return &lastAcc{}, nil
	case "$push":
		return &pushAcc{}, nil
	case "$addToSet":
		return &addToSetAcc{}, nil
	case "$stdDevPop":
		return &stdDevAcc{population: true}, nil
	case "$stdDevSamp":
		return &stdDevAcc{}, nil
	case "$mergeObjects":
		return &mergeObjectsAcc{}, nil
	case "$count":
		return &sumAcc{constant: int32(1), isInt: true}, nil
	default:
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrStageGroupInvalidAccumulator, "unknown group accumulator", op,
		)
	}
}

// sumAcc implements $sum: non-numeric inputs contribute zero. When
// constant is set (the $count sugar accumulator), every
// Add call contributes it regardless of v. isInt starts true and is
// cleared by the first non-integer contribution, so an all-integer
// input sums to an int64 while any double keeps the result a double.
type sumAcc struct {
	sum      float64
	isInt    bool
	intSum   int64
	constant any
}

func (a *sumAcc) Add(v any) {
	if a.constant != nil {
		v = a.constant
	}

	switch n := v.(type) {
	case int32:
		a.intSum += int64(n)
		a.sum += float64(n)
	case int64:
		a.intSum += n
		a.sum += float64(n)
	case float64:
		a.isInt = false
		a.sum += n
	default:
		if f, ok := types.ToFloat64(v); ok {
			a.isInt = false
			a.sum += f
		}
	}
}

func (a *sumAcc) Result() any {
	if a.isInt && a.sum == float64(a.intSum) {
		return a.intSum
	}

	return a.sum
}

// avgAcc implements $avg: Missing/non-numeric values are skipped
// entirely, and an empty input averages to null.
type avgAcc struct {
	sum   float64
	count int
}

func (a *avgAcc) Add(v any) {
	if f, ok := types.ToFloat64(v); ok {
		a.sum += f
		a.count++
	}
}

func (a *avgAcc) Result() any {
	if a.count == 0 {
		return nil
	}

	return a.sum / float64(a.count)
}

// extremeAcc implements $min/$max by BSON canonical comparison,
// skipping Missing inputs.
type extremeAcc struct {
	want types.CompareResult
	val  any
	any  bool
}

func (a *extremeAcc) Add(v any) {
	if types.IsMissing(v) {
		return
	}

	if !a.any {
		a.val = v
		a.any = true

		return
	}

	if types.Compare(v, a.val) == a.want {
		a.val = v
	}
}

func (a *extremeAcc) Result() any {
	if !a.any {
		return nil
	}

	return a.val
}

// firstAcc implements $first: the value from the first document the
// accumulator sees, relying on the stage feeding documents in their
// upstream (or explicitly sorted) order.
type firstAcc struct {
	val any
	set bool
}

func (a *firstAcc) Add(v any) {
	if !a.set {
		a.val = v
		a.set = true
	}
}

func (a *firstAcc) Result() any {
	return a.val
}

// lastAcc implements $last.
type lastAcc struct {
	val any
}

func (a *lastAcc) Add(v any) {
	a.val = v
}

func (a *lastAcc) Result() any {
	return a.val
}

// pushAcc implements $push: every value, including duplicates and
// Missing-turned-null, is appended in order.
type pushAcc struct {
	vals []any
}

func (a *pushAcc) Add(v any) {
	if types.IsMissing(v) {
		v = nil
	}

	a.vals = append(a.vals, v)
}

func (a *pushAcc) Result() any {
	arr := types.MakeArray(len(a.vals))

	for _, v := range a.vals {
		_ = arr.Append(v)
	}

	return arr
}

// addToSetAcc implements $addToSet: like $push but deduplicated, using
// CanonicalKey so numerically equal values collapse regardless of
// representation.
type addToSetAcc struct {
	seen map[string]struct{}
	vals []any
}

func (a *addToSetAcc) Add(v any) {
	if types.IsMissing(v) {
		return
	}

	if a.seen == nil {
		a.seen = map[string]struct{}{}
	}

	key := types.CanonicalKey(v)
	if _, ok := a.seen[key]; ok {
		return
	}

	a.seen[key] = struct{}{}
	a.vals = append(a.vals, v)
}

func (a *addToSetAcc) Result() any {
	arr := types.MakeArray(len(a.vals))

	for _, v := range a.vals {
		_ = arr.Append(v)
	}

	return arr
}

// stdDevAcc implements $stdDevPop/$stdDevSamp via Welford's online
// algorithm, avoiding a second pass over buffered values.
type stdDevAcc struct {
	population bool
	count      int
	mean       float64
	m2         float64
}

func (a *stdDevAcc) Add(v any) {
	f, ok := types.ToFloat64(v)
	if !ok {
		return
	}

	a.count++
	delta := f - a.mean
	a.mean += delta / float64(a.count)
	a.m2 += delta * (f - a.mean)
}

func (a *stdDevAcc) Result() any {
	if a.population {
		if a.count == 0 {
			return nil
		}

		return math.Sqrt(a.m2 / float64(a.count))
	}

	if a.count < 2 {
		return nil
	}

	return math.Sqrt(a.m2 / float64(a.count-1))
}

// mergeObjectsAcc implements $mergeObjects: later documents' keys
// overwrite earlier ones, left to right.
type mergeObjectsAcc struct {
	out *types.Document
}

func (a *mergeObjectsAcc) Add(v any) {
	doc, ok := v.(*types.Document)
	if !ok {
		return
	}

	if a.out == nil {
		a.out, _ = types.NewDocument()
	}

	for _, k := range doc.Keys() {
		val, _ := doc.Get(k)
		_ = a.out.Set(k, val)
	}
}

func (a *mergeObjectsAcc) Result() any {
	if a.out == nil {
		out, _ := types.NewDocument()

		return out
	}

	return a.out
}
