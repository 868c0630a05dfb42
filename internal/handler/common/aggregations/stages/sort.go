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

	"github.com/memagg/memagg/internal/collation"
	"github.com/memagg/memagg/internal/handler/commonpath"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

func init() {
	register("$sort", newSortStage)
}

type sortKey struct {
	path types.Path
	desc bool
}

type sortStage struct {
	keys     []sortKey
	collator collation.Collator
}

func newSortStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok || doc.Len() == 0 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSortBadValue, "$sort requires a non-empty document of field/direction pairs")
	}

	keys := make([]sortKey, 0, doc.Len())

	for _, k := range doc.Keys() {
		raw, _ := doc.Get(k)

		n, ok := types.ToFloat64(raw)
		if !ok || (n != 1 && n != -1) {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageSortBadValue, "$sort direction must be 1 or -1")
		}

		keys = append(keys, sortKey{path: types.NewPathFromString(k), desc: n < 0})
	}

	return &sortStage{keys: keys, collator: ctx.collator()}, nil
}

// Process implements Stage: $sort blocks, draining upstream and
// returning a single owned, stably-sorted buffer. Sort keys are resolved once per document up front so the
// comparator itself does no path walking.
func (s *sortStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	docs, err := drain(upstream)
	if err != nil {
		return nil, err
	}

	type entry struct {
		doc  *types.Document
		vals []any
	}

	entries := make([]entry, len(docs))

	for i, d := range docs {
		vals := make([]any, len(s.keys))

		for j, k := range s.keys {
			vals[j] = commonpath.Resolve(d, k.path)
		}

		entries[i] = entry{doc: d, vals: vals}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		for k, key := range s.keys {
			cmp := s.compareValues(entries[i].vals[k], entries[j].vals[k])
			if cmp == 0 {
				continue
			}

			if key.desc {
				return cmp > 0
			}

			return cmp < 0
		}

		return false
	})

	out := make([]*types.Document, len(entries))
	for i, e := range entries {
		out[i] = e.doc
	}

	return sliceDocsIterator(out), nil
}

// compareValues orders two resolved sort-key values, using the
// stage's collator for strings and BSON canonical type order
// otherwise.
func (s *sortStage) compareValues(a, b any) int {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)

	if aIsStr && bIsStr {
		return s.collator.Compare(as, bs)
	}

	switch types.Compare(a, b) {
	case types.Less:
		return -1
	case types.Greater:
		return 1
	default:
		return 0
	}
}
