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

package commonpath

import (
	"github.com/memagg/memagg/internal/types"
)

// FindValuesOpts controls FindValues's handling of arrays along path.
type FindValuesOpts struct {
	// FindArrayIndex allows a numeric path segment to index into an
	// array (as opposed to being rejected as a non-existent key).
	FindArrayIndex bool

	// SearchArray allows a non-numeric path segment to map across an
	// array's elements, the same way Resolve always does; FindValues
	// only does it when this is set, since callers like $elemMatch
	// projection want to distinguish "found nothing" from "found many".
	SearchArray bool
}

// FindValues returns every value reachable by path from doc, honoring
// opts. Unlike Resolve, which always maps across arrays and always
// collapses to a single Value, FindValues reports each match
// individually and reports zero matches (an empty, non-nil slice) when
// nothing along the way satisfies opts, rather than Missing.
func FindValues(doc *types.Document, path types.Path, opts *FindValuesOpts) ([]any, error) {
	if opts == nil {
		opts = new(FindValuesOpts)
	}

	res := find(doc, path.Slice(), opts)

	if res == nil {
		res = []any{}
	}

	return res, nil
}

func find(cur any, segments []string, opts *FindValuesOpts) []any {
	if len(segments) == 0 {
		return []any{cur}
	}

	seg := segments[0]
	rest := segments[1:]

	switch v := cur.(type) {
	case *types.Document:
		val, err := v.Get(seg)
		if err != nil {
			return nil
		}

		return find(val, rest, opts)

	case *types.Array:
		if idx, ok := parseIndex(seg); ok {
			if !opts.FindArrayIndex {
				return nil
			}

			val, err := v.Get(idx)
			if err != nil {
				return nil
			}

			return find(val, rest, opts)
		}

		if !opts.SearchArray {
			return nil
		}

		var out []any

		for _, elem := range v.Slice() {
			out = append(out, find(elem, segments, opts)...)
		}

		return out

	default:
		return nil
	}
}
