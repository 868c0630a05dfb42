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

// Package commonpath implements dotted-path resolution, assignment, and
// removal over Documents and Arrays: the array-mapping
// semantics that make "a.b.2.c" both index into arrays and implicitly
// map across them.
package commonpath

import (
	"strconv"

	"github.com/memagg/memagg/internal/types"
)

// Resolve walks doc along path, left to right:
//   - a Document segment is a literal key lookup, numeric or not;
//   - an Array segment that parses as a non-negative integer indexes
//     into it;
//   - an Array segment that is not numeric maps the remaining path
//     across every element, collecting non-Missing results into a new
//     Array;
//   - anything else (absent key, out-of-range index, non-numeric
//     segment on a scalar) yields types.Missing.
//
// Resolve never errors: an unresolvable path is not a malformed query,
// it is simply absent data.
func Resolve(doc any, path types.Path) any {
	return resolveSegments(doc, path.Slice())
}

func resolveSegments(cur any, segments []string) any {
	if len(segments) == 0 {
		return cur
	}

	seg := segments[0]
	rest := segments[1:]

	switch v := cur.(type) {
	case *types.Document:
		val, err := v.Get(seg)
		if err != nil {
			return types.Missing
		}

		return resolveSegments(val, rest)

	case *types.Array:
		if idx, ok := parseIndex(seg); ok {
			val, err := v.Get(idx)
			if err != nil {
				return types.Missing
			}

			return resolveSegments(val, rest)
		}

		// Implicit array traversal: map the remainder of the path
		// across every element, dropping Missing results.
		out, err := types.NewArray()
		if err != nil {
			return types.Missing
		}

		for _, elem := range v.Slice() {
			res := resolveSegments(elem, segments)
			if types.IsMissing(res) {
				continue
			}

			_ = out.Append(res)
		}

		return out

	default:
		return types.Missing
	}
}

func parseIndex(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}

	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}

// Assign walks doc along path, creating intermediate Documents as
// needed (in place of an absent key or a Null), and sets the terminal
// segment to value. Numeric segments
// applied to Arrays replace (if in range) or extend (with Null padding)
// the array; a non-numeric segment applied to an Array replicates the
// assignment into every element, mirroring Resolve's mapping rule.
// Setting value to types.Missing removes the key instead, since
// Missing never lives inside a container. Type
// mismatches (e.g. indexing a scalar with a sub-path) are silently
// skipped, never an error.
func Assign(doc *types.Document, path types.Path, value any) error {
	if types.IsMissing(value) {
		Remove(doc, path)

		return nil
	}

	return assignSegments(doc, path.Slice(), value)
}

func assignSegments(container *types.Document, segments []string, value any) error {
	if len(segments) == 0 {
		return nil
	}

	seg := segments[0]
	rest := segments[1:]

	if len(rest) == 0 {
		return container.Set(seg, value)
	}

	child, err := container.Get(seg)
	if err != nil {
		child, _ = types.NewDocument()
	}

	switch c := child.(type) {
	case *types.Document:
		if err := assignSegments(c, rest, value); err != nil {
			return err
		}

		return container.Set(seg, c)

	case *types.Array:
		return assignArraySegments(c, rest, value)

	default:
		if !types.IsNull(c) {
			return nil
		}

		nd, _ := types.NewDocument()
		if err := assignSegments(nd, rest, value); err != nil {
			return err
		}

		return container.Set(seg, nd)
	}
}

func assignArraySegments(arr *types.Array, segments []string, value any) error {
	seg := segments[0]
	rest := segments[1:]

	if idx, ok := parseIndex(seg); ok {
		for arr.Len() <= idx {
			_ = arr.Append(types.Null)
		}

		if len(rest) == 0 {
			return arr.Set(idx, value)
		}

		elem, _ := arr.Get(idx)

		switch e := elem.(type) {
		case *types.Document:
			if err := assignSegments(e, rest, value); err != nil {
				return err
			}

			return arr.Set(idx, e)
		case *types.Array:
			return assignArraySegments(e, rest, value)
		default:
			if !types.IsNull(e) {
				return nil
			}

			nd, _ := types.NewDocument()
			if err := assignSegments(nd, rest, value); err != nil {
				return err
			}

			return arr.Set(idx, nd)
		}
	}

	// Non-numeric segment on an array: replicate into every element.
	for i := 0; i < arr.Len(); i++ {
		elem, _ := arr.Get(i)

		doc, ok := elem.(*types.Document)
		if !ok {
			continue
		}

		if err := assignSegments(doc, segments, value); err != nil {
			return err
		}
	}

	return nil
}

// Remove walks doc along path and deletes the terminal key, the same
// way Assign walks, but without creating intermediate containers. It
// does not collapse containers left empty.
func Remove(doc *types.Document, path types.Path) {
	removeSegments(doc, path.Slice())
}

func removeSegments(container *types.Document, segments []string) {
	if len(segments) == 0 {
		return
	}

	seg := segments[0]
	rest := segments[1:]

	if len(rest) == 0 {
		container.Remove(seg)

		return
	}

	child, err := container.Get(seg)
	if err != nil {
		return
	}

	switch c := child.(type) {
	case *types.Document:
		removeSegments(c, rest)
	case *types.Array:
		removeArraySegments(c, rest)
	}
}

func removeArraySegments(arr *types.Array, segments []string) {
	seg := segments[0]
	rest := segments[1:]

	if idx, ok := parseIndex(seg); ok {
		elem, err := arr.Get(idx)
		if err != nil {
			return
		}

		if len(rest) == 0 {
			// Removal inside an array does not shift elements; it's
			// replaced with Null, matching $unset on an array index.
			_ = arr.Set(idx, types.Null)

			return
		}

		switch e := elem.(type) {
		case *types.Document:
			removeSegments(e, rest)
		case *types.Array:
			removeArraySegments(e, rest)
		}

		return
	}

	for i := 0; i < arr.Len(); i++ {
		elem, _ := arr.Get(i)

		if doc, ok := elem.(*types.Document); ok {
			removeSegments(doc, segments)
		}
	}
}
