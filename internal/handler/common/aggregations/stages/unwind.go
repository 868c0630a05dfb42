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

	"github.com/memagg/memagg/internal/handler/commonpath"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

func init() {
	register("$unwind", newUnwindStage)
}

type unwindStage struct {
	path                       types.Path
	includeArrayIndex          string
	preserveNullAndEmptyArrays bool
}

func newUnwindStage(spec any, _ *Context) (Stage, error) {
	switch v := spec.(type) {
	case string:
		return newUnwindFromPath(v)

	case *types.Document:
		return newUnwindFromDoc(v)

	default:
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageUnwindInvalid, "$unwind requires a string or a document")
	}
}

func newUnwindFromPath(s string) (Stage, error) {
	if !strings.HasPrefix(s, "$") {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageUnwindInvalid, "$unwind's field path must start with '$'")
	}

	return &unwindStage{path: types.NewPathFromString(strings.TrimPrefix(s, "$"))}, nil
}

func newUnwindFromDoc(doc *types.Document) (Stage, error) {
	fieldRaw, err := doc.Get("path")
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageUnwindInvalid, "$unwind requires 'path'")
	}

	fieldStr, ok := fieldRaw.(string)
	if !ok || !strings.HasPrefix(fieldStr, "$") {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageUnwindInvalid, "'path' must be a field path string")
	}

	s := &unwindStage{path: types.NewPathFromString(strings.TrimPrefix(fieldStr, "$"))}

	if idxRaw, err := doc.Get("includeArrayIndex"); err == nil {
		name, ok := idxRaw.(string)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageUnwindInvalid, "'includeArrayIndex' must be a string")
		}

		s.includeArrayIndex = name
	}

	if pRaw, err := doc.Get("preserveNullAndEmptyArrays"); err == nil {
		b, ok := pRaw.(bool)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageUnwindInvalid, "'preserveNullAndEmptyArrays' must be a boolean")
		}

		s.preserveNullAndEmptyArrays = b
	}

	return s, nil
}

// Process implements Stage: $unwind streams, expanding each upstream
// document into zero or more output documents (one per array element)
// without buffering the whole upstream.
func (s *unwindStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	var pending []*types.Document
	pendingIdx := 0

	return iterator.ForFunc(func() (int, *types.Document, error) {
		for {
			if pendingIdx < len(pending) {
				doc := pending[pendingIdx]
				pendingIdx++

				return 0, doc, nil
			}

			_, doc, err := upstream.Next()
			if err != nil {
				return 0, nil, err
			}

			pending, pendingIdx = s.expand(doc), 0
		}
	}), nil
}

func (s *unwindStage) expand(doc *types.Document) []*types.Document {
	v := commonpath.Resolve(doc, s.path)

	arr, isArray := v.(*types.Array)

	if types.IsMissing(v) || types.IsNull(v) || (isArray && arr.Len() == 0) {
		if !s.preserveNullAndEmptyArrays {
			return nil
		}

		out := doc.DeepCopy()

		// A null field stays null; a missing field stays missing; an
		// empty array is removed, matching the server's output shape.
		if isArray {
			commonpath.Remove(out, s.path)
		}

		if s.includeArrayIndex != "" {
			_ = out.Set(s.includeArrayIndex, nil)
		}

		return []*types.Document{out}
	}

	if !isArray {
		out := doc.DeepCopy()

		if s.includeArrayIndex != "" {
			_ = out.Set(s.includeArrayIndex, nil)
		}

		return []*types.Document{out}
	}

	elems := arr.Slice()
	out := make([]*types.Document, len(elems))

	for i, elem := range elems {
		od := doc.DeepCopy()
		_ = commonpath.Assign(od, s.path, elem)

		if s.includeArrayIndex != "" {
			_ = od.Set(s.includeArrayIndex, int64(i))
		}

		out[i] = od
	}

	return out
}
