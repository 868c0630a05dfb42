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

	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

func init() {
	register("$limit", newLimitStage)
	register("$skip", newSkipStage)
	register("$count", newCountStage)
}

// stageInt64 accepts any of the BSON numeric representations a stage
// spec can arrive as and requires it to be a non-negative whole number.
func stageInt64(spec any, code handlererrors.ErrorCode, msg string) (int64, error) {
	n, ok := types.ToFloat64(spec)
	if !ok || n != float64(int64(n)) || n < 0 {
		return 0, handlererrors.NewCommandErrorMsg(code, msg)
	}

	return int64(n), nil
}

type limitStage struct {
	n int64
}

func newLimitStage(spec any, _ *Context) (Stage, error) {
	n, err := stageInt64(spec, handlererrors.ErrStageLimitInvalidArg, "$limit requires a non-negative number")
	if err != nil {
		return nil, err
	}

	return &limitStage{n: n}, nil
}

// Process implements Stage: $limit streams, closing off upstream after
// its count is reached.
func (s *limitStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	seen := int64(0)

	return iterator.ForFunc(func() (int, *types.Document, error) {
		if seen >= s.n {
			return 0, nil, iterator.ErrIteratorDone
		}

		i, doc, err := upstream.Next()
		if err != nil {
			return 0, nil, err
		}

		seen++

		return i, doc, nil
	}), nil
}

type skipStage struct {
	n int64
}

func newSkipStage(spec any, _ *Context) (Stage, error) {
	n, err := stageInt64(spec, handlererrors.ErrStageSkipBadValue, "$skip requires a non-negative number")
	if err != nil {
		return nil, err
	}

	return &skipStage{n: n}, nil
}

// Process implements Stage: $skip streams, discarding its first n
// documents without buffering the rest.
func (s *skipStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	skipped := int64(0)

	return iterator.ForFunc(func() (int, *types.Document, error) {
		for skipped < s.n {
			if _, _, err := upstream.Next(); err != nil {
				return 0, nil, err
			}

			skipped++
		}

		return upstream.Next()
	}), nil
}

type countStage struct {
	field string
}

func newCountStage(spec any, _ *Context) (Stage, error) {
	name, ok := spec.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageCountNonString, "the count field must be a string")
	}

	if name == "" {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageCountNonEmptyString, "the count field must be a non-empty string")
	}

	if strings.HasPrefix(name, "$") {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageCountBadPrefix, "the count field cannot start with '$'")
	}

	if strings.Contains(name, ".") {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageCountBadValue, "the count field cannot contain '.'")
	}

	return &countStage{field: name}, nil
}

// Process implements Stage: $count blocks, draining upstream to emit a
// single document holding the final count.
func (s *countStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	docs, err := drain(upstream)
	if err != nil {
		return nil, err
	}

	out, err := types.NewDocument(s.field, int32(len(docs)))
	if err != nil {
		return nil, err
	}

	return sliceDocsIterator([]*types.Document{out}), nil
}
