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
	"errors"

	"github.com/memagg/memagg/internal/handler/common/query"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

func init() {
	register("$match", newMatchStage)
}

type matchStage struct {
	pred query.Predicate
}

func newMatchStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$match requires a document")
	}

	pred, err := query.Compile(doc, &query.Context{
		Collator:      ctx.collator(),
		ScriptEnabled: ctx.Eval != nil && ctx.Eval.ScriptEnabled,
		Script:        scriptFunc(ctx),
	})
	if err != nil {
		return nil, err
	}

	return &matchStage{pred: pred}, nil
}

func scriptFunc(ctx *Context) func(string, []any) (any, error) {
	if ctx == nil || ctx.Eval == nil {
		return nil
	}

	return ctx.Eval.ScriptEvaluator
}

// Process implements Stage: $match streams, testing one document at a
// time without buffering.
func (s *matchStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	return iterator.ForFunc(func() (int, *types.Document, error) {
		for {
			i, doc, err := upstream.Next()
			if err != nil {
				if errors.Is(err, iterator.ErrIteratorDone) {
					return 0, nil, iterator.ErrIteratorDone
				}

				return 0, nil, err
			}

			ok, err := s.pred.Matches(doc)
			if err != nil {
				return 0, nil, err
			}

			if ok {
				return i, doc, nil
			}
		}
	}), nil
}
