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
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

func init() {
	register("$out", newOutStage)
	register("$merge", newMergeStage)
}

// outStage implements the $out/$merge surface hook: the pipeline's
// fully materialized output is handed to Context.Sink and then
// re-emitted downstream unchanged. Actual
// persistence is out of scope for an in-memory engine; the sink is the
// embedder's problem.
type outStage struct {
	collection string
	ctx        *Context
}

func newOutStage(spec any, ctx *Context) (Stage, error) {
	name, ok := spec.(string)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$out requires a collection name string")
	}

	return &outStage{collection: name, ctx: ctx}, nil
}

// newMergeStage accepts both $merge's string shorthand and its
// document form, of which only "into" is meaningful here: merge
// semantics (whenMatched/whenNotMatched) belong to the sink.
func newMergeStage(spec any, ctx *Context) (Stage, error) {
	switch v := spec.(type) {
	case string:
		return &outStage{collection: v, ctx: ctx}, nil

	case *types.Document:
		intoRaw, err := v.Get("into")
		if err != nil {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$merge requires 'into'")
		}

		into, ok := intoRaw.(string)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "'into' must be a collection name string")
		}

		return &outStage{collection: into, ctx: ctx}, nil

	default:
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "$merge requires a string or document")
	}
}

// Process implements Stage: terminal stages block, since the sink must
// observe the complete output before anything is re-emitted.
func (s *outStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	docs, err := drain(upstream)
	if err != nil {
		return nil, err
	}

	if s.ctx != nil && s.ctx.Sink != nil {
		if err := s.ctx.Sink(s.collection, docs); err != nil {
			return nil, err
		}
	}

	return sliceDocsIterator(docs), nil
}
