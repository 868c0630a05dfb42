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
	register("$facet", newFacetStage)
}

type facetPipeline struct {
	name   string
	stages []Stage
}

type facetStage struct {
	facets []facetPipeline
}

func newFacetStage(spec any, ctx *Context) (Stage, error) {
	doc, ok := spec.(*types.Document)
	if !ok || doc.Len() == 0 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageFacetInvalid, "$facet requires a non-empty document of named sub-pipelines")
	}

	facets := make([]facetPipeline, 0, doc.Len())

	for _, name := range doc.Keys() {
		raw, _ := doc.Get(name)

		arr, ok := raw.(*types.Array)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageFacetInvalid, "each $facet entry must be a pipeline array")
		}

		built, err := Build(arr, ctx)
		if err != nil {
			return nil, err
		}

		facets = append(facets, facetPipeline{name: name, stages: built})
	}

	return &facetStage{facets: facets}, nil
}

// Process implements Stage: $facet blocks, draining upstream once and
// running every named sub-pipeline over its own independent copy of
// that buffer.
func (s *facetStage) Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error) {
	docs, err := drain(upstream)
	if err != nil {
		return nil, err
	}

	out, err := types.NewDocument()
	if err != nil {
		return nil, err
	}

	for _, f := range s.facets {
		branchUpstream := sliceDocsIterator(docs)

		branchOut, closer, err := Chain(branchUpstream, f.stages)
		if err != nil {
			return nil, err
		}

		branchDocs, err := drain(branchOut)
		closer()

		if err != nil {
			return nil, err
		}

		arr := types.MakeArray(len(branchDocs))
		for _, d := range branchDocs {
			_ = arr.Append(d)
		}

		if err := out.Set(f.name, arr); err != nil {
			return nil, err
		}
	}

	return sliceDocsIterator([]*types.Document{out}), nil
}
