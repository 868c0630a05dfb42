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

// Package stages implements the aggregation pipeline runtime: one
// adapter per stage name, each wrapping the previous
// iterator. Streaming stages pull one document at a time; blocking
// stages drain their upstream into an owned buffer inside Process, that
// is, when Chain wires the pipeline, before the first document is
// pulled.
package stages

import (
	"errors"

	"github.com/memagg/memagg/internal/collation"
	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

// Stage adapts an upstream document iterator into a new one. Chain
// calls Process once per run of the pipeline ($lookup re-chains its
// cached sub-pipeline for every joined document), and Process returns
// an iterator the next stage (or the caller) pulls from.
type Stage interface {
	Process(upstream types.DocumentsIterator) (types.DocumentsIterator, error)
}

// Context carries everything a stage factory or a running stage needs
// beyond its own spec: the expression evaluator's construction-time
// options, and the named in-memory collections $lookup/$graphLookup
// read from.
type Context struct {
	Eval        *aggregations.EvalContext
	Collections map[string][]*types.Document

	// Sink receives the fully materialized output of $out/$merge; both
	// stages are otherwise pass-through. Persistence is out of scope
	// for an in-memory engine, so this is a hook, not an implementation.
	Sink func(collection string, docs []*types.Document) error
}

func (c *Context) collator() collation.Collator {
	if c == nil || c.Eval == nil || c.Eval.Collator == nil {
		return collation.Default
	}

	return c.Eval.Collator
}

func (c *Context) idKey() string {
	if c == nil || c.Eval == nil || c.Eval.IDKey == "" {
		return "_id"
	}

	return c.Eval.IDKey
}

// factory builds a Stage from one stage descriptor's spec Value.
type factory func(spec any, ctx *Context) (Stage, error)

var registry = map[string]factory{}

func register(name string, f factory) {
	registry[name] = f
}

// NewStage builds the Stage registered for name from spec.
func NewStage(name string, spec any, ctx *Context) (Stage, error) {
	f, ok := registry[name]
	if !ok {
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrStageInvalid, "unrecognized pipeline stage name", name,
		)
	}

	return f(spec, ctx)
}

// Build compiles a full pipeline spec, an array of single-key stage
// descriptor documents, into an ordered list of Stages, ready for
// Chain.
func Build(pipeline *types.Array, ctx *Context) ([]Stage, error) {
	out := make([]Stage, 0, pipeline.Len())

	for _, raw := range pipeline.Slice() {
		doc, ok := raw.(*types.Document)
		if !ok || doc.Len() != 1 {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrStageInvalid, "a pipeline stage must be a single-key document")
		}

		name := doc.Keys()[0]
		spec, _ := doc.Get(name)

		stage, err := NewStage(name, spec, ctx)
		if err != nil {
			return nil, err
		}

		out = append(out, stage)
	}

	return out, nil
}

// Chain wires stages one after another, starting from input, and
// returns the final iterator plus a closer that releases every
// intermediate buffer a blocking stage materialized.
func Chain(input types.DocumentsIterator, stages []Stage) (types.DocumentsIterator, func(), error) {
	mc := iterator.NewMultiCloser()
	mc.Add(input.Close)

	cur := input

	for _, st := range stages {
		next, err := st.Process(cur)
		if err != nil {
			mc.Close()

			return nil, nil, err
		}

		mc.Add(next.Close)
		cur = next
	}

	return cur, mc.Close, nil
}

// sliceDocsIterator adapts a []*types.Document to types.DocumentsIterator,
// the shape every blocking stage hands the next stage after draining
// its upstream.
func sliceDocsIterator(docs []*types.Document) types.DocumentsIterator {
	return iterator.ForSlice(docs)
}

// drain pulls every document out of upstream into an owned slice; used
// by every blocking stage before it can emit
// anything.
func drain(upstream types.DocumentsIterator) ([]*types.Document, error) {
	var docs []*types.Document

	for {
		_, doc, err := upstream.Next()
		if err != nil {
			if errors.Is(err, iterator.ErrIteratorDone) {
				return docs, nil
			}

			return nil, err
		}

		docs = append(docs, doc)
	}
}

