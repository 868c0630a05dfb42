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

package memagg

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memagg/memagg/internal/handler/common/aggregations/stages"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

// Aggregator is a compiled aggregation pipeline. Stage specs are
// validated and compiled once, in NewAggregator; each Run or Stream
// call then threads a fresh document sequence through the same stage
// chain.
type Aggregator struct {
	stages []stages.Stage
	ctx    *stages.Context
	opts   *Options
	id     uuid.UUID
}

// NewAggregator compiles pipeline, a sequence of single-key stage
// descriptor documents, into an Aggregator. Unrecognized stage names
// and malformed stage specs are rejected here.
func NewAggregator(pipeline *Array, opts *Options) (*Aggregator, error) {
	if pipeline == nil {
		pipeline = MustNewArray()
	}

	ctx, err := opts.stageContext()
	if err != nil {
		return nil, err
	}

	built, err := stages.Build(pipeline, ctx)
	if err != nil {
		return nil, err
	}

	a := &Aggregator{stages: built, ctx: ctx, opts: opts, id: uuid.New()}

	opts.logger().Debug("aggregation pipeline compiled",
		zap.String("pipeline", a.id.String()),
		zap.Int("stages", len(built)),
	)

	return a, nil
}

// Stream runs the pipeline over docs and returns a lazy iterator of
// output documents. Blocking stages drain their upstream on the first
// pull; Close releases every buffer they materialized.
func (a *Aggregator) Stream(docs []*Document) (DocumentsIterator, error) {
	upstream := ingress(docs, a.opts.mode())

	out, closer, err := stages.Chain(upstream, a.stages)
	if err != nil {
		return nil, err
	}

	return &closingIterator{inner: out, closeAll: closer}, nil
}

// Run is Stream followed by a full drain: the entire output,
// materialized.
func (a *Aggregator) Run(docs []*Document) ([]*Document, error) {
	out, err := a.Stream(docs)
	if err != nil {
		return nil, err
	}

	defer out.Close()

	return iterator.ConsumeValues(out)
}

// closingIterator couples a stage chain's final iterator with the
// multi-closer that releases every intermediate buffer, so a single
// Close from the consumer tears the whole chain down.
type closingIterator struct {
	inner    types.DocumentsIterator
	closeAll func()
	closed   bool
}

// Next implements DocumentsIterator.
func (it *closingIterator) Next() (int, *types.Document, error) {
	if it.closed {
		return 0, nil, iterator.ErrIteratorDone
	}

	return it.inner.Next()
}

// Close implements DocumentsIterator.
func (it *closingIterator) Close() {
	if it.closed {
		return
	}

	it.closed = true
	it.closeAll()
}
