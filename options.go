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
	"go.uber.org/zap"

	"github.com/memagg/memagg/internal/collation"
	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/handler/common/aggregations/stages"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

// Collation describes a locale-aware total order on strings, applied by
// $sort, $group key equality, and collation-aware comparisons. The zero
// descriptor (and a nil *Collation) means case-sensitive byte order.
type Collation = collation.Descriptor

// ProcessingMode controls how the engine treats caller-owned documents
// flowing into a query or pipeline.
type ProcessingMode int

const (
	// CopyInput shallow-copies each document at ingress, so stages can
	// add or remove top-level fields without the caller observing it.
	// This is the default.
	CopyInput ProcessingMode = iota

	// CloneInput deep-copies each document at ingress; the pipeline
	// never touches caller-owned memory, at the cost of a full copy.
	CloneInput

	// CloneOff passes caller documents through by reference. The engine
	// still copies before reshaping, but shares whatever it doesn't
	// reshape; callers must not mutate documents mid-iteration.
	CloneOff
)

// ScriptFunc is the embedder-supplied script evaluation capability
// behind $where and $function: given source code and already-evaluated
// arguments, produce a value.
type ScriptFunc func(source string, args []any) (any, error)

// SinkFunc receives the fully materialized output of an $out or $merge
// stage. Persistence is the embedder's concern; the engine only
// delivers the documents.
type SinkFunc func(collection string, docs []*Document) error

// Options configures a Query or Aggregator. The zero value (and a nil
// *Options) is valid: byte-order collation, CopyInput, "_id" as the
// identity field, scripting disabled, no logging.
type Options struct {
	// Collation selects the string ordering; nil means byte order.
	Collation *Collation

	// ProcessingMode governs document ownership at ingress.
	ProcessingMode ProcessingMode

	// IDKey names the identity field; empty means "_id".
	IDKey string

	// Variables pre-populates "$$name" bindings visible to every
	// expression.
	Variables map[string]any

	// ScriptEnabled permits $where and $function; both fail with a
	// script-disabled error otherwise, even when ScriptEvaluator is set.
	ScriptEnabled bool

	// ScriptEvaluator runs host-provided code for $where/$function.
	ScriptEvaluator ScriptFunc

	// Context maps collection names to in-memory document slices for
	// $lookup and $graphLookup.
	Context map[string][]*Document

	// Sink receives $out/$merge output.
	Sink SinkFunc

	// Logger receives construction-time diagnostics; nil means no
	// output.
	Logger *zap.Logger
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}

	return o.Logger
}

func (o *Options) mode() ProcessingMode {
	if o == nil {
		return CopyInput
	}

	return o.ProcessingMode
}

func (o *Options) idKey() string {
	if o == nil || o.IDKey == "" {
		return "_id"
	}

	return o.IDKey
}

func (o *Options) collator() (collation.Collator, error) {
	if o == nil {
		return collation.Default, nil
	}

	return collation.New(o.Collation)
}

func (o *Options) evalContext() (*aggregations.EvalContext, error) {
	c, err := o.collator()
	if err != nil {
		return nil, err
	}

	ctx := &aggregations.EvalContext{
		Collator: c,
		IDKey:    o.idKey(),
	}

	if o != nil {
		ctx.ScriptEnabled = o.ScriptEnabled
		ctx.ScriptEvaluator = o.ScriptEvaluator
		ctx.Variables = o.Variables
	}

	return ctx, nil
}

func (o *Options) stageContext() (*stages.Context, error) {
	evalCtx, err := o.evalContext()
	if err != nil {
		return nil, err
	}

	ctx := &stages.Context{Eval: evalCtx}

	if o != nil {
		ctx.Collections = o.Context
		ctx.Sink = o.Sink
	}

	return ctx, nil
}

// ingress adapts caller-owned documents to the iterator the stage chain
// pulls from, applying the processing mode's per-document copy policy
// lazily, one document per pull.
func ingress(docs []*Document, mode ProcessingMode) types.DocumentsIterator {
	base := iterator.ForSlice(docs)

	switch mode {
	case CloneOff:
		return base

	case CloneInput:
		return iterator.ForFunc(func() (int, *types.Document, error) {
			i, doc, err := base.Next()
			if err != nil {
				return 0, nil, err
			}

			return i, doc.DeepCopy(), nil
		})

	default: // CopyInput
		return iterator.ForFunc(func() (int, *types.Document, error) {
			i, doc, err := base.Next()
			if err != nil {
				return 0, nil, err
			}

			return i, doc.ShallowCopy(), nil
		})
	}
}
