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

// Package memagg is an in-memory query and aggregation engine: it
// evaluates MongoDB-style query predicates and aggregation pipelines
// against documents held in process memory. Callers hand a sequence of
// documents plus either a filter document (NewQuery) or a pipeline of
// stage descriptors (NewAggregator) and receive lazily-evaluated
// results.
//
// There is no persistence, no network layer, and no index structure:
// every predicate scans, and the pipeline is strictly sequential per
// query.
package memagg

import (
	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

// Document is an insertion-ordered mapping from string keys to values.
// Key order is observable through $project and preserved through every
// transformation that doesn't explicitly reorder.
type Document = types.Document

// Array is an ordered sequence of values.
type Array = types.Array

// DocumentsIterator is the lazy sequence type returned by Query.Find,
// Query.Remove, and Aggregator.Stream. Next returns ErrIteratorDone
// once exhausted; Close releases any buffers blocking stages
// materialized.
type DocumentsIterator = types.DocumentsIterator

// Null is the BSON null value, distinct from a missing field.
var Null = types.Null

// Missing is the sentinel for an absent field. It never appears inside
// a Document or Array; assigning it to a path removes the key.
var Missing = types.Missing

// ErrIteratorDone is returned by a DocumentsIterator's Next once the
// sequence is exhausted.
var ErrIteratorDone = iterator.ErrIteratorDone

// NewDocument creates a Document from alternating key/value pairs, in
// the order given.
func NewDocument(pairs ...any) (*Document, error) {
	return types.NewDocument(pairs...)
}

// MustNewDocument is like NewDocument, but panics on error. Intended
// for fixtures and literals.
func MustNewDocument(pairs ...any) *Document {
	return types.MustNewDocument(pairs...)
}

// NewArray creates an Array from the given values, in order.
func NewArray(values ...any) (*Array, error) {
	return types.NewArray(values...)
}

// MustNewArray is like NewArray, but panics on error.
func MustNewArray(values ...any) *Array {
	return types.MustNewArray(values...)
}

// Aggregate runs pipeline over docs and returns the fully materialized
// result, the one-shot convenience form of NewAggregator + Run.
func Aggregate(docs []*Document, pipeline *Array, opts *Options) ([]*Document, error) {
	a, err := NewAggregator(pipeline, opts)
	if err != nil {
		return nil, err
	}

	return a.Run(docs)
}

// Find filters docs by filter and, when projection is non-nil, reshapes
// each match per $project semantics. A nil or empty filter matches
// everything, in order.
func Find(docs []*Document, filter, projection *Document, opts *Options) ([]*Document, error) {
	if filter == nil {
		filter = MustNewDocument()
	}

	q, err := NewQuery(filter, opts)
	if err != nil {
		return nil, err
	}

	iter := q.Find(docs)
	defer iter.Close()

	matched, err := iterator.ConsumeValues(iter)
	if err != nil {
		return nil, err
	}

	if projection == nil {
		return matched, nil
	}

	pipeline, err := types.NewArray(types.MustNewDocument("$project", projection))
	if err != nil {
		return nil, err
	}

	return Aggregate(matched, pipeline, opts)
}

// Compute evaluates a single aggregation expression against doc,
// outside any pipeline. It exists for embedders that use the expression
// language standalone (computed defaults, validation rules).
func Compute(doc *Document, expr any, opts *Options) (any, error) {
	parsed, err := aggregations.NewExpression(expr)
	if err != nil {
		return nil, err
	}

	evalCtx, err := opts.evalContext()
	if err != nil {
		return nil, err
	}

	if doc == nil {
		doc = MustNewDocument()
	}

	return parsed.Evaluate(aggregations.NewFrame(doc, evalCtx))
}
